package service

import "sync"

// keyedLock serializes operations sharing a logical key: version-number
// assignment per lineage, submission upserts per (assignment, student),
// and grade upserts per submission.
// Entries are never evicted; the key space is bounded by active entities
// and each entry is a bare mutex.
type keyedLock struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLock() *keyedLock {
	return &keyedLock{locks: make(map[string]*sync.Mutex)}
}

// Acquire locks the mutex for key and returns the release function.
func (k *keyedLock) Acquire(key string) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
