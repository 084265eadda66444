// Package lifecycle holds the pure decision logic for assignment states.
// Nothing here touches storage or the clock; callers pass "now" explicitly
// so every rule is deterministic and testable.
package lifecycle

import "time"

// Status enumerates the persisted assignment states.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusClosed    Status = "CLOSED"
	StatusArchived  Status = "ARCHIVED"
)

// Valid reports whether the value is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusClosed, StatusArchived:
		return true
	}
	return false
}

// Field names used by the per-state edit policy.
const (
	FieldTitle            = "title"
	FieldDescription      = "description"
	FieldType             = "type"
	FieldTotalScore       = "total_score"
	FieldAllowResubmit    = "allow_resubmit"
	FieldMaxResubmitCount = "max_resubmit_count"
	FieldDueAt            = "due_at"
)

// ValidateTransition checks whether moving from one stored status to
// another is allowed. CLOSED -> PUBLISHED is deliberately absent: reopening
// a closed assignment goes through republish, which creates a new version.
func ValidateTransition(from, to Status, dueAt *time.Time, now time.Time) error {
	if from == "" {
		from = StatusDraft
	}

	switch to {
	case StatusPublished:
		if from == StatusDraft {
			return nil
		}
	case StatusDraft:
		if from == StatusPublished {
			if dueAt != nil && dueAt.Before(now) {
				return &TransitionError{From: from, To: to, Reason: "assignment is past due and can no longer be unpublished"}
			}
			return nil
		}
	case StatusClosed:
		if from == StatusPublished {
			return nil
		}
	case StatusArchived:
		if from == StatusClosed {
			return nil
		}
	default:
		return &TransitionError{From: from, To: to, Reason: "unknown target status"}
	}

	return &TransitionError{From: from, To: to}
}

// DeriveEffectiveStatus recomputes the status an assignment should present
// given its stored status and deadline. It is idempotent and never
// persisted here; callers decide whether to write the derived value back.
// ARCHIVED and DRAFT are immune to deadline drift.
func DeriveEffectiveStatus(stored Status, dueAt *time.Time, now time.Time) Status {
	if stored == "" {
		stored = StatusDraft
	}
	if stored != StatusPublished {
		return stored
	}
	if dueAt != nil && dueAt.Before(now) {
		return StatusClosed
	}
	return stored
}

// CanEditField applies the per-state field policy: drafts are fully
// editable, published assignments only allow deadline and resubmission
// settings, closed and archived assignments reject all edits.
func CanEditField(status Status, field string) bool {
	switch status {
	case StatusDraft:
		return true
	case StatusPublished:
		switch field {
		case FieldDueAt, FieldAllowResubmit, FieldMaxResubmitCount:
			return true
		}
		return false
	default:
		return false
	}
}

// CanPublish reports whether a publish action may be attempted from the
// given status. Field-level preconditions (title, deadline) are checked by
// the caller.
func CanPublish(status Status) bool {
	return status == StatusDraft
}

// CanUnpublish reports whether the assignment may be withdrawn to draft.
func CanUnpublish(status Status, dueAt *time.Time, now time.Time) bool {
	if status != StatusPublished {
		return false
	}
	return dueAt == nil || !dueAt.Before(now)
}

// CanRepublish reports whether the assignment can seed a new version.
func CanRepublish(status Status) bool {
	return status == StatusPublished || status == StatusClosed
}

// CanArchive reports whether the assignment can be archived.
func CanArchive(status Status) bool {
	return status == StatusClosed
}

// CanDeleteUnconditionally reports whether the status allows deletion
// without consulting submissions. PUBLISHED deletion additionally requires
// that no active submissions exist, which the caller must verify.
func CanDeleteUnconditionally(status Status) bool {
	return status == StatusDraft || status == StatusArchived
}

// TransitionError describes a rejected state change.
type TransitionError struct {
	From   Status
	To     Status
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return "invalid transition " + string(e.From) + " -> " + string(e.To) + ": " + e.Reason
	}
	return "invalid transition " + string(e.From) + " -> " + string(e.To)
}
