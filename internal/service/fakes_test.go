package service

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/usst-spm/course-api/internal/dto"
	"github.com/usst-spm/course-api/internal/models"
	"github.com/usst-spm/course-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type fakeAssignmentRepo struct {
	mu         sync.Mutex
	nextID     uint
	items      map[uint]models.Assignment
	createErrs []error
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{nextID: 1, items: map[uint]models.Assignment{}}
}

func (f *fakeAssignmentRepo) seed(assignment models.Assignment) models.Assignment {
	f.mu.Lock()
	defer f.mu.Unlock()
	if assignment.ID == 0 {
		assignment.ID = f.nextID
	}
	if assignment.ID >= f.nextID {
		f.nextID = assignment.ID + 1
	}
	f.items[assignment.ID] = assignment
	return assignment
}

func (f *fakeAssignmentRepo) GetByID(_ context.Context, id uint) (models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	assignment, ok := f.items[id]
	if !ok {
		return models.Assignment{}, gorm.ErrRecordNotFound
	}
	return assignment, nil
}

func (f *fakeAssignmentRepo) ListByCourse(_ context.Context, courseID uint) ([]models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Assignment
	for _, assignment := range f.items {
		if assignment.CourseID == courseID {
			out = append(out, assignment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAssignmentRepo) Create(_ context.Context, assignment *models.Assignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	assignment.ID = f.nextID
	f.nextID++
	f.items[assignment.ID] = *assignment
	return nil
}

func (f *fakeAssignmentRepo) Update(_ context.Context, assignment *models.Assignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[assignment.ID] = *assignment
	return nil
}

func (f *fakeAssignmentRepo) SoftDelete(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeAssignmentRepo) MaxVersionInLineage(_ context.Context, lineageID uint) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, assignment := range f.items {
		inLineage := assignment.ID == lineageID ||
			(assignment.OriginID != nil && *assignment.OriginID == lineageID)
		if inLineage && assignment.Version > max {
			max = assignment.Version
		}
	}
	return max, nil
}

func (f *fakeAssignmentRepo) ListLineage(_ context.Context, lineageID uint) ([]models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Assignment
	for _, assignment := range f.items {
		if assignment.ID == lineageID || (assignment.OriginID != nil && *assignment.OriginID == lineageID) {
			out = append(out, assignment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

type fakeSubmissionRepo struct {
	mu         sync.Mutex
	nextID     uint
	items      map[uint]models.Submission
	createErrs []error
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{nextID: 1, items: map[uint]models.Submission{}}
}

func (f *fakeSubmissionRepo) seed(submission models.Submission) models.Submission {
	f.mu.Lock()
	defer f.mu.Unlock()
	if submission.ID == 0 {
		submission.ID = f.nextID
	}
	if submission.ID >= f.nextID {
		f.nextID = submission.ID + 1
	}
	f.items[submission.ID] = submission
	return submission
}

func (f *fakeSubmissionRepo) GetByID(_ context.Context, id uint) (models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	submission, ok := f.items[id]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (f *fakeSubmissionRepo) GetActive(_ context.Context, assignmentID, studentID uint) (models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, submission := range f.items {
		if submission.AssignmentID == assignmentID && submission.StudentID == studentID {
			return submission, nil
		}
	}
	return models.Submission{}, gorm.ErrRecordNotFound
}

func (f *fakeSubmissionRepo) List(_ context.Context, filter repository.SubmissionFilter) ([]models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Submission
	for _, submission := range f.items {
		if filter.AssignmentID > 0 && submission.AssignmentID != filter.AssignmentID {
			continue
		}
		if filter.StudentID > 0 && submission.StudentID != filter.StudentID {
			continue
		}
		out = append(out, submission)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeSubmissionRepo) Create(_ context.Context, submission *models.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, existing := range f.items {
		if existing.AssignmentID == submission.AssignmentID && existing.StudentID == submission.StudentID {
			return gorm.ErrDuplicatedKey
		}
	}
	submission.ID = f.nextID
	f.nextID++
	f.items[submission.ID] = *submission
	return nil
}

func (f *fakeSubmissionRepo) Update(_ context.Context, submission *models.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[submission.ID] = *submission
	return nil
}

func (f *fakeSubmissionRepo) CountByAssignment(_ context.Context, assignmentID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, submission := range f.items {
		if submission.AssignmentID == assignmentID {
			count++
		}
	}
	return count, nil
}

type fakeGradeRepo struct {
	mu        sync.Mutex
	nextID    uint
	grades    map[uint]models.Grade // keyed by submission id
	histories []models.GradeHistory
	getErrs   []error
	saveErrs  []error
}

func newFakeGradeRepo() *fakeGradeRepo {
	return &fakeGradeRepo{nextID: 1, grades: map[uint]models.Grade{}}
}

func (f *fakeGradeRepo) seed(grade models.Grade) models.Grade {
	f.mu.Lock()
	defer f.mu.Unlock()
	if grade.ID == 0 {
		grade.ID = f.nextID
		f.nextID++
	}
	f.grades[grade.SubmissionID] = grade
	return grade
}

func (f *fakeGradeRepo) GetBySubmission(_ context.Context, submissionID uint) (models.Grade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		if err != nil {
			return models.Grade{}, err
		}
	}
	grade, ok := f.grades[submissionID]
	if !ok {
		return models.Grade{}, gorm.ErrRecordNotFound
	}
	return grade, nil
}

func (f *fakeGradeRepo) ListBySubmissions(_ context.Context, submissionIDs []uint) ([]models.Grade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Grade
	for _, id := range submissionIDs {
		if grade, ok := f.grades[id]; ok {
			out = append(out, grade)
		}
	}
	return out, nil
}

func (f *fakeGradeRepo) SaveWithHistory(_ context.Context, grade *models.Grade, history *models.GradeHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saveErrs) > 0 {
		err := f.saveErrs[0]
		f.saveErrs = f.saveErrs[1:]
		if err != nil {
			return err
		}
	}
	if grade.ID == 0 {
		grade.ID = f.nextID
		f.nextID++
	}
	f.grades[grade.SubmissionID] = *grade

	history.ID = uint(len(f.histories) + 1)
	history.GradeID = grade.ID
	f.histories = append(f.histories, *history)
	return nil
}

func (f *fakeGradeRepo) Update(_ context.Context, grade *models.Grade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grades[grade.SubmissionID] = *grade
	return nil
}

func (f *fakeGradeRepo) ListHistory(_ context.Context, submissionID uint) ([]models.GradeHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.GradeHistory
	for _, history := range f.histories {
		if history.SubmissionID == submissionID {
			out = append(out, history)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ChangedAt.Equal(out[j].ChangedAt) {
			return out[i].ChangedAt.After(out[j].ChangedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

type fakeAttachmentRepo struct {
	mu          sync.Mutex
	assignments map[uint][]uint
	submissions map[uint][]uint
}

func newFakeAttachmentRepo() *fakeAttachmentRepo {
	return &fakeAttachmentRepo{assignments: map[uint][]uint{}, submissions: map[uint][]uint{}}
}

func (f *fakeAttachmentRepo) ListForAssignment(_ context.Context, assignmentID uint) ([]models.AssignmentAttachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AssignmentAttachment
	for _, fileID := range f.assignments[assignmentID] {
		out = append(out, models.AssignmentAttachment{AssignmentID: assignmentID, FileID: fileID})
	}
	return out, nil
}

func (f *fakeAttachmentRepo) ReplaceForAssignment(_ context.Context, assignmentID uint, fileIDs []uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignments[assignmentID] = append([]uint(nil), fileIDs...)
	return nil
}

func (f *fakeAttachmentRepo) CopyForAssignment(_ context.Context, sourceID, targetID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignments[targetID] = append([]uint(nil), f.assignments[sourceID]...)
	return nil
}

func (f *fakeAttachmentRepo) ListForSubmission(_ context.Context, submissionID uint) ([]models.SubmissionAttachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SubmissionAttachment
	for _, fileID := range f.submissions[submissionID] {
		out = append(out, models.SubmissionAttachment{SubmissionID: submissionID, FileID: fileID})
	}
	return out, nil
}

func (f *fakeAttachmentRepo) ReplaceForSubmission(_ context.Context, submissionID uint, fileIDs []uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions[submissionID] = append([]uint(nil), fileIDs...)
	return nil
}

type fakeUserRepo struct {
	users map[uint]models.User
}

func newFakeUserRepo(users ...models.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: map[uint]models.User{}}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (f *fakeUserRepo) GetByID(_ context.Context, id uint) (models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

type fakeActivityRecorder struct {
	mu      sync.Mutex
	entries []ActivityEntry
}

func (f *fakeActivityRecorder) Record(_ context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return dto.ActivityResponse{}, nil
}

type fakeEventPublisher struct {
	mu     sync.Mutex
	events []DomainEvent
}

func (f *fakeEventPublisher) Publish(_ context.Context, event DomainEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}
