package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/usst-spm/course-api/internal/dto"
	"github.com/usst-spm/course-api/internal/lifecycle"
	"github.com/usst-spm/course-api/internal/models"
)

type submissionFixture struct {
	svc         SubmissionService
	assignments *fakeAssignmentRepo
	submissions *fakeSubmissionRepo
	grades      *fakeGradeRepo
	attachments *fakeAttachmentRepo
	events      *fakeEventPublisher
	now         time.Time
}

func newSubmissionFixture(t *testing.T) *submissionFixture {
	t.Helper()

	f := &submissionFixture{
		assignments: newFakeAssignmentRepo(),
		submissions: newFakeSubmissionRepo(),
		grades:      newFakeGradeRepo(),
		attachments: newFakeAttachmentRepo(),
		events:      &fakeEventPublisher{},
		now:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewSubmissionService(
		f.assignments, f.submissions, f.grades, f.attachments,
		validator.New(), &fakeActivityRecorder{}, f.events, testLogger(),
	)
	f.svc.(*submissionService).now = func() time.Time { return f.now }
	return f
}

func (f *submissionFixture) seedAssignment(t *testing.T, mutate func(*models.Assignment)) models.Assignment {
	t.Helper()

	due := f.now.Add(24 * time.Hour)
	assignment := models.Assignment{
		CourseID: 1, Title: "hw", Version: 1, TotalScore: 100,
		Status: string(lifecycle.StatusPublished), DueAt: &due,
	}
	if mutate != nil {
		mutate(&assignment)
	}
	return f.assignments.seed(assignment)
}

func TestSubmitFirstTime(t *testing.T) {
	f := newSubmissionFixture(t)
	assignment := f.seedAssignment(t, nil)

	resp, err := f.svc.Submit(context.Background(), assignment.ID, dto.SubmitRequest{
		Content:       "my answer",
		AttachmentIDs: []uint{4},
	}, Actor{ID: 3, Role: models.RoleStudent})
	require.NoError(t, err)

	assert.Equal(t, 0, resp.ResubmitCount)
	assert.Equal(t, models.SubmissionStatusSubmitted, resp.Status)
	assert.Equal(t, f.now, resp.SubmittedAt)
	assert.Equal(t, []uint{4}, resp.AttachmentFileIDs)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, EventSubmissionReceived, f.events.events[0].Type)
}

func TestSubmitDeadlineBoundary(t *testing.T) {
	f := newSubmissionFixture(t)
	student := Actor{ID: 3, Role: models.RoleStudent}

	// Due one second from now: accepted.
	open := f.seedAssignment(t, func(a *models.Assignment) {
		due := f.now.Add(time.Second)
		a.DueAt = &due
	})
	_, err := f.svc.Submit(context.Background(), open.ID, dto.SubmitRequest{Content: "x"}, student)
	assert.NoError(t, err)

	// Due one second ago: rejected.
	closed := f.seedAssignment(t, func(a *models.Assignment) {
		due := f.now.Add(-time.Second)
		a.DueAt = &due
	})
	_, err = f.svc.Submit(context.Background(), closed.ID, dto.SubmitRequest{Content: "x"}, student)
	assert.ErrorIs(t, err, ErrPastDue)
}

func TestSubmitRejectsDraftAndArchived(t *testing.T) {
	f := newSubmissionFixture(t)
	student := Actor{ID: 3, Role: models.RoleStudent}

	draft := f.seedAssignment(t, func(a *models.Assignment) {
		a.Status = string(lifecycle.StatusDraft)
	})
	_, err := f.svc.Submit(context.Background(), draft.ID, dto.SubmitRequest{Content: "x"}, student)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)

	archived := f.seedAssignment(t, func(a *models.Assignment) {
		a.Status = string(lifecycle.StatusArchived)
	})
	_, err = f.svc.Submit(context.Background(), archived.ID, dto.SubmitRequest{Content: "x"}, student)
	assert.ErrorIs(t, err, ErrPastDue)
}

func TestResubmitQuota(t *testing.T) {
	f := newSubmissionFixture(t)
	student := Actor{ID: 3, Role: models.RoleStudent}

	assignment := f.seedAssignment(t, func(a *models.Assignment) {
		a.AllowResubmit = true
		a.MaxResubmitCount = 2
	})

	first, err := f.svc.Submit(context.Background(), assignment.ID, dto.SubmitRequest{Content: "v1"}, student)
	require.NoError(t, err)
	assert.Equal(t, 0, first.ResubmitCount)

	second, err := f.svc.Submit(context.Background(), assignment.ID, dto.SubmitRequest{Content: "v2"}, student)
	require.NoError(t, err)
	assert.Equal(t, 1, second.ResubmitCount)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "v2", second.Content)

	third, err := f.svc.Submit(context.Background(), assignment.ID, dto.SubmitRequest{Content: "v3"}, student)
	require.NoError(t, err)
	assert.Equal(t, 2, third.ResubmitCount)

	_, err = f.svc.Submit(context.Background(), assignment.ID, dto.SubmitRequest{Content: "v4"}, student)
	assert.ErrorIs(t, err, ErrResubmitLimitExceeded)
}

func TestResubmitDisallowed(t *testing.T) {
	f := newSubmissionFixture(t)
	student := Actor{ID: 3, Role: models.RoleStudent}

	assignment := f.seedAssignment(t, nil)

	_, err := f.svc.Submit(context.Background(), assignment.ID, dto.SubmitRequest{Content: "v1"}, student)
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), assignment.ID, dto.SubmitRequest{Content: "v2"}, student)
	assert.ErrorIs(t, err, ErrResubmitNotAllowed)
}

func TestResubmitUnlimitedWhenQuotaZero(t *testing.T) {
	f := newSubmissionFixture(t)
	student := Actor{ID: 3, Role: models.RoleStudent}

	assignment := f.seedAssignment(t, func(a *models.Assignment) {
		a.AllowResubmit = true
		a.MaxResubmitCount = 0
	})

	var resp dto.SubmissionResponse
	var err error
	for i := 0; i < 5; i++ {
		resp, err = f.svc.Submit(context.Background(), assignment.ID, dto.SubmitRequest{Content: "v"}, student)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, resp.ResubmitCount)
}

func TestSubmitInsertRaceFallsBackToResubmit(t *testing.T) {
	f := newSubmissionFixture(t)
	student := Actor{ID: 3, Role: models.RoleStudent}

	assignment := f.seedAssignment(t, func(a *models.Assignment) {
		a.AllowResubmit = true
	})

	// A concurrent writer on another node already holds the row.
	winner := f.submissions.seed(models.Submission{
		AssignmentID: assignment.ID, StudentID: student.ID,
		Content: "theirs", Status: models.SubmissionStatusSubmitted,
	})
	f.submissions.createErrs = []error{gorm.ErrDuplicatedKey}

	resp, err := f.svc.Submit(context.Background(), assignment.ID, dto.SubmitRequest{Content: "mine"}, student)
	require.NoError(t, err)
	assert.Equal(t, winner.ID, resp.ID)
	assert.Equal(t, "mine", resp.Content)
	assert.Equal(t, 1, resp.ResubmitCount)
}

func TestMySubmissionHidesUnreleasedGrade(t *testing.T) {
	f := newSubmissionFixture(t)

	assignment := f.seedAssignment(t, nil)
	submission := f.submissions.seed(models.Submission{
		AssignmentID: assignment.ID, StudentID: 3,
		Content: "answer", Status: models.SubmissionStatusSubmitted,
	})
	f.grades.seed(models.Grade{SubmissionID: submission.ID, Score: 40, Feedback: "wip"})

	resp, err := f.svc.MySubmission(context.Background(), assignment.ID, 3)
	require.NoError(t, err)
	assert.Nil(t, resp.Score)
	assert.False(t, resp.Released)

	released := f.grades.grades[submission.ID]
	released.Released = true
	f.grades.grades[submission.ID] = released

	resp, err = f.svc.MySubmission(context.Background(), assignment.ID, 3)
	require.NoError(t, err)
	require.NotNil(t, resp.Score)
	assert.Equal(t, 40, *resp.Score)
	assert.True(t, resp.Released)

	_, err = f.svc.MySubmission(context.Background(), assignment.ID, 99)
	assert.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestListForAssignmentShowsWorkingGrades(t *testing.T) {
	f := newSubmissionFixture(t)

	assignment := f.seedAssignment(t, nil)
	graded := f.submissions.seed(models.Submission{AssignmentID: assignment.ID, StudentID: 3})
	f.submissions.seed(models.Submission{AssignmentID: assignment.ID, StudentID: 4})
	f.grades.seed(models.Grade{SubmissionID: graded.ID, Score: 70})

	responses, err := f.svc.ListForAssignment(context.Background(), assignment.ID)
	require.NoError(t, err)
	require.Len(t, responses, 2)

	require.NotNil(t, responses[0].Score)
	assert.Equal(t, 70, *responses[0].Score)
	assert.False(t, responses[0].Released)
	assert.Nil(t, responses[1].Score)

	_, err = f.svc.ListForAssignment(context.Background(), 999)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)
}
