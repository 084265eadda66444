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

type versionChainFixture struct {
	svc         VersionChainService
	assignments *fakeAssignmentRepo
	attachments *fakeAttachmentRepo
	activity    *fakeActivityRecorder
	events      *fakeEventPublisher
	now         time.Time
}

func newVersionChainFixture(t *testing.T) *versionChainFixture {
	t.Helper()

	f := &versionChainFixture{
		assignments: newFakeAssignmentRepo(),
		attachments: newFakeAttachmentRepo(),
		activity:    &fakeActivityRecorder{},
		events:      &fakeEventPublisher{},
		now:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewVersionChainService(
		f.assignments, f.attachments, validator.New(), f.activity, f.events, testLogger(),
	)
	f.svc.(*versionChainService).now = func() time.Time { return f.now }
	return f
}

func TestRepublishCreatesSecondVersion(t *testing.T) {
	f := newVersionChainFixture(t)

	past := f.now.Add(-time.Hour)
	source := f.assignments.seed(models.Assignment{
		ID: 10, CourseID: 1, Title: "hw", Version: 1,
		Status: string(lifecycle.StatusClosed), DueAt: &past,
		TotalScore: 100,
	})

	newDue := f.now.Add(48 * time.Hour).Format(time.RFC3339)
	resp, err := f.svc.Republish(context.Background(), source.ID, dto.RepublishRequest{
		NewDueAt: newDue,
		Reason:   "deadline extension",
	}, Actor{ID: 7, Role: models.RoleTeacher})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Version)
	assert.Equal(t, "PUBLISHED", resp.Status)
	assert.NotEqual(t, source.ID, resp.NewAssignmentID)

	successor, err := f.assignments.GetByID(context.Background(), resp.NewAssignmentID)
	require.NoError(t, err)
	require.NotNil(t, successor.OriginID)
	assert.Equal(t, uint(10), *successor.OriginID)
	assert.Equal(t, "hw", successor.Title)
	require.NotNil(t, successor.PublishedAt)

	// The source row is untouched.
	original, err := f.assignments.GetByID(context.Background(), source.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, original.Version)
	assert.Equal(t, string(lifecycle.StatusClosed), original.Status)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, EventAssignmentRepublished, f.events.events[0].Type)
}

func TestRepublishChainsFromSuccessor(t *testing.T) {
	f := newVersionChainFixture(t)

	past := f.now.Add(-time.Hour)
	origin := uint(10)
	f.assignments.seed(models.Assignment{
		ID: 10, CourseID: 1, Title: "hw", Version: 1,
		Status: string(lifecycle.StatusClosed), DueAt: &past,
	})
	v2 := f.assignments.seed(models.Assignment{
		ID: 11, CourseID: 1, Title: "hw", Version: 2, OriginID: &origin,
		Status: string(lifecycle.StatusPublished), DueAt: &past,
	})

	newDue := f.now.Add(24 * time.Hour).Format(time.RFC3339)
	resp, err := f.svc.Republish(context.Background(), v2.ID, dto.RepublishRequest{NewDueAt: newDue}, Actor{ID: 7})
	require.NoError(t, err)

	// Republishing v2 extends the same lineage rooted at 10.
	assert.Equal(t, 3, resp.Version)
	successor, err := f.assignments.GetByID(context.Background(), resp.NewAssignmentID)
	require.NoError(t, err)
	require.NotNil(t, successor.OriginID)
	assert.Equal(t, origin, *successor.OriginID)
}

func TestRepublishRejectsDraftSource(t *testing.T) {
	f := newVersionChainFixture(t)

	source := f.assignments.seed(models.Assignment{
		CourseID: 1, Title: "hw", Version: 1, Status: string(lifecycle.StatusDraft),
	})

	newDue := f.now.Add(24 * time.Hour).Format(time.RFC3339)
	_, err := f.svc.Republish(context.Background(), source.ID, dto.RepublishRequest{NewDueAt: newDue}, Actor{ID: 7})
	assert.ErrorIs(t, err, ErrInvalidSourceState)
}

func TestRepublishAsDraftWithOverrides(t *testing.T) {
	f := newVersionChainFixture(t)

	future := f.now.Add(time.Hour)
	source := f.assignments.seed(models.Assignment{
		CourseID: 1, Title: "hw", Description: "old", Version: 1,
		Status: string(lifecycle.StatusPublished), DueAt: &future,
	})
	require.NoError(t, f.attachments.ReplaceForAssignment(context.Background(), source.ID, []uint{1, 2}))

	draft := false
	description := "updated brief"
	newDue := f.now.Add(24 * time.Hour).Format(time.RFC3339)
	resp, err := f.svc.Republish(context.Background(), source.ID, dto.RepublishRequest{
		NewDueAt:           newDue,
		NewDescription:     &description,
		PublishImmediately: &draft,
		InheritAttachments: true,
		Reason:             "brief rewrite",
	}, Actor{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, "DRAFT", resp.Status)

	successor, err := f.assignments.GetByID(context.Background(), resp.NewAssignmentID)
	require.NoError(t, err)
	assert.Equal(t, "updated brief", successor.Description)
	assert.Nil(t, successor.PublishedAt)

	inherited, err := f.attachments.ListForAssignment(context.Background(), resp.NewAssignmentID)
	require.NoError(t, err)
	assert.Len(t, inherited, 2)
}

func TestRepublishOpenSourceRequiresReason(t *testing.T) {
	f := newVersionChainFixture(t)

	future := f.now.Add(time.Hour)
	source := f.assignments.seed(models.Assignment{
		CourseID: 1, Title: "hw", Version: 1,
		Status: string(lifecycle.StatusPublished), DueAt: &future,
	})

	newDue := f.now.Add(24 * time.Hour).Format(time.RFC3339)
	_, err := f.svc.Republish(context.Background(), source.ID, dto.RepublishRequest{
		NewDueAt: newDue,
		Reason:   "   ",
	}, Actor{ID: 7})
	assert.ErrorIs(t, err, ErrReasonRequired)
}

func TestRepublishRetriesOnVersionCollision(t *testing.T) {
	f := newVersionChainFixture(t)

	past := f.now.Add(-time.Hour)
	source := f.assignments.seed(models.Assignment{
		ID: 10, CourseID: 1, Title: "hw", Version: 1,
		Status: string(lifecycle.StatusClosed), DueAt: &past,
	})

	// First insert loses the unique-index race; the retry succeeds.
	f.assignments.createErrs = []error{gorm.ErrDuplicatedKey}

	newDue := f.now.Add(24 * time.Hour).Format(time.RFC3339)
	resp, err := f.svc.Republish(context.Background(), source.ID, dto.RepublishRequest{NewDueAt: newDue}, Actor{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Version)
}

func TestRepublishConflictAfterRetry(t *testing.T) {
	f := newVersionChainFixture(t)

	past := f.now.Add(-time.Hour)
	source := f.assignments.seed(models.Assignment{
		ID: 10, CourseID: 1, Title: "hw", Version: 1,
		Status: string(lifecycle.StatusClosed), DueAt: &past,
	})

	f.assignments.createErrs = []error{gorm.ErrDuplicatedKey, gorm.ErrDuplicatedKey}

	newDue := f.now.Add(24 * time.Hour).Format(time.RFC3339)
	_, err := f.svc.Republish(context.Background(), source.ID, dto.RepublishRequest{NewDueAt: newDue}, Actor{ID: 7})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestListVersionsReturnsWholeChain(t *testing.T) {
	f := newVersionChainFixture(t)

	origin := uint(10)
	past := f.now.Add(-time.Hour)
	future := f.now.Add(time.Hour)
	f.assignments.seed(models.Assignment{
		ID: 10, CourseID: 1, Title: "hw", Version: 1,
		Status: string(lifecycle.StatusPublished), DueAt: &past,
	})
	f.assignments.seed(models.Assignment{
		ID: 11, CourseID: 1, Title: "hw", Version: 2, OriginID: &origin,
		Status: string(lifecycle.StatusPublished), DueAt: &future,
	})

	// Asking from either end yields the same chain, oldest first.
	for _, id := range []uint{10, 11} {
		chain, err := f.svc.ListVersions(context.Background(), id)
		require.NoError(t, err)
		require.Len(t, chain, 2)
		assert.Equal(t, 1, chain[0].Version)
		assert.Equal(t, "CLOSED", chain[0].Status)
		assert.Equal(t, 2, chain[1].Version)
		assert.Equal(t, "PUBLISHED", chain[1].Status)
	}
}
