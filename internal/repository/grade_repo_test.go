package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/usst-spm/course-api/internal/models"
)

func TestGradeRepositorySaveWithHistory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradeRepository(db)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)

	grade := models.Grade{SubmissionID: 1, ScorerID: 7, Score: 85, ChangeReason: "initial grading"}
	history := models.GradeHistory{
		SubmissionID: 1, ScorerID: 7, OldScore: nil, NewScore: 85,
		ChangeReason: "initial grading", OperatorID: 7, OperatorRole: "TEACHER",
		ChangedAt: now,
	}
	require.NoError(t, repo.SaveWithHistory(ctx, &grade, &history))
	require.NotZero(t, grade.ID)
	require.Equal(t, grade.ID, history.GradeID)

	// Second mutation reuses the grade row and appends a second entry.
	old := grade.Score
	grade.Score = 90
	grade.ChangeReason = "regrade"
	second := models.GradeHistory{
		SubmissionID: 1, ScorerID: 7, OldScore: &old, NewScore: 90,
		ChangeReason: "regrade", OperatorID: 7, OperatorRole: "TEACHER",
		ChangedAt: now.Add(time.Minute),
	}
	require.NoError(t, repo.SaveWithHistory(ctx, &grade, &second))

	stored, err := repo.GetBySubmission(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 90, stored.Score)

	entries, err := repo.ListHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 90, entries[0].NewScore, "expected newest entry first")
	require.NotNil(t, entries[0].OldScore)
	require.Equal(t, 85, *entries[0].OldScore)
	require.Nil(t, entries[1].OldScore)
}

func TestGradeRepositoryListBySubmissions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradeRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Grade{SubmissionID: 1, Score: 70}).Error)
	require.NoError(t, db.Create(&models.Grade{SubmissionID: 2, Score: 80}).Error)
	require.NoError(t, db.Create(&models.Grade{SubmissionID: 3, Score: 90}).Error)

	grades, err := repo.ListBySubmissions(ctx, []uint{1, 3})
	require.NoError(t, err)
	require.Len(t, grades, 2)

	grades, err = repo.ListBySubmissions(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, grades)
}
