package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/usst-spm/course-api/internal/dto"
	"github.com/usst-spm/course-api/internal/models"
	"github.com/usst-spm/course-api/internal/observability"
	"github.com/usst-spm/course-api/internal/repository"
)

// GradingService maintains the grade ledger. Every score mutation appends a
// GradeHistory row; history is append-only and survives later regrades.
type GradingService interface {
	UpdateScore(ctx context.Context, submissionID uint, payload dto.UpdateScoreRequest, operator Actor) (dto.GradeResponse, error)
	Release(ctx context.Context, submissionID uint, operator Actor) (dto.GradeResponse, error)
	GetGrade(ctx context.Context, submissionID uint) (dto.GradeResponse, error)
	History(ctx context.Context, submissionID uint, requester Actor) ([]dto.GradeHistoryResponse, error)
	MyGrades(ctx context.Context, studentID uint) ([]dto.StudentGradeResponse, error)
}

type gradingService struct {
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	users       repository.UserRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	events      EventPublisher
	locks       *keyedLock
	tracer      trace.Tracer
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService builds the grading service.
func NewGradingService(
	submissions repository.SubmissionRepository,
	grades repository.GradeRepository,
	users repository.UserRepository,
	validate *validator.Validate,
	activity ActivityRecorder,
	events EventPublisher,
	logger zerolog.Logger,
) GradingService {
	return &gradingService{
		submissions: submissions,
		grades:      grades,
		users:       users,
		validator:   validate,
		activity:    activity,
		events:      events,
		locks:       newKeyedLock(),
		tracer:      otel.Tracer("grading"),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}
}

func (s *gradingService) UpdateScore(ctx context.Context, submissionID uint, payload dto.UpdateScoreRequest, operator Actor) (dto.GradeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.update_score",
		trace.WithAttributes(
			attribute.Int64("submission.id", int64(submissionID)),
			attribute.Int("grade.new_score", payload.NewScore),
		))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.GradeResponse{}, err
	}
	if strings.TrimSpace(payload.Reason) == "" {
		return dto.GradeResponse{}, ErrReasonRequired
	}

	submission, err := s.fetchSubmission(ctx, submissionID)
	if err != nil {
		return dto.GradeResponse{}, err
	}

	// The preload yields a zero-value Assignment when the parent was
	// soft-deleted out from under the submission; grading such orphans is
	// rejected rather than scored against a zero total.
	if submission.Assignment.ID == 0 {
		return dto.GradeResponse{}, ErrAssignmentNotFound
	}

	if payload.NewScore < 0 || payload.NewScore > submission.Assignment.TotalScore {
		return dto.GradeResponse{}, ErrScoreOutOfRange
	}

	now := s.now()

	// Serialize graders touching the same submission so two first-time
	// gradings cannot both observe "no grade yet". The unique active-grade
	// index backs this up for writers on other nodes.
	release := s.locks.Acquire(fmt.Sprintf("grade:%d", submissionID))
	defer release()

	grade, err := s.grades.GetBySubmission(ctx, submissionID)
	var oldScore *int
	var oldFeedback string
	switch {
	case err == nil:
		previous := grade.Score
		oldScore = &previous
		oldFeedback = grade.Feedback
	case errors.Is(err, gorm.ErrRecordNotFound):
		grade = models.Grade{SubmissionID: submissionID}
	default:
		return dto.GradeResponse{}, err
	}

	grade.ScorerID = operator.ID
	grade.Score = payload.NewScore
	grade.ChangeReason = payload.Reason
	if payload.Feedback != nil {
		grade.Feedback = *payload.Feedback
	}

	history := models.GradeHistory{
		SubmissionID: submissionID,
		ScorerID:     operator.ID,
		OldScore:     oldScore,
		NewScore:     payload.NewScore,
		OldFeedback:  oldFeedback,
		NewFeedback:  grade.Feedback,
		ChangeReason: payload.Reason,
		OperatorID:   operator.ID,
		OperatorRole: operator.Role,
		ChangedAt:    now,
	}

	err = s.grades.SaveWithHistory(ctx, &grade, &history)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A grader on another node inserted the grade between our read and
		// our write; the unique active-grade index rejected ours. Retry as
		// an update of the winner's row, recording its score as the old one.
		winner, readErr := s.grades.GetBySubmission(ctx, submissionID)
		if readErr != nil {
			return dto.GradeResponse{}, ErrConflict
		}
		previous := winner.Score
		oldScore = &previous
		grade.ID = winner.ID
		grade.CreatedAt = winner.CreatedAt
		history.OldScore = oldScore
		history.OldFeedback = winner.Feedback
		err = s.grades.SaveWithHistory(ctx, &grade, &history)
	}
	if err != nil {
		return dto.GradeResponse{}, err
	}

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    operator.ID,
			ActorRole:  operator.Role,
			Action:     "grade.updated",
			EntityType: "submission",
			EntityID:   &submissionID,
			Metadata: map[string]interface{}{
				"old_score": oldScore,
				"new_score": payload.NewScore,
				"reason":    payload.Reason,
			},
		})
	}
	observability.GradeMutations().Inc()
	publishEvent(ctx, s.events, s.logger, DomainEvent{
		Type:     EventGradeUpdated,
		EntityID: submissionID,
		Metadata: map[string]interface{}{"new_score": payload.NewScore},
	})

	s.logger.Info().
		Uint("submission_id", submissionID).
		Int("new_score", payload.NewScore).
		Msg("score updated")

	return dto.NewGradeResponse(grade), nil
}

// Release makes the grade visible to the student. Releasing an already
// released grade is a no-op.
func (s *gradingService) Release(ctx context.Context, submissionID uint, operator Actor) (dto.GradeResponse, error) {
	grade, err := s.grades.GetBySubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeResponse{}, ErrGradeNotFound
		}
		return dto.GradeResponse{}, err
	}

	if !grade.Released {
		grade.Released = true
		if err := s.grades.Update(ctx, &grade); err != nil {
			return dto.GradeResponse{}, err
		}

		publishEvent(ctx, s.events, s.logger, DomainEvent{
			Type:     EventGradeReleased,
			EntityID: submissionID,
		})
		s.logger.Info().Uint("submission_id", submissionID).Msg("grade released")
	}

	return dto.NewGradeResponse(grade), nil
}

func (s *gradingService) GetGrade(ctx context.Context, submissionID uint) (dto.GradeResponse, error) {
	grade, err := s.grades.GetBySubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeResponse{}, ErrGradeNotFound
		}
		return dto.GradeResponse{}, err
	}

	return dto.NewGradeResponse(grade), nil
}

// History returns the ledger entries for a submission, newest first.
// Students may only read the history of their own submission.
func (s *gradingService) History(ctx context.Context, submissionID uint, requester Actor) ([]dto.GradeHistoryResponse, error) {
	submission, err := s.fetchSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	if requester.Role == models.RoleStudent && submission.StudentID != requester.ID {
		return nil, ErrForbidden
	}

	entries, err := s.grades.ListHistory(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	names := make(map[uint]string)
	responses := make([]dto.GradeHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		name, ok := names[entry.OperatorID]
		if !ok {
			if operator, userErr := s.users.GetByID(ctx, entry.OperatorID); userErr == nil {
				name = operator.Name
			}
			names[entry.OperatorID] = name
		}
		responses = append(responses, dto.NewGradeHistoryResponse(entry, name))
	}

	return responses, nil
}

// MyGrades lists the student's released grades with their assignment
// context. Unreleased grades stay invisible.
func (s *gradingService) MyGrades(ctx context.Context, studentID uint) ([]dto.StudentGradeResponse, error) {
	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(submissions))
	for _, submission := range submissions {
		ids = append(ids, submission.ID)
	}
	grades, err := s.grades.ListBySubmissions(ctx, ids)
	if err != nil {
		return nil, err
	}
	gradeBySubmission := make(map[uint]models.Grade, len(grades))
	for _, grade := range grades {
		gradeBySubmission[grade.SubmissionID] = grade
	}

	responses := make([]dto.StudentGradeResponse, 0, len(submissions))
	for _, submission := range submissions {
		grade, ok := gradeBySubmission[submission.ID]
		if !ok || !grade.Released {
			continue
		}
		responses = append(responses, dto.StudentGradeResponse{
			SubmissionID:    submission.ID,
			AssignmentID:    submission.AssignmentID,
			AssignmentTitle: submission.Assignment.Title,
			Score:           grade.Score,
			Feedback:        grade.Feedback,
			SubmittedAt:     submission.SubmittedAt,
			GradedAt:        grade.UpdatedAt,
		})
	}

	return responses, nil
}

func (s *gradingService) fetchSubmission(ctx context.Context, submissionID uint) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	return submission, nil
}
