package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/usst-spm/course-api/internal/dto"
	"github.com/usst-spm/course-api/internal/lifecycle"
	"github.com/usst-spm/course-api/internal/models"
	"github.com/usst-spm/course-api/internal/observability"
	"github.com/usst-spm/course-api/internal/repository"
)

// SubmissionService handles student work intake. Resubmission reuses the
// existing row: content is replaced and the resubmit counter increments, so
// a student never holds more than one live submission per assignment.
type SubmissionService interface {
	Submit(ctx context.Context, assignmentID uint, payload dto.SubmitRequest, student Actor) (dto.SubmissionResponse, error)
	MySubmission(ctx context.Context, assignmentID, studentID uint) (dto.SubmissionResponse, error)
	ListForAssignment(ctx context.Context, assignmentID uint) ([]dto.SubmissionResponse, error)
}

type submissionService struct {
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	attachments repository.AttachmentRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	events      EventPublisher
	locks       *keyedLock
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService builds the submission service.
func NewSubmissionService(
	assignments repository.AssignmentRepository,
	submissions repository.SubmissionRepository,
	grades repository.GradeRepository,
	attachments repository.AttachmentRepository,
	validate *validator.Validate,
	activity ActivityRecorder,
	events EventPublisher,
	logger zerolog.Logger,
) SubmissionService {
	return &submissionService{
		assignments: assignments,
		submissions: submissions,
		grades:      grades,
		attachments: attachments,
		validator:   validate,
		activity:    activity,
		events:      events,
		locks:       newKeyedLock(),
		sanitizer:   bluemonday.UGCPolicy(),
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, assignmentID uint, payload dto.SubmitRequest, student Actor) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}
	payload.Content = s.sanitizer.Sanitize(payload.Content)

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrAssignmentNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	now := s.now()
	status := lifecycle.DeriveEffectiveStatus(lifecycle.Status(assignment.Status), assignment.DueAt, now)
	switch status {
	case lifecycle.StatusDraft:
		// Drafts are invisible to students.
		return dto.SubmissionResponse{}, ErrAssignmentNotFound
	case lifecycle.StatusPublished:
	default:
		return dto.SubmissionResponse{}, ErrPastDue
	}
	if assignment.IsPastDue(now) {
		return dto.SubmissionResponse{}, ErrPastDue
	}

	release := s.locks.Acquire(fmt.Sprintf("submission:%d:%d", assignmentID, student.ID))
	defer release()

	submission, err := s.submissions.GetActive(ctx, assignmentID, student.ID)
	switch {
	case err == nil:
		submission, err = s.resubmit(ctx, assignment, submission, payload, now)
	case errors.Is(err, gorm.ErrRecordNotFound):
		submission, err = s.firstSubmit(ctx, assignment, payload, student.ID, now)
	default:
		return dto.SubmissionResponse{}, err
	}
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if payload.AttachmentIDs != nil {
		if err := s.attachments.ReplaceForSubmission(ctx, submission.ID, payload.AttachmentIDs); err != nil {
			return dto.SubmissionResponse{}, err
		}
	}

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    student.ID,
			ActorRole:  student.Role,
			Action:     "submission.received",
			EntityType: "submission",
			EntityID:   &submission.ID,
			Metadata: map[string]interface{}{
				"assignment_id":  assignment.ID,
				"resubmit_count": submission.ResubmitCount,
			},
		})
	}
	observability.SubmissionsReceived().Inc()
	publishEvent(ctx, s.events, s.logger, DomainEvent{
		Type:     EventSubmissionReceived,
		EntityID: submission.ID,
		Metadata: map[string]interface{}{"assignment_id": assignment.ID},
	})

	s.logger.Info().
		Uint("assignment_id", assignment.ID).
		Uint("submission_id", submission.ID).
		Int("resubmit_count", submission.ResubmitCount).
		Msg("submission received")

	response := dto.NewSubmissionResponse(submission)
	response.AttachmentFileIDs = payload.AttachmentIDs
	return response, nil
}

// firstSubmit inserts the initial submission row. If a concurrent request
// for the same (assignment, student) pair wins the insert race on another
// node, the unique index rejects ours and we fall through to the
// resubmission path against the winner's row.
func (s *submissionService) firstSubmit(ctx context.Context, assignment models.Assignment, payload dto.SubmitRequest, studentID uint, now time.Time) (models.Submission, error) {
	submission := models.Submission{
		AssignmentID:  assignment.ID,
		StudentID:     studentID,
		Content:       payload.Content,
		Status:        models.SubmissionStatusSubmitted,
		SubmittedAt:   now,
		ResubmitCount: 0,
	}

	err := s.submissions.Create(ctx, &submission)
	if err == nil {
		return submission, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return models.Submission{}, err
	}

	existing, readErr := s.submissions.GetActive(ctx, assignment.ID, studentID)
	if readErr != nil {
		return models.Submission{}, ErrConflict
	}
	return s.resubmit(ctx, assignment, existing, payload, now)
}

func (s *submissionService) resubmit(ctx context.Context, assignment models.Assignment, submission models.Submission, payload dto.SubmitRequest, now time.Time) (models.Submission, error) {
	if !assignment.AllowResubmit {
		return models.Submission{}, ErrResubmitNotAllowed
	}
	// A zero quota means unlimited resubmissions.
	if assignment.MaxResubmitCount > 0 && submission.ResubmitCount >= assignment.MaxResubmitCount {
		return models.Submission{}, ErrResubmitLimitExceeded
	}

	submission.Content = payload.Content
	submission.Status = models.SubmissionStatusSubmitted
	submission.SubmittedAt = now
	submission.ResubmitCount++

	if err := s.submissions.Update(ctx, &submission); err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (s *submissionService) MySubmission(ctx context.Context, assignmentID, studentID uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetActive(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	response := dto.NewSubmissionResponse(submission)

	links, err := s.attachments.ListForSubmission(ctx, submission.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	for _, link := range links {
		response.AttachmentFileIDs = append(response.AttachmentFileIDs, link.FileID)
	}

	// Students only ever see released grades.
	grade, err := s.grades.GetBySubmission(ctx, submission.ID)
	switch {
	case err == nil:
		if grade.Released {
			score := grade.Score
			response.Score = &score
			response.Feedback = grade.Feedback
			response.Released = true
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return dto.SubmissionResponse{}, err
	}

	return response, nil
}

func (s *submissionService) ListForAssignment(ctx context.Context, assignmentID uint) ([]dto.SubmissionResponse, error) {
	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{AssignmentID: assignmentID})
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

	responses := make([]dto.SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		response := dto.NewSubmissionResponse(submission)
		// Teachers see the working grade regardless of release state.
		if grade, ok := gradeBySubmission[submission.ID]; ok {
			score := grade.Score
			response.Score = &score
			response.Feedback = grade.Feedback
			response.Released = grade.Released
		}
		responses = append(responses, response)
	}

	return responses, nil
}
