package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/usst-spm/course-api/internal/dto"
	"github.com/usst-spm/course-api/internal/lifecycle"
	"github.com/usst-spm/course-api/internal/models"
	"github.com/usst-spm/course-api/internal/observability"
	"github.com/usst-spm/course-api/internal/repository"
)

// AssignmentService exposes the assignment lifecycle use cases. Status
// checks always run against the effective (deadline-derived) status, never
// the raw stored value.
type AssignmentService interface {
	Create(ctx context.Context, payload dto.AssignmentCreateRequest, actorID uint) (dto.AssignmentResponse, error)
	Get(ctx context.Context, id uint) (dto.AssignmentResponse, error)
	ListForCourse(ctx context.Context, courseID uint) ([]dto.AssignmentResponse, error)
	ListForStudent(ctx context.Context, courseID, studentID uint, statusFilter string) ([]dto.AssignmentResponse, error)
	Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest, actorID uint) (dto.AssignmentResponse, error)
	Publish(ctx context.Context, id uint, actor Actor) (dto.AssignmentResponse, error)
	Unpublish(ctx context.Context, id uint, actor Actor) (dto.AssignmentResponse, error)
	Close(ctx context.Context, id uint, actor Actor) (dto.AssignmentResponse, error)
	Archive(ctx context.Context, id uint, actor Actor) (dto.AssignmentResponse, error)
	Delete(ctx context.Context, id uint, actor Actor) error
	Copy(ctx context.Context, id uint, actorID uint) (dto.AssignmentResponse, error)
}

type assignmentService struct {
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	attachments repository.AttachmentRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	events      EventPublisher
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAssignmentService builds a new assignment service.
func NewAssignmentService(
	assignments repository.AssignmentRepository,
	submissions repository.SubmissionRepository,
	grades repository.GradeRepository,
	attachments repository.AttachmentRepository,
	validate *validator.Validate,
	activity ActivityRecorder,
	events EventPublisher,
	logger zerolog.Logger,
) AssignmentService {
	return &assignmentService{
		assignments: assignments,
		submissions: submissions,
		grades:      grades,
		attachments: attachments,
		validator:   validate,
		activity:    activity,
		events:      events,
		logger:      logger.With().Str("component", "assignment_service").Logger(),
		now:         time.Now,
	}
}

func (s *assignmentService) Create(ctx context.Context, payload dto.AssignmentCreateRequest, actorID uint) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	dueAt, err := parseDueAt(payload.DueAt)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	totalScore := 100
	if payload.TotalScore != nil {
		totalScore = *payload.TotalScore
	}
	maxResubmit := 0
	if payload.MaxResubmitCount != nil {
		maxResubmit = *payload.MaxResubmitCount
	}

	assignment := models.Assignment{
		CourseID:         payload.CourseID,
		Title:            strings.TrimSpace(payload.Title),
		Description:      payload.Description,
		Type:             payload.Type,
		TotalScore:       totalScore,
		AllowResubmit:    payload.AllowResubmit,
		MaxResubmitCount: maxResubmit,
		DueAt:            dueAt,
		Version:          1,
		OriginID:         nil,
		Status:           string(lifecycle.StatusDraft),
		CreatedBy:        actorID,
		UpdatedBy:        actorID,
	}

	if err := s.assignments.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	if len(payload.AttachmentIDs) > 0 {
		if err := s.attachments.ReplaceForAssignment(ctx, assignment.ID, payload.AttachmentIDs); err != nil {
			return dto.AssignmentResponse{}, err
		}
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Msg("assignment created")

	return s.toResponse(assignment), nil
}

func (s *assignmentService) Get(ctx context.Context, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.fetch(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	return s.toResponse(assignment), nil
}

func (s *assignmentService) ListForCourse(ctx context.Context, courseID uint) ([]dto.AssignmentResponse, error) {
	assignments, err := s.assignments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, s.toResponse(assignment))
	}

	return responses, nil
}

func (s *assignmentService) ListForStudent(ctx context.Context, courseID, studentID uint, statusFilter string) ([]dto.AssignmentResponse, error) {
	assignments, err := s.assignments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	responses := make([]dto.AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		response := s.toResponse(assignment)
		response.SubmissionStatus = dto.SubmissionViewProgress

		submission, err := s.submissions.GetActive(ctx, assignment.ID, studentID)
		switch {
		case err == nil:
			submittedAt := submission.SubmittedAt
			response.SubmittedAt = &submittedAt
			response.SubmissionStatus = dto.SubmissionViewSubmitted

			grade, gradeErr := s.grades.GetBySubmission(ctx, submission.ID)
			if gradeErr == nil && grade.Released {
				score := grade.Score
				response.Score = &score
				response.Feedback = grade.Feedback
				response.SubmissionStatus = dto.SubmissionViewGraded
			} else if gradeErr != nil && !errors.Is(gradeErr, gorm.ErrRecordNotFound) {
				return nil, gradeErr
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if assignment.IsPastDue(now) {
				response.SubmissionStatus = dto.SubmissionViewEnded
			}
		default:
			return nil, err
		}

		if statusFilter != "" && statusFilter != "all" && statusFilter != response.SubmissionStatus {
			continue
		}
		responses = append(responses, response)
	}

	return responses, nil
}

func (s *assignmentService) Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest, actorID uint) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.fetch(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	now := s.now()
	status := lifecycle.DeriveEffectiveStatus(lifecycle.Status(assignment.Status), assignment.DueAt, now)

	if status == lifecycle.StatusClosed || status == lifecycle.StatusArchived {
		return dto.AssignmentResponse{}, ErrNotEditable
	}

	if err := applyEdits(&assignment, payload, status); err != nil {
		return dto.AssignmentResponse{}, err
	}

	// Deadline changes can flip the effective status; recompute and store
	// it so the persisted value does not drift from the derivation.
	assignment.Status = string(lifecycle.DeriveEffectiveStatus(status, assignment.DueAt, now))
	assignment.UpdatedBy = actorID

	if err := s.assignments.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	if payload.AttachmentIDs != nil {
		if err := s.attachments.ReplaceForAssignment(ctx, assignment.ID, payload.AttachmentIDs); err != nil {
			return dto.AssignmentResponse{}, err
		}
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Msg("assignment updated")

	return s.toResponse(assignment), nil
}

func (s *assignmentService) Publish(ctx context.Context, id uint, actor Actor) (dto.AssignmentResponse, error) {
	assignment, err := s.fetch(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	now := s.now()
	status := lifecycle.DeriveEffectiveStatus(lifecycle.Status(assignment.Status), assignment.DueAt, now)
	if !lifecycle.CanPublish(status) {
		return dto.AssignmentResponse{}, &lifecycle.TransitionError{From: status, To: lifecycle.StatusPublished}
	}

	if strings.TrimSpace(assignment.Title) == "" {
		return dto.AssignmentResponse{}, ErrTitleRequired
	}
	if assignment.DueAt == nil {
		return dto.AssignmentResponse{}, ErrDueDateRequired
	}

	publishedAt := now
	assignment.Status = string(lifecycle.StatusPublished)
	assignment.PublishedAt = &publishedAt
	assignment.UpdatedBy = actor.ID

	if err := s.assignments.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	observability.LifecycleTransitions().WithLabelValues(string(lifecycle.StatusPublished)).Inc()
	s.recordActivity(ctx, actor, "assignment.published", assignment.ID, map[string]interface{}{
		"course_id": assignment.CourseID,
		"version":   assignment.Version,
	})
	publishEvent(ctx, s.events, s.logger, DomainEvent{Type: EventAssignmentPublished, EntityID: assignment.ID})

	s.logger.Info().Uint("assignment_id", assignment.ID).Msg("assignment published")

	return s.toResponse(assignment), nil
}

func (s *assignmentService) Unpublish(ctx context.Context, id uint, actor Actor) (dto.AssignmentResponse, error) {
	assignment, err := s.fetch(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	// Validate against the stored status so that a published assignment whose
	// deadline has passed is rejected with the past-due reason rather than a
	// generic CLOSED -> DRAFT failure.
	now := s.now()
	if err := lifecycle.ValidateTransition(lifecycle.Status(assignment.Status), lifecycle.StatusDraft, assignment.DueAt, now); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment.Status = string(lifecycle.StatusDraft)
	assignment.UpdatedBy = actor.ID

	if err := s.assignments.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	observability.LifecycleTransitions().WithLabelValues(string(lifecycle.StatusDraft)).Inc()
	s.recordActivity(ctx, actor, "assignment.unpublished", assignment.ID, nil)

	return s.toResponse(assignment), nil
}

func (s *assignmentService) Close(ctx context.Context, id uint, actor Actor) (dto.AssignmentResponse, error) {
	assignment, err := s.fetch(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	now := s.now()
	status := lifecycle.DeriveEffectiveStatus(lifecycle.Status(assignment.Status), assignment.DueAt, now)
	if status != lifecycle.StatusClosed {
		if err := lifecycle.ValidateTransition(status, lifecycle.StatusClosed, assignment.DueAt, now); err != nil {
			return dto.AssignmentResponse{}, err
		}
	}

	assignment.Status = string(lifecycle.StatusClosed)
	assignment.UpdatedBy = actor.ID

	if err := s.assignments.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	observability.LifecycleTransitions().WithLabelValues(string(lifecycle.StatusClosed)).Inc()
	s.recordActivity(ctx, actor, "assignment.closed", assignment.ID, nil)

	return s.toResponse(assignment), nil
}

func (s *assignmentService) Archive(ctx context.Context, id uint, actor Actor) (dto.AssignmentResponse, error) {
	assignment, err := s.fetch(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	now := s.now()
	status := lifecycle.DeriveEffectiveStatus(lifecycle.Status(assignment.Status), assignment.DueAt, now)
	if err := lifecycle.ValidateTransition(status, lifecycle.StatusArchived, assignment.DueAt, now); err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment.Status = string(lifecycle.StatusArchived)
	assignment.UpdatedBy = actor.ID

	if err := s.assignments.Update(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	observability.LifecycleTransitions().WithLabelValues(string(lifecycle.StatusArchived)).Inc()
	s.recordActivity(ctx, actor, "assignment.archived", assignment.ID, nil)
	publishEvent(ctx, s.events, s.logger, DomainEvent{Type: EventAssignmentArchived, EntityID: assignment.ID})

	return s.toResponse(assignment), nil
}

func (s *assignmentService) Delete(ctx context.Context, id uint, actor Actor) error {
	assignment, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	status := lifecycle.DeriveEffectiveStatus(lifecycle.Status(assignment.Status), assignment.DueAt, now)

	switch status {
	case lifecycle.StatusDraft, lifecycle.StatusArchived:
		// Deletable unconditionally.
	case lifecycle.StatusPublished:
		count, err := s.submissions.CountByAssignment(ctx, assignment.ID)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrHasSubmissions
		}
	case lifecycle.StatusClosed:
		return ErrNotDeletable
	default:
		return ErrNotDeletable
	}

	if err := s.assignments.SoftDelete(ctx, assignment.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	s.recordActivity(ctx, actor, "assignment.deleted", assignment.ID, map[string]interface{}{
		"status": string(status),
	})

	s.logger.Info().Uint("assignment_id", id).Msg("assignment deleted")
	return nil
}

// Copy duplicates an assignment as an independent draft. Unlike republish,
// the copy starts a fresh lineage: version 1, no origin.
func (s *assignmentService) Copy(ctx context.Context, id uint, actorID uint) (dto.AssignmentResponse, error) {
	source, err := s.fetch(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	duplicate := models.Assignment{
		CourseID:         source.CourseID,
		Title:            source.Title + " (copy)",
		Description:      source.Description,
		Type:             source.Type,
		TotalScore:       source.TotalScore,
		AllowResubmit:    source.AllowResubmit,
		MaxResubmitCount: source.MaxResubmitCount,
		DueAt:            source.DueAt,
		Version:          1,
		OriginID:         nil,
		Status:           string(lifecycle.StatusDraft),
		CreatedBy:        actorID,
		UpdatedBy:        actorID,
	}

	if err := s.assignments.Create(ctx, &duplicate); err != nil {
		return dto.AssignmentResponse{}, err
	}

	if err := s.attachments.CopyForAssignment(ctx, source.ID, duplicate.ID); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Uint("source_id", source.ID).Uint("copy_id", duplicate.ID).Msg("assignment copied")

	return s.toResponse(duplicate), nil
}

func (s *assignmentService) fetch(ctx context.Context, id uint) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (s *assignmentService) toResponse(assignment models.Assignment) dto.AssignmentResponse {
	effective := lifecycle.DeriveEffectiveStatus(lifecycle.Status(assignment.Status), assignment.DueAt, s.now())
	return dto.NewAssignmentResponse(assignment, string(effective))
}

func (s *assignmentService) recordActivity(ctx context.Context, actor Actor, action string, entityID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	_, _ = s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "assignment",
		EntityID:   &entityID,
		Metadata:   metadata,
	})
}

// applyEdits mutates the assignment in place according to the per-state
// field policy. Forbidden fields fail with an error naming the field.
func applyEdits(assignment *models.Assignment, payload dto.AssignmentUpdateRequest, status lifecycle.Status) error {
	type edit struct {
		field   string
		present bool
		apply   func()
	}

	edits := []edit{
		{lifecycle.FieldTitle, payload.Title != nil, func() { assignment.Title = strings.TrimSpace(*payload.Title) }},
		{lifecycle.FieldDescription, payload.Description != nil, func() { assignment.Description = *payload.Description }},
		{lifecycle.FieldType, payload.Type != nil, func() { assignment.Type = *payload.Type }},
		{lifecycle.FieldTotalScore, payload.TotalScore != nil, func() { assignment.TotalScore = *payload.TotalScore }},
		{lifecycle.FieldAllowResubmit, payload.AllowResubmit != nil, func() { assignment.AllowResubmit = *payload.AllowResubmit }},
		{lifecycle.FieldMaxResubmitCount, payload.MaxResubmitCount != nil, func() { assignment.MaxResubmitCount = *payload.MaxResubmitCount }},
	}

	for _, e := range edits {
		if !e.present {
			continue
		}
		if !lifecycle.CanEditField(status, e.field) {
			return &ImmutableFieldError{Field: e.field, Status: status}
		}
		e.apply()
	}

	if payload.DueAt != nil {
		if !lifecycle.CanEditField(status, lifecycle.FieldDueAt) {
			return &ImmutableFieldError{Field: lifecycle.FieldDueAt, Status: status}
		}
		dueAt, err := parseDueAt(payload.DueAt)
		if err != nil {
			return err
		}
		assignment.DueAt = dueAt
	}

	return nil
}

func parseDueAt(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}

	parsed, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil, fmt.Errorf("invalid due date: %w", err)
	}
	return &parsed, nil
}
