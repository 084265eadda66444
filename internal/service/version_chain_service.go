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

// VersionChainService creates and inspects assignment version chains. A
// republish never mutates the source row: it appends a successor with the
// next version number in the lineage.
type VersionChainService interface {
	Republish(ctx context.Context, sourceID uint, payload dto.RepublishRequest, actor Actor) (dto.RepublishResponse, error)
	ListVersions(ctx context.Context, assignmentID uint) ([]dto.AssignmentResponse, error)
}

type versionChainService struct {
	assignments repository.AssignmentRepository
	attachments repository.AttachmentRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	events      EventPublisher
	locks       *keyedLock
	logger      zerolog.Logger
	now         func() time.Time
}

// NewVersionChainService builds the republish service.
func NewVersionChainService(
	assignments repository.AssignmentRepository,
	attachments repository.AttachmentRepository,
	validate *validator.Validate,
	activity ActivityRecorder,
	events EventPublisher,
	logger zerolog.Logger,
) VersionChainService {
	return &versionChainService{
		assignments: assignments,
		attachments: attachments,
		validator:   validate,
		activity:    activity,
		events:      events,
		locks:       newKeyedLock(),
		logger:      logger.With().Str("component", "version_chain_service").Logger(),
		now:         time.Now,
	}
}

func (s *versionChainService) Republish(ctx context.Context, sourceID uint, payload dto.RepublishRequest, actor Actor) (dto.RepublishResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RepublishResponse{}, err
	}

	source, err := s.assignments.GetByID(ctx, sourceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RepublishResponse{}, ErrAssignmentNotFound
		}
		return dto.RepublishResponse{}, err
	}

	now := s.now()
	status := lifecycle.DeriveEffectiveStatus(lifecycle.Status(source.Status), source.DueAt, now)
	if !lifecycle.CanRepublish(status) {
		return dto.RepublishResponse{}, ErrInvalidSourceState
	}

	// Superseding an assignment students can still submit to needs an
	// explicit reason; a past-due source speaks for itself.
	if !source.IsPastDue(now) && strings.TrimSpace(payload.Reason) == "" {
		return dto.RepublishResponse{}, ErrReasonRequired
	}

	newDueAt, err := time.Parse(time.RFC3339, payload.NewDueAt)
	if err != nil {
		return dto.RepublishResponse{}, fmt.Errorf("invalid due date: %w", err)
	}

	lineageID := source.LineageID()

	// Version numbers are assigned under a per-lineage lock, backed by the
	// unique (origin_id, version) index for writers on other nodes.
	release := s.locks.Acquire(fmt.Sprintf("lineage:%d", lineageID))
	defer release()

	successor, err := s.createSuccessor(ctx, source, lineageID, newDueAt, payload, now, actor)
	if err != nil {
		return dto.RepublishResponse{}, err
	}

	if payload.InheritAttachments {
		if err := s.attachments.CopyForAssignment(ctx, source.ID, successor.ID); err != nil {
			return dto.RepublishResponse{}, err
		}
	} else if len(payload.AttachmentIDs) > 0 {
		if err := s.attachments.ReplaceForAssignment(ctx, successor.ID, payload.AttachmentIDs); err != nil {
			return dto.RepublishResponse{}, err
		}
	}

	if s.activity != nil {
		_, _ = s.activity.Record(ctx, ActivityEntry{
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Action:     "assignment.republished",
			EntityType: "assignment",
			EntityID:   &successor.ID,
			Metadata: map[string]interface{}{
				"source_id":  source.ID,
				"lineage_id": lineageID,
				"version":    successor.Version,
				"reason":     payload.Reason,
			},
		})
	}
	observability.LifecycleTransitions().WithLabelValues(successor.Status).Inc()
	publishEvent(ctx, s.events, s.logger, DomainEvent{
		Type:     EventAssignmentRepublished,
		EntityID: successor.ID,
		Metadata: map[string]interface{}{"source_id": source.ID, "version": successor.Version},
	})

	s.logger.Info().
		Uint("source_id", source.ID).
		Uint("new_id", successor.ID).
		Int("version", successor.Version).
		Msg("assignment republished")

	return dto.RepublishResponse{
		NewAssignmentID: successor.ID,
		Version:         successor.Version,
		Status:          successor.Status,
	}, nil
}

// createSuccessor inserts the next version row. A duplicate-key failure
// means another writer took the version number between our read and insert;
// one re-read and retry resolves it, a second failure surfaces as a
// conflict.
func (s *versionChainService) createSuccessor(
	ctx context.Context,
	source models.Assignment,
	lineageID uint,
	newDueAt time.Time,
	payload dto.RepublishRequest,
	now time.Time,
	actor Actor,
) (models.Assignment, error) {
	for attempt := 0; attempt < 2; attempt++ {
		maxVersion, err := s.assignments.MaxVersionInLineage(ctx, lineageID)
		if err != nil {
			return models.Assignment{}, err
		}

		description := source.Description
		if payload.NewDescription != nil {
			description = *payload.NewDescription
		}

		publish := true
		if payload.PublishImmediately != nil {
			publish = *payload.PublishImmediately
		}

		successor := models.Assignment{
			CourseID:         source.CourseID,
			Title:            source.Title,
			Description:      description,
			Type:             source.Type,
			TotalScore:       source.TotalScore,
			AllowResubmit:    source.AllowResubmit,
			MaxResubmitCount: source.MaxResubmitCount,
			DueAt:            &newDueAt,
			Version:          maxVersion + 1,
			OriginID:         &lineageID,
			Status:           string(lifecycle.StatusDraft),
			CreatedBy:        actor.ID,
			UpdatedBy:        actor.ID,
		}
		if publish {
			publishedAt := now
			successor.Status = string(lifecycle.StatusPublished)
			successor.PublishedAt = &publishedAt
		}

		err = s.assignments.Create(ctx, &successor)
		if err == nil {
			return successor, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.Assignment{}, err
		}

		s.logger.Warn().
			Uint("lineage_id", lineageID).
			Int("version", successor.Version).
			Msg("version number taken by concurrent republish, retrying")
	}

	return models.Assignment{}, ErrConflict
}

func (s *versionChainService) ListVersions(ctx context.Context, assignmentID uint) ([]dto.AssignmentResponse, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, err
	}

	chain, err := s.assignments.ListLineage(ctx, assignment.LineageID())
	if err != nil {
		return nil, err
	}

	now := s.now()
	responses := make([]dto.AssignmentResponse, 0, len(chain))
	for _, version := range chain {
		effective := lifecycle.DeriveEffectiveStatus(lifecycle.Status(version.Status), version.DueAt, now)
		responses = append(responses, dto.NewAssignmentResponse(version, string(effective)))
	}

	return responses, nil
}
