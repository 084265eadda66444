package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain event types emitted by the engine.
const (
	EventAssignmentPublished   = "assignment.published"
	EventAssignmentRepublished = "assignment.republished"
	EventAssignmentArchived    = "assignment.archived"
	EventSubmissionReceived    = "submission.received"
	EventGradeUpdated          = "grade.updated"
	EventGradeReleased         = "grade.released"
)

// DomainEvent describes a state change other systems may react to.
type DomainEvent struct {
	Type     string                 `json:"type"`
	EntityID uint                   `json:"entity_id"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type eventEnvelope struct {
	Source string      `json:"source"`
	Event  DomainEvent `json:"event"`
	SentAt time.Time   `json:"sent_at"`
}

// EventPublisher fans domain events out to interested consumers. Publishing
// is best-effort: engine operations succeed even when the broker is down.
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
}

type eventService struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	nodeID       string
}

// NewEventService constructs an EventPublisher over NATS with a Redis
// pub/sub mirror. Either backend may be nil.
func NewEventService(redisClient *redis.Client, redisChannel string, natsConn *nats.Conn, natsSubject string, logger zerolog.Logger) EventPublisher {
	return &eventService{
		redis:        redisClient,
		redisChannel: redisChannel,
		nats:         natsConn,
		natsSubject:  natsSubject,
		logger:       logger.With().Str("component", "event_service").Logger(),
		nodeID:       uuid.NewString(),
	}
}

func (s *eventService) Publish(ctx context.Context, event DomainEvent) error {
	envelope := eventEnvelope{
		Source: s.nodeID,
		Event:  event,
		SentAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

// publishEvent is the shared best-effort helper used by the engine
// services: a broker failure is logged, never propagated.
func publishEvent(ctx context.Context, publisher EventPublisher, logger zerolog.Logger, event DomainEvent) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn().Err(err).Str("event", event.Type).Msg("failed to publish domain event")
	}
}
