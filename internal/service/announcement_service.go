package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/usst-spm/course-api/internal/dto"
	"github.com/usst-spm/course-api/internal/models"
	"github.com/usst-spm/course-api/internal/repository"
)

const defaultAnnouncementTTL = 5 * time.Minute

// AnnouncementService manages course notices. Content is sanitized on the
// way in, and course listings are cached in Redis.
type AnnouncementService interface {
	Create(ctx context.Context, payload dto.AnnouncementCreateRequest, actorID uint) (dto.AnnouncementResponse, error)
	Get(ctx context.Context, id uint) (dto.AnnouncementResponse, error)
	ListForCourse(ctx context.Context, courseID uint) ([]dto.AnnouncementResponse, error)
	Update(ctx context.Context, id uint, payload dto.AnnouncementUpdateRequest) (dto.AnnouncementResponse, error)
	Delete(ctx context.Context, id uint) error
}

type announcementService struct {
	repo      repository.AnnouncementRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	sanitizer *bluemonday.Policy
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAnnouncementService builds the announcement service. The Redis client
// may be nil, in which case listings always hit the database.
func NewAnnouncementService(repo repository.AnnouncementRepository, cache *redis.Client, cacheTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) AnnouncementService {
	if cacheTTL <= 0 {
		cacheTTL = defaultAnnouncementTTL
	}
	return &announcementService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		sanitizer: bluemonday.UGCPolicy(),
		validator: validate,
		logger:    logger.With().Str("component", "announcement_service").Logger(),
	}
}

func (s *announcementService) Create(ctx context.Context, payload dto.AnnouncementCreateRequest, actorID uint) (dto.AnnouncementResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	announcement := models.Announcement{
		CourseID:  payload.CourseID,
		Title:     strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		Content:   s.sanitizer.Sanitize(payload.Content),
		CreatedBy: actorID,
	}

	if err := s.repo.Create(ctx, &announcement); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	s.invalidate(ctx, announcement.CourseID)
	s.logger.Info().Uint("announcement_id", announcement.ID).Msg("announcement created")

	return dto.NewAnnouncementResponse(announcement), nil
}

func (s *announcementService) Get(ctx context.Context, id uint) (dto.AnnouncementResponse, error) {
	announcement, err := s.fetch(ctx, id)
	if err != nil {
		return dto.AnnouncementResponse{}, err
	}

	return dto.NewAnnouncementResponse(announcement), nil
}

func (s *announcementService) ListForCourse(ctx context.Context, courseID uint) ([]dto.AnnouncementResponse, error) {
	key := announcementCacheKey(courseID)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key).Result()
		if err == nil {
			var responses []dto.AnnouncementResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &responses); unmarshalErr == nil {
				return responses, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("announcement cache read failed")
		}
	}

	announcements, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	responses := dto.NewAnnouncementResponseSlice(announcements)

	if s.cache != nil {
		if payload, marshalErr := json.Marshal(responses); marshalErr == nil {
			if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("announcement cache write failed")
			}
		}
	}

	return responses, nil
}

func (s *announcementService) Update(ctx context.Context, id uint, payload dto.AnnouncementUpdateRequest) (dto.AnnouncementResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	announcement, err := s.fetch(ctx, id)
	if err != nil {
		return dto.AnnouncementResponse{}, err
	}

	if payload.Title != nil {
		announcement.Title = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Title))
	}
	if payload.Content != nil {
		announcement.Content = s.sanitizer.Sanitize(*payload.Content)
	}

	if err := s.repo.Update(ctx, &announcement); err != nil {
		return dto.AnnouncementResponse{}, err
	}

	s.invalidate(ctx, announcement.CourseID)

	return dto.NewAnnouncementResponse(announcement), nil
}

func (s *announcementService) Delete(ctx context.Context, id uint) error {
	announcement, err := s.fetch(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnnouncementNotFound
		}
		return err
	}

	s.invalidate(ctx, announcement.CourseID)
	return nil
}

func (s *announcementService) fetch(ctx context.Context, id uint) (models.Announcement, error) {
	announcement, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Announcement{}, ErrAnnouncementNotFound
		}
		return models.Announcement{}, err
	}

	return announcement, nil
}

func (s *announcementService) invalidate(ctx context.Context, courseID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, announcementCacheKey(courseID)).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("announcement cache invalidation failed")
	}
}

func announcementCacheKey(courseID uint) string {
	return fmt.Sprintf("announcements:course:%d", courseID)
}
