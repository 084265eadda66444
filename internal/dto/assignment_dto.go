package dto

import (
	"time"

	"github.com/usst-spm/course-api/internal/models"
)

// AssignmentCreateRequest describes the payload for creating a draft.
type AssignmentCreateRequest struct {
	CourseID         uint    `json:"course_id" validate:"required"`
	Title            string  `json:"title" validate:"required,min=1,max=255"`
	Description      string  `json:"description"`
	Type             string  `json:"type" validate:"omitempty,max=32"`
	TotalScore       *int    `json:"total_score" validate:"omitempty,gt=0"`
	AllowResubmit    bool    `json:"allow_resubmit"`
	MaxResubmitCount *int    `json:"max_resubmit_count" validate:"omitempty,gte=0"`
	DueAt            *string `json:"due_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	AttachmentIDs    []uint  `json:"attachment_ids"`
}

// AssignmentUpdateRequest describes a partial edit. Which fields are
// accepted depends on the assignment's current status.
type AssignmentUpdateRequest struct {
	Title            *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description      *string `json:"description"`
	Type             *string `json:"type" validate:"omitempty,max=32"`
	TotalScore       *int    `json:"total_score" validate:"omitempty,gt=0"`
	AllowResubmit    *bool   `json:"allow_resubmit"`
	MaxResubmitCount *int    `json:"max_resubmit_count" validate:"omitempty,gte=0"`
	DueAt            *string `json:"due_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	AttachmentIDs    []uint  `json:"attachment_ids"`
}

// RepublishRequest describes the payload for creating a new version of a
// published or closed assignment.
type RepublishRequest struct {
	NewDueAt           string  `json:"new_due_at" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
	NewDescription     *string `json:"new_description"`
	PublishImmediately *bool   `json:"publish_immediately"`
	InheritAttachments bool    `json:"inherit_attachments"`
	AttachmentIDs      []uint  `json:"attachment_ids"`
	Reason             string  `json:"reason"`
}

// RepublishResponse reports the newly created version.
type RepublishResponse struct {
	NewAssignmentID uint   `json:"new_assignment_id"`
	Version         int    `json:"version"`
	Status          string `json:"status"`
}

// AssignmentResponse is the serialized representation returned to clients.
// Status carries the effective (deadline-derived) status, not necessarily
// the stored one.
type AssignmentResponse struct {
	ID               uint       `json:"id"`
	CourseID         uint       `json:"course_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Type             string     `json:"type"`
	TotalScore       int        `json:"total_score"`
	AllowResubmit    bool       `json:"allow_resubmit"`
	MaxResubmitCount int        `json:"max_resubmit_count"`
	DueAt            *time.Time `json:"due_at"`
	Version          int        `json:"version"`
	OriginID         *uint      `json:"origin_id"`
	Status           string     `json:"status"`
	PublishedAt      *time.Time `json:"published_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Student-view decoration, omitted on teacher listings.
	SubmissionStatus string     `json:"submission_status,omitempty"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	Score            *int       `json:"score,omitempty"`
	Feedback         string     `json:"feedback,omitempty"`
}

// NewAssignmentResponse converts a model into a DTO using the provided
// effective status.
func NewAssignmentResponse(model models.Assignment, effectiveStatus string) AssignmentResponse {
	return AssignmentResponse{
		ID:               model.ID,
		CourseID:         model.CourseID,
		Title:            model.Title,
		Description:      model.Description,
		Type:             model.Type,
		TotalScore:       model.TotalScore,
		AllowResubmit:    model.AllowResubmit,
		MaxResubmitCount: model.MaxResubmitCount,
		DueAt:            model.DueAt,
		Version:          model.Version,
		OriginID:         model.OriginID,
		Status:           effectiveStatus,
		PublishedAt:      model.PublishedAt,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}
