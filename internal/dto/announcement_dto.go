package dto

import (
	"time"

	"github.com/usst-spm/course-api/internal/models"
)

// AnnouncementCreateRequest describes the payload for publishing a notice.
type AnnouncementCreateRequest struct {
	CourseID uint   `json:"course_id" validate:"required"`
	Title    string `json:"title" validate:"required,min=1,max=255"`
	Content  string `json:"content" validate:"required"`
}

// AnnouncementUpdateRequest describes a partial edit.
type AnnouncementUpdateRequest struct {
	Title   *string `json:"title" validate:"omitempty,min=1,max=255"`
	Content *string `json:"content"`
}

// AnnouncementResponse is the serialized representation of a notice.
type AnnouncementResponse struct {
	ID        uint      `json:"id"`
	CourseID  uint      `json:"course_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedBy uint      `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAnnouncementResponse converts a model into a DTO.
func NewAnnouncementResponse(model models.Announcement) AnnouncementResponse {
	return AnnouncementResponse{
		ID:        model.ID,
		CourseID:  model.CourseID,
		Title:     model.Title,
		Content:   model.Content,
		CreatedBy: model.CreatedBy,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

// NewAnnouncementResponseSlice converts a slice of models into DTOs.
func NewAnnouncementResponseSlice(announcements []models.Announcement) []AnnouncementResponse {
	responses := make([]AnnouncementResponse, 0, len(announcements))
	for _, announcement := range announcements {
		responses = append(responses, NewAnnouncementResponse(announcement))
	}

	return responses
}
