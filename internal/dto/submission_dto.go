package dto

import (
	"time"

	"github.com/usst-spm/course-api/internal/models"
)

// Student-facing submission progress states used by assignment listings.
const (
	SubmissionViewProgress  = "progress"
	SubmissionViewSubmitted = "submitted"
	SubmissionViewGraded    = "graded"
	SubmissionViewEnded     = "ended"
)

// SubmitRequest describes the payload for handing in work.
type SubmitRequest struct {
	Content       string `json:"content" validate:"required"`
	AttachmentIDs []uint `json:"attachment_ids"`
}

// SubmissionResponse is the serialized representation of a submission.
type SubmissionResponse struct {
	ID            uint      `json:"id"`
	AssignmentID  uint      `json:"assignment_id"`
	StudentID     uint      `json:"student_id"`
	Content       string    `json:"content"`
	Status        string    `json:"status"`
	SubmittedAt   time.Time `json:"submitted_at"`
	ResubmitCount int       `json:"resubmit_count"`
	CreatedAt     time.Time `json:"created_at"`

	AttachmentFileIDs []uint `json:"attachment_file_ids,omitempty"`

	// Released grade, if any.
	Score    *int   `json:"score,omitempty"`
	Feedback string `json:"feedback,omitempty"`
	Released bool   `json:"released,omitempty"`
}

// NewSubmissionResponse converts a model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:            model.ID,
		AssignmentID:  model.AssignmentID,
		StudentID:     model.StudentID,
		Content:       model.Content,
		Status:        model.Status,
		SubmittedAt:   model.SubmittedAt,
		ResubmitCount: model.ResubmitCount,
		CreatedAt:     model.CreatedAt,
	}
}

// NewSubmissionResponseSlice converts a slice of models into DTOs.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}
