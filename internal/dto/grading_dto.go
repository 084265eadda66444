package dto

import (
	"time"

	"github.com/usst-spm/course-api/internal/models"
)

// UpdateScoreRequest describes a grade mutation. Every mutation, including
// the first grading action, must carry a non-blank reason.
type UpdateScoreRequest struct {
	NewScore int     `json:"new_score" validate:"gte=0"`
	Reason   string  `json:"reason" validate:"required"`
	Feedback *string `json:"feedback"`
}

// GradeResponse is the serialized representation of a submission's current
// grade.
type GradeResponse struct {
	ID           uint      `json:"id"`
	SubmissionID uint      `json:"submission_id"`
	ScorerID     uint      `json:"scorer_id"`
	Score        int       `json:"score"`
	Feedback     string    `json:"feedback"`
	ChangeReason string    `json:"change_reason"`
	Released     bool      `json:"released"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewGradeResponse converts a model into a DTO.
func NewGradeResponse(model models.Grade) GradeResponse {
	return GradeResponse{
		ID:           model.ID,
		SubmissionID: model.SubmissionID,
		ScorerID:     model.ScorerID,
		Score:        model.Score,
		Feedback:     model.Feedback,
		ChangeReason: model.ChangeReason,
		Released:     model.Released,
		UpdatedAt:    model.UpdatedAt,
	}
}

// StudentGradeResponse is one row of a student's own grade sheet. Only
// released grades are ever serialized this way.
type StudentGradeResponse struct {
	SubmissionID    uint      `json:"submission_id"`
	AssignmentID    uint      `json:"assignment_id"`
	AssignmentTitle string    `json:"assignment_title"`
	Score           int       `json:"score"`
	Feedback        string    `json:"feedback"`
	SubmittedAt     time.Time `json:"submitted_at"`
	GradedAt        time.Time `json:"graded_at"`
}

// GradeHistoryResponse is one audit entry of the grade ledger.
type GradeHistoryResponse struct {
	ID           uint      `json:"id"`
	GradeID      uint      `json:"grade_id"`
	SubmissionID uint      `json:"submission_id"`
	OldScore     *int      `json:"old_score"`
	NewScore     int       `json:"new_score"`
	OldFeedback  string    `json:"old_feedback"`
	NewFeedback  string    `json:"new_feedback"`
	ChangeReason string    `json:"change_reason"`
	OperatorID   uint      `json:"operator_id"`
	OperatorRole string    `json:"operator_role"`
	OperatorName string    `json:"operator_name"`
	ChangedAt    time.Time `json:"changed_at"`
}

// NewGradeHistoryResponse converts a model into a DTO.
func NewGradeHistoryResponse(model models.GradeHistory, operatorName string) GradeHistoryResponse {
	return GradeHistoryResponse{
		ID:           model.ID,
		GradeID:      model.GradeID,
		SubmissionID: model.SubmissionID,
		OldScore:     model.OldScore,
		NewScore:     model.NewScore,
		OldFeedback:  model.OldFeedback,
		NewFeedback:  model.NewFeedback,
		ChangeReason: model.ChangeReason,
		OperatorID:   model.OperatorID,
		OperatorRole: model.OperatorRole,
		OperatorName: operatorName,
		ChangedAt:    model.ChangedAt,
	}
}
