package models

import (
	"time"

	"gorm.io/gorm"
)

// Grade holds the current score for a submission. There is at most one
// active Grade per submission, enforced by a partial unique index on
// submission_id; regrading mutates this row and appends a GradeHistory
// entry.
type Grade struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	SubmissionID uint           `gorm:"not null;index" json:"submission_id"`
	ScorerID     uint           `json:"scorer_id"`
	Score        int            `gorm:"not null" json:"score"`
	Feedback     string         `gorm:"type:text" json:"feedback"`
	ChangeReason string         `gorm:"type:text" json:"change_reason"`
	Released     bool           `gorm:"not null;default:false" json:"released"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// GradeHistory is an immutable audit record of one grade mutation. Rows are
// append-only; they are never updated or deleted, even when the Grade they
// describe changes again.
type GradeHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	GradeID      uint      `gorm:"not null;index" json:"grade_id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	ScorerID     uint      `json:"scorer_id"`
	OldScore     *int      `json:"old_score"`
	NewScore     int       `gorm:"not null" json:"new_score"`
	OldFeedback  string    `gorm:"type:text" json:"old_feedback"`
	NewFeedback  string    `gorm:"type:text" json:"new_feedback"`
	ChangeReason string    `gorm:"type:text;not null" json:"change_reason"`
	OperatorID   uint      `gorm:"not null" json:"operator_id"`
	OperatorRole string    `gorm:"size:16;not null" json:"operator_role"`
	ChangedAt    time.Time `gorm:"not null" json:"changed_at"`
	CreatedAt    time.Time `json:"created_at"`
}
