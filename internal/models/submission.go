package models

import (
	"time"

	"gorm.io/gorm"
)

// Submission is a student's current work product for one assignment version.
// Resubmitting overwrites the row in place; at most one active submission
// exists per (assignment, student) pair.
type Submission struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	AssignmentID  uint           `gorm:"not null;index:idx_submissions_assignment_student" json:"assignment_id"`
	StudentID     uint           `gorm:"not null;index:idx_submissions_assignment_student" json:"student_id"`
	Content       string         `gorm:"type:text" json:"content"`
	Status        string         `gorm:"size:32;not null" json:"status"`
	SubmittedAt   time.Time      `json:"submitted_at"`
	ResubmitCount int            `gorm:"not null;default:0" json:"resubmit_count"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	Assignment Assignment `gorm:"constraint:OnUpdate:CASCADE" json:"assignment,omitempty"`
}

const (
	// SubmissionStatusSubmitted indicates the work has been handed in.
	SubmissionStatusSubmitted = "SUBMITTED"
)
