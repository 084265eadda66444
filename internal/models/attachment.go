package models

import (
	"time"

	"gorm.io/gorm"
)

// AssignmentAttachment links a stored file to an assignment version.
// Files themselves live in an external storage service; only the
// reference is tracked here.
type AssignmentAttachment struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	AssignmentID uint           `gorm:"not null;index" json:"assignment_id"`
	FileID       uint           `gorm:"not null" json:"file_id"`
	CreatedAt    time.Time      `json:"created_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// SubmissionAttachment links a stored file to a submission. Resubmitting
// soft-deletes the previous links and writes a fresh set.
type SubmissionAttachment struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	SubmissionID uint           `gorm:"not null;index" json:"submission_id"`
	FileID       uint           `gorm:"not null" json:"file_id"`
	CreatedAt    time.Time      `json:"created_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
