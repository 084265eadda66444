package models

import (
	"time"

	"gorm.io/gorm"
)

// Assignment represents one version of a gradable course task. Republishing
// creates a new row in the same lineage instead of mutating this one.
type Assignment struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CourseID         uint           `gorm:"not null;index" json:"course_id"`
	Title            string         `gorm:"size:255;not null" json:"title"`
	Description      string         `gorm:"type:text" json:"description"`
	Type             string         `gorm:"size:32" json:"type"`
	TotalScore       int            `gorm:"not null;default:100" json:"total_score"`
	AllowResubmit    bool           `gorm:"not null;default:false" json:"allow_resubmit"`
	MaxResubmitCount int            `gorm:"not null;default:0" json:"max_resubmit_count"`
	DueAt            *time.Time     `json:"due_at"`
	Version          int            `gorm:"not null;default:1;uniqueIndex:idx_assignments_origin_version" json:"version"`
	OriginID         *uint          `gorm:"index;uniqueIndex:idx_assignments_origin_version" json:"origin_id"`
	Status           string         `gorm:"size:16;not null;default:DRAFT" json:"status"`
	PublishedAt      *time.Time     `json:"published_at"`
	CreatedBy        uint           `json:"created_by"`
	UpdatedBy        uint           `json:"updated_by"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// LineageID resolves the lineage this version belongs to. A nil OriginID
// marks the lineage root, in which case the assignment's own id is the
// lineage id.
func (a Assignment) LineageID() uint {
	if a.OriginID != nil {
		return *a.OriginID
	}
	return a.ID
}

// IsPastDue reports whether the deadline has passed at the reference time.
// Assignments without a deadline never expire.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return a.DueAt != nil && a.DueAt.Before(reference)
}
