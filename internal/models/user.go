package models

import "time"

// User is the minimal identity record the engine consults when stamping
// operator names onto audit output. Authentication lives upstream.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	// RoleStudent may submit work and read their own grades and history.
	RoleStudent = "STUDENT"
	// RoleTeacher manages assignments and grades submissions.
	RoleTeacher = "TEACHER"
	// RoleAdmin has the same engine permissions as a teacher.
	RoleAdmin = "ADMIN"
)
