package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/usst-spm/course-api/internal/models"
)

// ConnectPostgres establishes a connection to the PostgreSQL database using
// the provided DSN. TranslateError is enabled so unique-index violations
// surface as gorm.ErrDuplicatedKey, which the engine's race-retry paths
// depend on.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// Migrate applies the schema for every engine model and the constraints
// gorm tags cannot express.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Assignment{},
		&models.AssignmentAttachment{},
		&models.Submission{},
		&models.SubmissionAttachment{},
		&models.Grade{},
		&models.GradeHistory{},
		&models.Announcement{},
		&models.ActivityLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// One live submission per (assignment, student). The index is partial so
	// soft-deleted rows do not block resubmission after cleanup.
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uidx_submissions_active
		ON submissions (assignment_id, student_id)
		WHERE deleted_at IS NULL`).Error
	if err != nil {
		return fmt.Errorf("failed to create submission uniqueness index: %w", err)
	}

	// One active grade per submission; concurrent first-time gradings lose
	// the insert race here and retry as an update.
	err = db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uidx_grades_active
		ON grades (submission_id)
		WHERE deleted_at IS NULL`).Error
	if err != nil {
		return fmt.Errorf("failed to create grade uniqueness index: %w", err)
	}

	return nil
}
