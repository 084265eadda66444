package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/usst-spm/course-api/internal/models"
)

// GradeRepository persists grades and their immutable history trail.
type GradeRepository interface {
	GetBySubmission(ctx context.Context, submissionID uint) (models.Grade, error)
	ListBySubmissions(ctx context.Context, submissionIDs []uint) ([]models.Grade, error)
	// SaveWithHistory writes the grade mutation and its audit row in one
	// transaction; either both rows land or neither does.
	SaveWithHistory(ctx context.Context, grade *models.Grade, history *models.GradeHistory) error
	Update(ctx context.Context, grade *models.Grade) error
	ListHistory(ctx context.Context, submissionID uint) ([]models.GradeHistory, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository instantiates a GORM-backed repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func (r *gradeRepository) GetBySubmission(ctx context.Context, submissionID uint) (models.Grade, error) {
	var grade models.Grade
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		First(&grade).Error
	if err != nil {
		return models.Grade{}, err
	}

	return grade, nil
}

func (r *gradeRepository) ListBySubmissions(ctx context.Context, submissionIDs []uint) ([]models.Grade, error) {
	if len(submissionIDs) == 0 {
		return nil, nil
	}

	var grades []models.Grade
	err := r.db.WithContext(ctx).
		Where("submission_id IN ?", submissionIDs).
		Find(&grades).Error
	if err != nil {
		return nil, err
	}

	return grades, nil
}

func (r *gradeRepository) SaveWithHistory(ctx context.Context, grade *models.Grade, history *models.GradeHistory) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(grade).Error; err != nil {
			return err
		}

		history.GradeID = grade.ID
		return tx.Create(history).Error
	})
}

func (r *gradeRepository) Update(ctx context.Context, grade *models.Grade) error {
	return r.db.WithContext(ctx).Save(grade).Error
}

func (r *gradeRepository) ListHistory(ctx context.Context, submissionID uint) ([]models.GradeHistory, error) {
	var histories []models.GradeHistory
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("changed_at DESC, id DESC").
		Find(&histories).Error
	if err != nil {
		return nil, err
	}

	return histories, nil
}
