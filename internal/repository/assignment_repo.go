package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/usst-spm/course-api/internal/models"
)

// AssignmentRepository defines persistence operations for assignments.
// Soft-deleted rows are excluded from every query by gorm's DeletedAt
// scope; business code never filters on the delete flag itself.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	SoftDelete(ctx context.Context, id uint) error
	MaxVersionInLineage(ctx context.Context, lineageID uint) (int, error)
	ListLineage(ctx context.Context, lineageID uint) ([]models.Assignment, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("created_at DESC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *assignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Save(assignment).Error
}

func (r *assignmentRepository) SoftDelete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Assignment{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MaxVersionInLineage returns the highest version number among active rows
// of a lineage. The lineage root stores a nil origin id, so both the root
// row and its successors are matched.
func (r *assignmentRepository) MaxVersionInLineage(ctx context.Context, lineageID uint) (int, error) {
	var max int
	err := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("origin_id = ? OR id = ?", lineageID, lineageID).
		Select("COALESCE(MAX(version), 0)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}

	return max, nil
}

func (r *assignmentRepository) ListLineage(ctx context.Context, lineageID uint) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).
		Where("origin_id = ? OR id = ?", lineageID, lineageID).
		Order("version ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}

	return assignments, nil
}
