package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/usst-spm/course-api/internal/models"
)

// AttachmentRepository manages file links for assignments and submissions.
type AttachmentRepository interface {
	ListForAssignment(ctx context.Context, assignmentID uint) ([]models.AssignmentAttachment, error)
	ReplaceForAssignment(ctx context.Context, assignmentID uint, fileIDs []uint) error
	CopyForAssignment(ctx context.Context, sourceID, targetID uint) error
	ListForSubmission(ctx context.Context, submissionID uint) ([]models.SubmissionAttachment, error)
	ReplaceForSubmission(ctx context.Context, submissionID uint, fileIDs []uint) error
}

type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository instantiates a GORM-backed repository.
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) ListForAssignment(ctx context.Context, assignmentID uint) ([]models.AssignmentAttachment, error) {
	var attachments []models.AssignmentAttachment
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}

	return attachments, nil
}

// ReplaceForAssignment soft-deletes the current links and writes the new
// set. An empty list clears the attachments.
func (r *attachmentRepository) ReplaceForAssignment(ctx context.Context, assignmentID uint, fileIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("assignment_id = ?", assignmentID).
			Delete(&models.AssignmentAttachment{}).Error
		if err != nil {
			return err
		}

		for _, fileID := range fileIDs {
			link := models.AssignmentAttachment{AssignmentID: assignmentID, FileID: fileID}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// CopyForAssignment duplicates the source assignment's active links onto
// the target. Used when a republished version inherits attachments.
func (r *attachmentRepository) CopyForAssignment(ctx context.Context, sourceID, targetID uint) error {
	sources, err := r.ListForAssignment(ctx, sourceID)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, source := range sources {
			link := models.AssignmentAttachment{AssignmentID: targetID, FileID: source.FileID}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *attachmentRepository) ListForSubmission(ctx context.Context, submissionID uint) ([]models.SubmissionAttachment, error) {
	var attachments []models.SubmissionAttachment
	err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}

	return attachments, nil
}

func (r *attachmentRepository) ReplaceForSubmission(ctx context.Context, submissionID uint, fileIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("submission_id = ?", submissionID).
			Delete(&models.SubmissionAttachment{}).Error
		if err != nil {
			return err
		}

		for _, fileID := range fileIDs {
			link := models.SubmissionAttachment{SubmissionID: submissionID, FileID: fileID}
			if err := tx.Create(&link).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
