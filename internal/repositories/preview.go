package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/photark-io/photark/internal/db"
	"gorm.io/gorm"
)

// gormPreviewRepository is the GORM implementation of PreviewRepository.
type gormPreviewRepository struct {
	db *gorm.DB
}

// NewPreviewRepository returns a PreviewRepository backed by the provided *gorm.DB.
func NewPreviewRepository(db *gorm.DB) PreviewRepository {
	return &gormPreviewRepository{db: db}
}

// Create inserts a new preview record into the database.
func (r *gormPreviewRepository) Create(ctx context.Context, preview *db.PreviewAction) error {
	if err := r.db.WithContext(ctx).Create(preview).Error; err != nil {
		return fmt.Errorf("previews: create: %w", err)
	}
	return nil
}

// GetByID retrieves a preview by its UUID.
// Returns ErrNotFound if no record exists.
func (r *gormPreviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.PreviewAction, error) {
	var preview db.PreviewAction
	err := r.db.WithContext(ctx).First(&preview, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("previews: get by id: %w", err)
	}
	return &preview, nil
}

// Update persists all fields of an existing preview record.
func (r *gormPreviewRepository) Update(ctx context.Context, preview *db.PreviewAction) error {
	result := r.db.WithContext(ctx).Save(preview)
	if result.Error != nil {
		return fmt.Errorf("previews: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns a paginated list of previews for an account,
// ordered by creation time descending.
func (r *gormPreviewRepository) List(ctx context.Context, accountID uuid.UUID, opts ListOptions) ([]db.PreviewAction, int64, error) {
	var previews []db.PreviewAction
	var total int64

	query := r.db.WithContext(ctx).Model(&db.PreviewAction{}).Where("account_id = ?", accountID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("previews: list count: %w", err)
	}

	if err := query.
		Limit(opts.Limit).
		Offset(opts.Offset).
		Order("created_at DESC").
		Find(&previews).Error; err != nil {
		return nil, 0, fmt.Errorf("previews: list: %w", err)
	}

	return previews, total, nil
}

// DeleteExpired removes uncommitted previews whose TTL elapsed before now.
// Committed previews are kept for audit regardless of their expiry.
func (r *gormPreviewRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ? AND status <> ?", now, db.PreviewStatusCommitted).
		Delete(&db.PreviewAction{})
	if result.Error != nil {
		return 0, fmt.Errorf("previews: delete expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}
