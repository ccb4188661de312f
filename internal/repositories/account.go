package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/photark-io/photark/internal/db"
	"gorm.io/gorm"
)

// gormAccountRepository is the GORM implementation of AccountRepository.
type gormAccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository returns an AccountRepository backed by the provided *gorm.DB.
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &gormAccountRepository{db: db}
}

// Create inserts a new account record into the database.
func (r *gormAccountRepository) Create(ctx context.Context, account *db.Account) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return fmt.Errorf("accounts: create: %w", err)
	}
	return nil
}

// GetByID retrieves an account by its UUID.
// Returns ErrNotFound if no record exists.
func (r *gormAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.Account, error) {
	var account db.Account
	err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("accounts: get by id: %w", err)
	}
	return &account, nil
}

// Update persists all fields of an existing account record.
func (r *gormAccountRepository) Update(ctx context.Context, account *db.Account) error {
	result := r.db.WithContext(ctx).Save(account)
	if result.Error != nil {
		return fmt.Errorf("accounts: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an account and its dependent rows (credentials, session
// cache, index rows). Jobs and previews are kept for audit.
func (r *gormAccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&db.Account{}, "id = ?", id)
		if result.Error != nil {
			return fmt.Errorf("accounts: delete: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		for _, model := range []interface{}{
			&db.CredentialCookies{}, &db.CredentialUpload{}, &db.RPCSession{},
		} {
			if err := tx.Delete(model, "account_id = ?", id).Error; err != nil {
				return fmt.Errorf("accounts: delete credentials: %w", err)
			}
		}
		if err := tx.Delete(&db.MediaIndex{}, "account_id = ?", id).Error; err != nil {
			return fmt.Errorf("accounts: delete media index: %w", err)
		}
		if err := tx.Delete(&db.AlbumIndex{}, "account_id = ?", id).Error; err != nil {
			return fmt.Errorf("accounts: delete album index: %w", err)
		}
		return nil
	})
}

// List returns a paginated list of accounts and the total count,
// ordered by creation time descending (most recent first).
func (r *gormAccountRepository) List(ctx context.Context, opts ListOptions) ([]db.Account, int64, error) {
	var accounts []db.Account
	var total int64

	if err := r.db.WithContext(ctx).Model(&db.Account{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("accounts: list count: %w", err)
	}

	if err := r.db.WithContext(ctx).
		Limit(opts.Limit).
		Offset(opts.Offset).
		Order("created_at DESC").
		Find(&accounts).Error; err != nil {
		return nil, 0, fmt.Errorf("accounts: list: %w", err)
	}

	return accounts, total, nil
}
