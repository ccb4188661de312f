package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/photark-io/photark/internal/db"
	"gorm.io/gorm"
)

// gormCredentialRepository is the GORM implementation of CredentialRepository.
type gormCredentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository returns a CredentialRepository backed by the provided *gorm.DB.
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &gormCredentialRepository{db: db}
}

// UpsertCookies replaces the cookie jar for an account, creating the row on
// first import. Importing a fresh jar also clears the cached session state,
// since session tokens derived from the old cookies are no longer valid.
func (r *gormCredentialRepository) UpsertCookies(ctx context.Context, accountID uuid.UUID, jar db.EncryptedJSON) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing db.CredentialCookies
		err := tx.First(&existing, "account_id = ?", accountID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record := db.CredentialCookies{AccountID: accountID, CookieJar: jar}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("credentials: create cookies: %w", err)
			}
		case err != nil:
			return fmt.Errorf("credentials: get cookies: %w", err)
		default:
			existing.CookieJar = jar
			if err := tx.Save(&existing).Error; err != nil {
				return fmt.Errorf("credentials: update cookies: %w", err)
			}
		}
		if err := tx.Delete(&db.RPCSession{}, "account_id = ?", accountID).Error; err != nil {
			return fmt.Errorf("credentials: clear session: %w", err)
		}
		return nil
	})
}

// GetCookies retrieves the cookie jar for an account.
// Returns ErrNotFound if the account has no cookies imported.
func (r *gormCredentialRepository) GetCookies(ctx context.Context, accountID uuid.UUID) (*db.CredentialCookies, error) {
	var record db.CredentialCookies
	err := r.db.WithContext(ctx).First(&record, "account_id = ?", accountID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("credentials: get cookies: %w", err)
	}
	return &record, nil
}

// UpsertUploadAuth replaces the upload auth blob for an account.
func (r *gormCredentialRepository) UpsertUploadAuth(ctx context.Context, accountID uuid.UUID, authData db.EncryptedString) error {
	var existing db.CredentialUpload
	err := r.db.WithContext(ctx).First(&existing, "account_id = ?", accountID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		record := db.CredentialUpload{AccountID: accountID, AuthData: authData}
		if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
			return fmt.Errorf("credentials: create upload auth: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("credentials: get upload auth: %w", err)
	}
	existing.AuthData = authData
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return fmt.Errorf("credentials: update upload auth: %w", err)
	}
	return nil
}

// GetUploadAuth retrieves the upload auth blob for an account.
// Returns ErrNotFound if the account has no upload credentials.
func (r *gormCredentialRepository) GetUploadAuth(ctx context.Context, accountID uuid.UUID) (*db.CredentialUpload, error) {
	var record db.CredentialUpload
	err := r.db.WithContext(ctx).First(&record, "account_id = ?", accountID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("credentials: get upload auth: %w", err)
	}
	return &record, nil
}

// UpsertSession overwrites the cached RPC session state for an account.
// Last writer wins; the state is a wholesale replacement.
func (r *gormCredentialRepository) UpsertSession(ctx context.Context, accountID uuid.UUID, state db.JSONMap) error {
	var existing db.RPCSession
	err := r.db.WithContext(ctx).First(&existing, "account_id = ?", accountID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		record := db.RPCSession{AccountID: accountID, State: state}
		if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
			return fmt.Errorf("credentials: create session: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("credentials: get session: %w", err)
	}
	existing.State = state
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return fmt.Errorf("credentials: update session: %w", err)
	}
	return nil
}

// GetSession retrieves the cached RPC session state for an account.
// Returns ErrNotFound if no session has been bootstrapped yet.
func (r *gormCredentialRepository) GetSession(ctx context.Context, accountID uuid.UUID) (*db.RPCSession, error) {
	var record db.RPCSession
	err := r.db.WithContext(ctx).First(&record, "account_id = ?", accountID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("credentials: get session: %w", err)
	}
	return &record, nil
}

// ClearSession removes the cached session state. Removing an absent session
// is not an error.
func (r *gormCredentialRepository) ClearSession(ctx context.Context, accountID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&db.RPCSession{}, "account_id = ?", accountID).Error; err != nil {
		return fmt.Errorf("credentials: clear session: %w", err)
	}
	return nil
}
