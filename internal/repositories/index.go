package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/photark-io/photark/internal/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertBatchSize bounds how many index rows go into one INSERT. SQLite has
// a bind-variable limit and MediaIndex carries ~20 columns per row.
const upsertBatchSize = 100

// gormIndexRepository is the GORM implementation of IndexRepository.
type gormIndexRepository struct {
	db *gorm.DB
}

// NewIndexRepository returns an IndexRepository backed by the provided *gorm.DB.
func NewIndexRepository(db *gorm.DB) IndexRepository {
	return &gormIndexRepository{db: db}
}

// UpsertMedia inserts or replaces media index rows in batches. Conflicts on
// the (account_id, media_key) primary key update all columns except
// created_at, preserving the original first-seen time.
func (r *gormIndexRepository) UpsertMedia(ctx context.Context, rows []db.MediaIndex) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "media_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"dedup_key", "timestamp_taken", "timestamp_uploaded", "timezone_offset",
				"file_name", "size", "media_type", "is_archived", "is_favorite",
				"is_trashed", "album_ids", "thumb_url", "owner_name", "space_flags",
				"source", "raw_item", "updated_at",
			}),
		}).
		CreateInBatches(rows, upsertBatchSize).Error
	if err != nil {
		return fmt.Errorf("index: upsert media: %w", err)
	}
	return nil
}

// QueryMedia returns media rows matching the query filters. The default sort
// is timestamp taken descending with media_key as a deterministic tiebreak.
func (r *gormIndexRepository) QueryMedia(ctx context.Context, accountID uuid.UUID, q MediaQuery) ([]db.MediaIndex, error) {
	query := r.db.WithContext(ctx).
		Model(&db.MediaIndex{}).
		Where("account_id = ?", accountID)

	if q.Source != "" {
		query = query.Where("source = ?", q.Source)
	}
	if q.Favorite != nil {
		query = query.Where("is_favorite = ?", *q.Favorite)
	}
	if q.Archived != nil {
		query = query.Where("is_archived = ?", *q.Archived)
	}
	if q.Trashed != nil {
		query = query.Where("is_trashed = ?", *q.Trashed)
	}
	if q.MediaType != "" {
		query = query.Where("media_type = ?", q.MediaType)
	}
	if q.DateFrom != nil {
		query = query.Where("timestamp_taken >= ?", *q.DateFrom)
	}
	if q.DateTo != nil {
		query = query.Where("timestamp_taken <= ?", *q.DateTo)
	}
	if q.Search != "" {
		pattern := "%" + q.Search + "%"
		query = query.Where(
			"file_name LIKE ? OR media_key LIKE ? OR dedup_key LIKE ?",
			pattern, pattern, pattern,
		)
	}
	if q.AlbumID != "" {
		// album_ids is a JSON array of strings; membership reduces to a
		// substring match on the quoted key.
		query = query.Where("album_ids LIKE ?", `%"`+q.AlbumID+`"%`)
	}

	switch q.Sort {
	case "timestamp_asc":
		query = query.Order("timestamp_taken ASC").Order("media_key ASC")
	case "uploaded_desc":
		query = query.Order("timestamp_uploaded DESC").Order("media_key ASC")
	default:
		query = query.Order("timestamp_taken DESC").Order("media_key ASC")
	}

	var rows []db.MediaIndex
	if err := query.Limit(q.Limit).Offset(q.Offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("index: query media: %w", err)
	}
	return rows, nil
}

// ListMediaByKeys returns the index rows for the given media keys. Keys with
// no stored row are silently absent from the result.
func (r *gormIndexRepository) ListMediaByKeys(ctx context.Context, accountID uuid.UUID, mediaKeys []string) ([]db.MediaIndex, error) {
	if len(mediaKeys) == 0 {
		return nil, nil
	}
	var rows []db.MediaIndex
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND media_key IN ?", accountID, mediaKeys).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("index: list media by keys: %w", err)
	}
	return rows, nil
}

// CountMedia returns the number of indexed media rows for an account.
func (r *gormIndexRepository) CountMedia(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&db.MediaIndex{}).
		Where("account_id = ?", accountID).
		Count(&total).Error; err != nil {
		return 0, fmt.Errorf("index: count media: %w", err)
	}
	return total, nil
}

// DeleteAllMedia removes every media index row for an account. Used by
// force-full refreshes before the rebuild.
func (r *gormIndexRepository) DeleteAllMedia(ctx context.Context, accountID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Delete(&db.MediaIndex{}, "account_id = ?", accountID).Error; err != nil {
		return fmt.Errorf("index: delete all media: %w", err)
	}
	return nil
}

// SetFavorites resets the favorite flag for the whole account and re-sets it
// for the given keys, all in one transaction.
func (r *gormIndexRepository) SetFavorites(ctx context.Context, accountID uuid.UUID, mediaKeys []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.MediaIndex{}).
			Where("account_id = ? AND is_favorite = ?", accountID, true).
			Update("is_favorite", false).Error; err != nil {
			return err
		}
		for _, chunk := range chunkKeys(mediaKeys, upsertBatchSize) {
			if err := tx.Model(&db.MediaIndex{}).
				Where("account_id = ? AND media_key IN ?", accountID, chunk).
				Update("is_favorite", true).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("index: set favorites: %w", err)
	}
	return nil
}

// SetTrashed resets the trashed flag for the whole account and re-sets it for
// the given keys. Trashed rows also move to the "trash" source so the
// explorer's source filter stays consistent.
func (r *gormIndexRepository) SetTrashed(ctx context.Context, accountID uuid.UUID, mediaKeys []string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&db.MediaIndex{}).
			Where("account_id = ? AND is_trashed = ?", accountID, true).
			Updates(map[string]interface{}{"is_trashed": false, "source": "library"}).Error; err != nil {
			return err
		}
		for _, chunk := range chunkKeys(mediaKeys, upsertBatchSize) {
			if err := tx.Model(&db.MediaIndex{}).
				Where("account_id = ? AND media_key IN ?", accountID, chunk).
				Updates(map[string]interface{}{"is_trashed": true, "source": "trash"}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("index: set trashed: %w", err)
	}
	return nil
}

// ClearAlbumIDs empties the album membership list of every media row for an
// account. Called before a full membership rebuild.
func (r *gormIndexRepository) ClearAlbumIDs(ctx context.Context, accountID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Model(&db.MediaIndex{}).
		Where("account_id = ?", accountID).
		Update("album_ids", db.StringList{}).Error; err != nil {
		return fmt.Errorf("index: clear album ids: %w", err)
	}
	return nil
}

// SetAlbumIDs overwrites the album membership list of each given media key.
func (r *gormIndexRepository) SetAlbumIDs(ctx context.Context, accountID uuid.UUID, memberships map[string][]string) error {
	if len(memberships) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for mediaKey, albumIDs := range memberships {
			if err := tx.Model(&db.MediaIndex{}).
				Where("account_id = ? AND media_key = ?", accountID, mediaKey).
				Update("album_ids", db.StringList(albumIDs)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("index: set album ids: %w", err)
	}
	return nil
}

// UpsertAlbums inserts or replaces album index rows.
func (r *gormIndexRepository) UpsertAlbums(ctx context.Context, rows []db.AlbumIndex) error {
	if len(rows) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}, {Name: "media_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "owner_actor_id", "item_count", "creation_timestamp",
				"modified_timestamp", "is_shared", "thumb", "updated_at",
			}),
		}).
		CreateInBatches(rows, upsertBatchSize).Error
	if err != nil {
		return fmt.Errorf("index: upsert albums: %w", err)
	}
	return nil
}

// ListAlbums returns all album index rows for an account, newest first.
func (r *gormIndexRepository) ListAlbums(ctx context.Context, accountID uuid.UUID) ([]db.AlbumIndex, error) {
	var rows []db.AlbumIndex
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("creation_timestamp DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("index: list albums: %w", err)
	}
	return rows, nil
}

// DeleteAlbumsNotIn removes album rows whose media key no longer appears in
// the remote album list. An empty key set removes every album.
func (r *gormIndexRepository) DeleteAlbumsNotIn(ctx context.Context, accountID uuid.UUID, mediaKeys []string) error {
	query := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	if len(mediaKeys) > 0 {
		query = query.Where("media_key NOT IN ?", mediaKeys)
	}
	if err := query.Delete(&db.AlbumIndex{}).Error; err != nil {
		return fmt.Errorf("index: delete stale albums: %w", err)
	}
	return nil
}

// DeleteAllAlbums removes every album index row for an account.
func (r *gormIndexRepository) DeleteAllAlbums(ctx context.Context, accountID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Delete(&db.AlbumIndex{}, "account_id = ?", accountID).Error; err != nil {
		return fmt.Errorf("index: delete all albums: %w", err)
	}
	return nil
}

// chunkKeys splits keys into slices of at most size elements.
func chunkKeys(keys []string, size int) [][]string {
	if len(keys) == 0 {
		return nil
	}
	var chunks [][]string
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}
