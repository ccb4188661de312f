// Package explorer maintains and queries the local mirror of each account's
// remote library. Queries never touch the remote service; a refresh job
// walks the remote listings and rebuilds the index.
package explorer

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/photark-io/photark/internal/adapters"
	"github.com/photark-io/photark/internal/db"
	"github.com/photark-io/photark/internal/repositories"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500

	// batchInfoChunkSize bounds one get_batch_media_info call.
	batchInfoChunkSize = 120

	// albumSyncLimit bounds how many albums a refresh walks.
	albumSyncLimit = 1000

	// defaultMaxItems bounds how many items one refresh indexes per listing.
	defaultMaxItems = 3000

	cursorPrefix = "o:"
)

// Source describes one browsable view over the index.
type Source struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon"`
}

// Sources lists the browsable views in display order.
func Sources() []Source {
	return []Source{
		{ID: "library", Label: "Library", Icon: "photo"},
		{ID: "favorites", Label: "Favorites", Icon: "star"},
		{ID: "trash", Label: "Trash", Icon: "delete"},
		{ID: "locked_folder", Label: "Locked Folder", Icon: "lock"},
		{ID: "albums", Label: "Albums", Icon: "album"},
	}
}

// Query filters one page of the media index.
type Query struct {
	Source    string `json:"source"`
	Favorite  *bool  `json:"favorite"`
	Archived  *bool  `json:"archived"`
	Trashed   *bool  `json:"trashed"`
	MediaType string `json:"media_type"`
	DateFrom  *int64 `json:"date_from"`
	DateTo    *int64 `json:"date_to"`
	Search    string `json:"search"`
	AlbumID   string `json:"album_id"`
	Sort      string `json:"sort"`
	PageSize  int    `json:"page_size"`
	Cursor    string `json:"cursor"`
}

// Page is one query result page.
type Page struct {
	Items      []db.MediaIndex `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
}

// Service queries and refreshes the media index.
type Service struct {
	index     repositories.IndexRepository
	rpcCaller adapters.RPCCaller
	logger    *zap.Logger
}

// NewService wires the explorer to the index store and the RPC layer.
func NewService(index repositories.IndexRepository, rpcCaller adapters.RPCCaller, logger *zap.Logger) *Service {
	return &Service{index: index, rpcCaller: rpcCaller, logger: logger.Named("explorer")}
}

// Query returns one page of index rows matching the filters. The cursor is
// an opaque offset token; fetching one row past the page size decides
// has_more without a count query.
func (s *Service) Query(ctx context.Context, accountID uuid.UUID, q Query) (*Page, error) {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	offset, err := decodeCursor(q.Cursor)
	if err != nil {
		return nil, err
	}

	source := q.Source
	if source == "albums" {
		source = ""
	}

	rows, err := s.index.QueryMedia(ctx, accountID, repositories.MediaQuery{
		Source:    source,
		Favorite:  q.Favorite,
		Archived:  q.Archived,
		Trashed:   q.Trashed,
		MediaType: q.MediaType,
		DateFrom:  q.DateFrom,
		DateTo:    q.DateTo,
		Search:    q.Search,
		AlbumID:   q.AlbumID,
		Sort:      q.Sort,
		Limit:     pageSize + 1,
		Offset:    offset,
	})
	if err != nil {
		return nil, err
	}

	page := &Page{Items: rows}
	if len(rows) > pageSize {
		page.Items = rows[:pageSize]
		page.HasMore = true
		page.NextCursor = encodeCursor(offset + pageSize)
	}
	return page, nil
}

// Albums returns the indexed albums of an account.
func (s *Service) Albums(ctx context.Context, accountID uuid.UUID) ([]db.AlbumIndex, error) {
	return s.index.ListAlbums(ctx, accountID)
}

func decodeCursor(cursor string) (int, error) {
	if cursor == "" {
		return 0, nil
	}
	raw, ok := strings.CutPrefix(cursor, cursorPrefix)
	if !ok {
		return 0, fmt.Errorf("explorer: malformed cursor %q", cursor)
	}
	offset, err := strconv.Atoi(raw)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("explorer: malformed cursor %q", cursor)
	}
	return offset, nil
}

func encodeCursor(offset int) string {
	return cursorPrefix + strconv.Itoa(offset)
}

// -----------------------------------------------------------------------------
// Refresh
// -----------------------------------------------------------------------------

// RefreshOptions tune one index refresh run.
type RefreshOptions struct {
	ForceFull       bool `json:"force_full"`
	SyncMemberships bool `json:"sync_memberships"`

	// MaxItems caps how many items each listing walk indexes.
	// Zero means the default of 3000.
	MaxItems int `json:"max_items"`
}

// Refresh rebuilds the media index from the remote listings: the upload
// timeline for the item set, the favorites and trash listings for flags,
// the album listing, metadata backfill in chunks, and optionally per-album
// membership walks.
func (s *Service) Refresh(ctx context.Context, accountID uuid.UUID, opts RefreshOptions, progress adapters.ProgressFunc) (map[string]any, error) {
	if err := progress(0.03, "Starting index refresh"); err != nil {
		return nil, err
	}

	maxItems := opts.MaxItems
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}

	if opts.ForceFull {
		if err := s.index.DeleteAllMedia(ctx, accountID); err != nil {
			return nil, err
		}
		if err := s.index.DeleteAllAlbums(ctx, accountID); err != nil {
			return nil, err
		}
	}

	libraryCount, err := s.syncLibrary(ctx, accountID, maxItems, progress)
	if err != nil {
		return nil, err
	}

	if err := progress(0.42, "Syncing favorites and trash"); err != nil {
		return nil, err
	}
	favoriteKeys, err := s.collectKeys(ctx, accountID, "get_favorite_items", maxItems)
	if err != nil {
		return nil, err
	}
	if err := s.index.SetFavorites(ctx, accountID, favoriteKeys); err != nil {
		return nil, err
	}
	trashKeys, err := s.collectKeys(ctx, accountID, "get_trash_items", maxItems)
	if err != nil {
		return nil, err
	}
	if err := s.index.SetTrashed(ctx, accountID, trashKeys); err != nil {
		return nil, err
	}

	if err := progress(0.55, "Syncing albums"); err != nil {
		return nil, err
	}
	albumKeys, err := s.syncAlbums(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := progress(0.7, "Backfilling media metadata"); err != nil {
		return nil, err
	}
	if err := s.backfillMetadata(ctx, accountID); err != nil {
		return nil, err
	}

	if opts.SyncMemberships {
		if err := progress(0.82, "Syncing album memberships"); err != nil {
			return nil, err
		}
		if err := s.syncMemberships(ctx, accountID, albumKeys); err != nil {
			return nil, err
		}
	}

	if err := progress(1.0, "Index refresh completed"); err != nil {
		return nil, err
	}
	return map[string]any{
		"library_items":  libraryCount,
		"favorite_items": len(favoriteKeys),
		"trash_items":    len(trashKeys),
		"albums":         len(albumKeys),
		"account_id":     accountID.String(),
	}, nil
}

// syncLibrary walks the upload timeline and upserts items until the listing
// ends or maxItems is reached.
func (s *Service) syncLibrary(ctx context.Context, accountID uuid.UUID, maxItems int, progress adapters.ProgressFunc) (int, error) {
	total := 0
	pageID := ""
	for {
		result, err := s.rpcCaller.Call(ctx, accountID, "get_items_by_uploaded_date", map[string]any{
			"pageId": pageID,
		})
		if err != nil {
			return 0, err
		}

		items, _ := result["items"].([]any)
		rows := make([]db.MediaIndex, 0, len(items))
		for _, raw := range items {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			rows = append(rows, mediaRowFromItem(accountID, item, "library"))
		}
		if total+len(rows) > maxItems {
			rows = rows[:maxItems-total]
		}
		if err := s.index.UpsertMedia(ctx, rows); err != nil {
			return 0, err
		}
		total += len(rows)

		frac := float64(total) / float64(total+500)
		if err := progress(min(0.35, 0.04+frac*0.31), fmt.Sprintf("Fetched %d library items", total)); err != nil {
			return 0, err
		}

		pageID, _ = result["nextPageId"].(string)
		if pageID == "" || total >= maxItems {
			return total, nil
		}
	}
}

// collectKeys pages through a listing operation and returns up to maxItems
// media keys.
func (s *Service) collectKeys(ctx context.Context, accountID uuid.UUID, operation string, maxItems int) ([]string, error) {
	var keys []string
	pageID := ""
	for {
		result, err := s.rpcCaller.Call(ctx, accountID, operation, map[string]any{"pageId": pageID})
		if err != nil {
			return nil, err
		}
		items, _ := result["items"].([]any)
		for _, raw := range items {
			item, _ := raw.(map[string]any)
			if key, _ := item["mediaKey"].(string); key != "" {
				keys = append(keys, key)
				if len(keys) >= maxItems {
					return keys, nil
				}
			}
		}
		pageID, _ = result["nextPageId"].(string)
		if pageID == "" {
			return keys, nil
		}
	}
}

// syncAlbums upserts the album listing and drops albums that disappeared
// remotely. Returns the media keys of the live albums.
func (s *Service) syncAlbums(ctx context.Context, accountID uuid.UUID) ([]string, error) {
	var keys []string
	var rows []db.AlbumIndex
	pageID := ""
	for len(keys) < albumSyncLimit {
		result, err := s.rpcCaller.Call(ctx, accountID, "get_albums", map[string]any{"pageId": pageID})
		if err != nil {
			return nil, err
		}
		items, _ := result["items"].([]any)
		for _, raw := range items {
			album, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			key, _ := album["mediaKey"].(string)
			if key == "" {
				continue
			}
			keys = append(keys, key)
			title, _ := album["title"].(string)
			isShared, _ := album["isShared"].(bool)
			owner, _ := album["ownerActorId"].(string)
			thumb, _ := album["thumb"].(string)
			rows = append(rows, db.AlbumIndex{
				AccountID:         accountID,
				MediaKey:          key,
				Title:             title,
				OwnerActorID:      owner,
				ItemCount:         int64Field(album, "itemCount"),
				CreationTimestamp: int64Field(album, "creationTimestamp"),
				ModifiedTimestamp: int64Field(album, "modifiedTimestamp"),
				IsShared:          isShared,
				Thumb:             thumb,
			})
		}
		pageID, _ = result["nextPageId"].(string)
		if pageID == "" {
			break
		}
	}
	if err := s.index.UpsertAlbums(ctx, rows); err != nil {
		return nil, err
	}
	if err := s.index.DeleteAlbumsNotIn(ctx, accountID, keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// backfillMetadata fetches file names and sizes for indexed items in
// chunks. A failing chunk is logged and skipped; the refresh carries on
// with whatever metadata it could get.
func (s *Service) backfillMetadata(ctx context.Context, accountID uuid.UUID) error {
	rows, err := s.index.QueryMedia(ctx, accountID, repositories.MediaQuery{Limit: -1})
	if err != nil {
		return err
	}
	for start := 0; start < len(rows); start += batchInfoChunkSize {
		end := min(start+batchInfoChunkSize, len(rows))
		chunk := rows[start:end]

		keys := make([]string, 0, len(chunk))
		for _, row := range chunk {
			keys = append(keys, row.MediaKey)
		}
		result, err := s.rpcCaller.Call(ctx, accountID, "get_batch_media_info", map[string]any{
			"mediaKeyArray": keys,
		})
		if err != nil {
			s.logger.Warn("metadata chunk failed", zap.Int("offset", start), zap.Error(err))
			continue
		}

		byKey := make(map[string]map[string]any)
		if items, ok := result["items"].([]any); ok {
			for _, raw := range items {
				info, _ := raw.(map[string]any)
				if key, _ := info["mediaKey"].(string); key != "" {
					byKey[key] = info
				}
			}
		}

		updated := make([]db.MediaIndex, 0, len(chunk))
		for _, row := range chunk {
			info, ok := byKey[row.MediaKey]
			if !ok {
				continue
			}
			fileName, _ := info["fileName"].(string)
			row.FileName = fileName
			row.Size = int64Field(info, "size")
			if row.MediaType == "" {
				row.MediaType = mediaTypeFromName(fileName)
			}
			takesUpSpace, _ := info["takesUpSpace"].(bool)
			isOriginal, _ := info["isOriginalQuality"].(bool)
			row.SpaceFlags = db.JSONMap{
				"takesUpSpace":      takesUpSpace,
				"isOriginalQuality": isOriginal,
			}
			if v := int64Field(info, "spaceTaken"); v != nil {
				row.SpaceFlags["spaceTaken"] = *v
			}
			updated = append(updated, row)
		}
		if err := s.index.UpsertMedia(ctx, updated); err != nil {
			return err
		}
	}
	return nil
}

// syncMemberships rebuilds album membership by walking every album's pages.
func (s *Service) syncMemberships(ctx context.Context, accountID uuid.UUID, albumKeys []string) error {
	if err := s.index.ClearAlbumIDs(ctx, accountID); err != nil {
		return err
	}

	memberships := make(map[string][]string)
	for _, albumKey := range albumKeys {
		pageID := ""
		for {
			result, err := s.rpcCaller.Call(ctx, accountID, "get_album_page", map[string]any{
				"albumMediaKey": albumKey,
				"pageId":        pageID,
			})
			if err != nil {
				s.logger.Warn("album membership walk failed",
					zap.String("album", albumKey), zap.Error(err))
				break
			}
			items, _ := result["items"].([]any)
			for _, raw := range items {
				item, _ := raw.(map[string]any)
				if key, _ := item["mediaKey"].(string); key != "" {
					memberships[key] = append(memberships[key], albumKey)
				}
			}
			pageID, _ = result["nextPageId"].(string)
			if pageID == "" {
				break
			}
		}
	}
	return s.index.SetAlbumIDs(ctx, accountID, memberships)
}

// -----------------------------------------------------------------------------
// Row mapping
// -----------------------------------------------------------------------------

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".avi": true, ".webm": true,
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".heic": true, ".gif": true,
}

func mediaTypeFromName(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch {
	case videoExtensions[ext]:
		return "video"
	case imageExtensions[ext]:
		return "image"
	}
	return ""
}

// mediaRowFromItem maps a parsed library item onto an index row.
func mediaRowFromItem(accountID uuid.UUID, item map[string]any, source string) db.MediaIndex {
	mediaKey, _ := item["mediaKey"].(string)
	dedupKey, _ := item["dedupKey"].(string)
	thumb, _ := item["thumb"].(string)
	isArchived, _ := item["isArchived"].(bool)
	isFavorite, _ := item["isFavorite"].(bool)

	mediaType := ""
	if _, hasDuration := item["duration"]; hasDuration {
		mediaType = "video"
	}

	return db.MediaIndex{
		AccountID:         accountID,
		MediaKey:          mediaKey,
		DedupKey:          dedupKey,
		TimestampTaken:    int64Field(item, "timestamp"),
		TimestampUploaded: int64Field(item, "creationTimestamp"),
		TimezoneOffset:    int64Field(item, "timezoneOffset"),
		MediaType:         mediaType,
		IsArchived:        isArchived,
		IsFavorite:        isFavorite,
		AlbumIDs:          db.StringList{},
		ThumbURL:          thumb,
		SpaceFlags:        db.JSONMap{},
		Source:            source,
		RawItem:           db.JSONMap(item),
	}
}

func int64Field(m map[string]any, key string) *int64 {
	switch v := m[key].(type) {
	case *int64:
		return v
	case int64:
		return &v
	case float64:
		i := int64(v)
		return &i
	}
	return nil
}
