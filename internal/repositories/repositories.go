package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/photark-io/photark/internal/db"
)

// -----------------------------------------------------------------------------
// Common
// -----------------------------------------------------------------------------

// ListOptions contains common pagination options for list queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// -----------------------------------------------------------------------------
// AccountRepository
// -----------------------------------------------------------------------------

type AccountRepository interface {
	Create(ctx context.Context, account *db.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.Account, error)
	Update(ctx context.Context, account *db.Account) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, opts ListOptions) ([]db.Account, int64, error)
}

// -----------------------------------------------------------------------------
// CredentialRepository
// -----------------------------------------------------------------------------

// CredentialRepository manages per-account credentials and cached RPC session
// state. Each account has at most one row per credential kind; writes are
// upserts keyed on account_id.
type CredentialRepository interface {
	UpsertCookies(ctx context.Context, accountID uuid.UUID, jar db.EncryptedJSON) error
	GetCookies(ctx context.Context, accountID uuid.UUID) (*db.CredentialCookies, error)

	UpsertUploadAuth(ctx context.Context, accountID uuid.UUID, authData db.EncryptedString) error
	GetUploadAuth(ctx context.Context, accountID uuid.UUID) (*db.CredentialUpload, error)

	UpsertSession(ctx context.Context, accountID uuid.UUID, state db.JSONMap) error
	GetSession(ctx context.Context, accountID uuid.UUID) (*db.RPCSession, error)
	ClearSession(ctx context.Context, accountID uuid.UUID) error
}

// -----------------------------------------------------------------------------
// JobRepository
// -----------------------------------------------------------------------------

// JobListOptions filters job list queries. Zero values mean "no filter".
type JobListOptions struct {
	AccountID uuid.UUID
	Status    string
	Limit     int
	Offset    int
}

type JobRepository interface {
	Create(ctx context.Context, job *db.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.Job, error)
	Update(ctx context.Context, job *db.Job) error
	List(ctx context.Context, opts JobListOptions) ([]db.Job, int64, error)

	// ClaimJobs atomically transitions up to limit queued jobs to running,
	// oldest first, skipping jobs whose account already has maxPerAccount
	// jobs in flight (counting both the inFlight map and jobs claimed within
	// this call). All claims commit in a single transaction.
	ClaimJobs(ctx context.Context, limit, maxPerAccount int, inFlight map[uuid.UUID]int) ([]db.Job, error)

	AppendEvent(ctx context.Context, event *db.JobEvent) error
	ListEvents(ctx context.Context, jobID uuid.UUID) ([]db.JobEvent, error)

	// ListEventsAfter returns events strictly after the (after, afterID)
	// cursor, oldest first. The id tie-break keeps the stream exact when
	// multiple events share a created_at tick. Used by the SSE stream.
	ListEventsAfter(ctx context.Context, after time.Time, afterID uuid.UUID, limit int) ([]db.JobEvent, error)

	// PruneEventsBefore removes job events created before the cutoff.
	// Returns the number of rows removed.
	PruneEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// -----------------------------------------------------------------------------
// PreviewRepository
// -----------------------------------------------------------------------------

type PreviewRepository interface {
	Create(ctx context.Context, preview *db.PreviewAction) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.PreviewAction, error)
	Update(ctx context.Context, preview *db.PreviewAction) error
	List(ctx context.Context, accountID uuid.UUID, opts ListOptions) ([]db.PreviewAction, int64, error)

	// DeleteExpired removes previews whose TTL elapsed before now and that
	// were never committed. Returns the number of rows removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// -----------------------------------------------------------------------------
// IndexRepository
// -----------------------------------------------------------------------------

// MediaQuery filters explorer queries over the media index. Pointer fields
// distinguish "unset" from an explicit false.
type MediaQuery struct {
	Source    string
	Favorite  *bool
	Archived  *bool
	Trashed   *bool
	MediaType string
	DateFrom  *int64
	DateTo    *int64
	Search    string
	AlbumID   string
	Sort      string // "timestamp_desc" (default), "timestamp_asc", "uploaded_desc"
	Limit     int
	Offset    int
}

// IndexRepository persists the local mirror of remote media and albums.
// All operations are scoped to a single account.
type IndexRepository interface {
	UpsertMedia(ctx context.Context, rows []db.MediaIndex) error
	QueryMedia(ctx context.Context, accountID uuid.UUID, q MediaQuery) ([]db.MediaIndex, error)
	ListMediaByKeys(ctx context.Context, accountID uuid.UUID, mediaKeys []string) ([]db.MediaIndex, error)
	CountMedia(ctx context.Context, accountID uuid.UUID) (int64, error)
	DeleteAllMedia(ctx context.Context, accountID uuid.UUID) error

	// SetFlag resets the named boolean column (is_favorite or is_trashed)
	// for the whole account, then sets it for the given media keys. Rows
	// flagged trashed also get their source column updated.
	SetFavorites(ctx context.Context, accountID uuid.UUID, mediaKeys []string) error
	SetTrashed(ctx context.Context, accountID uuid.UUID, mediaKeys []string) error

	// SetAlbumIDs overwrites the album membership list of each given media
	// key. Keys absent from the map keep their stored value; call
	// ClearAlbumIDs first for a full rebuild.
	ClearAlbumIDs(ctx context.Context, accountID uuid.UUID) error
	SetAlbumIDs(ctx context.Context, accountID uuid.UUID, memberships map[string][]string) error

	UpsertAlbums(ctx context.Context, rows []db.AlbumIndex) error
	ListAlbums(ctx context.Context, accountID uuid.UUID) ([]db.AlbumIndex, error)
	DeleteAlbumsNotIn(ctx context.Context, accountID uuid.UUID, mediaKeys []string) error
	DeleteAllAlbums(ctx context.Context, accountID uuid.UUID) error
}
