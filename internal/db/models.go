package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base contains the common fields shared by all models. It must stay
// exported: GORM only descends into exported embedded structs, so an
// unexported embed would leave these columns out of every INSERT.
// ID uses UUID v7 (time-ordered) for efficient B-tree indexing and natural
// chronological ordering without a separate created_at sort. CreatedAt and
// UpdatedAt are managed automatically by GORM.
type Base struct {
	ID        uuid.UUID `gorm:"type:text;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a new UUID v7 if the ID is not already set.
// This ensures every record has a valid time-ordered ID before insertion.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == (uuid.UUID{}) {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		b.ID = id
	}
	return nil
}

// -----------------------------------------------------------------------------
// Accounts & credentials
// -----------------------------------------------------------------------------

// Account represents a credential-bearing tenant. All jobs, previews, and
// index rows hang off an account. Credentials and session state live in
// their own tables so they can be rotated without touching the account row.
type Account struct {
	Base
	Label     string `gorm:"not null"`
	EmailHint string `gorm:"default:''"`
	IsActive  bool   `gorm:"not null;default:true"`
}

// CredentialCookies stores the per-account cookie jar for the native RPC
// provider. The jar is an ordered list of cookie records serialized as JSON
// and encrypted at rest — cookie values are session credentials.
type CredentialCookies struct {
	Base
	AccountID uuid.UUID     `gorm:"type:text;not null;uniqueIndex"`
	CookieJar EncryptedJSON `gorm:"type:text;not null"`
}

// CredentialUpload stores the opaque auth blob used by the bulk-upload
// provider. Encrypted at rest via EncryptedString.
type CredentialUpload struct {
	Base
	AccountID uuid.UUID       `gorm:"type:text;not null;uniqueIndex"`
	AuthData  EncryptedString `gorm:"type:text;not null"`
}

// RPCSession caches the opaque session material produced by RPC bootstrap
// (session id, build label, path prefix, anti-forgery token, optional
// re-auth token). Overwritten wholesale on every refresh — last writer wins.
type RPCSession struct {
	Base
	AccountID uuid.UUID `gorm:"type:text;not null;uniqueIndex"`
	State     JSONMap   `gorm:"type:text;not null"`
}

// -----------------------------------------------------------------------------
// Jobs
// -----------------------------------------------------------------------------

// Job statuses. Terminal statuses always carry FinishedAt.
const (
	JobStatusQueued              = "queued"
	JobStatusRunning             = "running"
	JobStatusSucceeded           = "succeeded"
	JobStatusFailed              = "failed"
	JobStatusCancelled           = "cancelled"
	JobStatusRequiresCredentials = "requires_credentials"
)

// JobStatusTerminal reports whether status is one of the terminal states.
func JobStatusTerminal(status string) bool {
	switch status {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled, JobStatusRequiresCredentials:
		return true
	}
	return false
}

// Job is the durable unit of work. Status transitions:
// queued -> running -> succeeded | failed | cancelled | requires_credentials.
// A queued job may also go directly to cancelled or failed (safety gate).
//
// The row is written only by the HTTP boundary (cancel request), the claim
// transaction, and the owning executor. CancelRequested is the one field
// that may flip under the executor's feet.
type Job struct {
	Base
	AccountID uuid.UUID `gorm:"type:text;not null;index"`

	Provider  string  `gorm:"not null;index"`
	Operation string  `gorm:"not null;index"`
	DryRun    bool    `gorm:"not null;default:true"`
	Params    JSONMap `gorm:"type:text;not null"`

	Status          string  `gorm:"not null;default:'queued';index"`
	Progress        float64 `gorm:"not null;default:0"`
	Message         string  `gorm:"type:text;default:''"`
	Result          JSONMap `gorm:"type:text"`
	Error           JSONMap `gorm:"type:text"`
	CancelRequested bool    `gorm:"not null;default:false"`

	StartedAt  *time.Time
	FinishedAt *time.Time
}

// JobEvent is an append-only log line emitted during job execution.
// Events are never mutated; their insertion order per job equals the causal
// order of progress updates, and streamers observe them in that order.
type JobEvent struct {
	Base
	JobID    uuid.UUID `gorm:"type:text;not null;index"`
	Level    string    `gorm:"not null;default:'info'"` // "info", "warn", "error"
	Message  string    `gorm:"type:text;not null"`
	Progress *float64
}

// -----------------------------------------------------------------------------
// Previews
// -----------------------------------------------------------------------------

// Preview statuses and kinds.
const (
	PreviewStatusPreviewed = "previewed"
	PreviewStatusCommitted = "committed"
	PreviewStatusExpired   = "expired"

	PreviewKindExplorerAction = "explorer_action"
	PreviewKindUpload         = "upload"
	PreviewKindPipeline       = "pipeline_disguise_upload"
	PreviewKindAdvanced       = "advanced"
)

// PreviewAction is the two-phase commit token for destructive or bulk work.
// A preview binds a resolved target set + action params + warnings to an
// opaque id with a TTL; committing it enqueues the real job exactly once.
type PreviewAction struct {
	Base
	AccountID uuid.UUID `gorm:"type:text;not null;index"`

	Kind   string `gorm:"not null;index"`
	Action string `gorm:"not null"`

	QueryPayload     JSONMap    `gorm:"type:text;not null"`
	ActionParams     JSONMap    `gorm:"type:text;not null"`
	MatchedMediaKeys StringList `gorm:"type:text;not null"`
	SampleItems      JSONList   `gorm:"type:text;not null"`
	Warnings         StringList `gorm:"type:text;not null"`

	RequiresConfirm bool   `gorm:"not null;default:true"`
	Status          string `gorm:"not null;default:'previewed';index"`

	CommittedJobID *uuid.UUID `gorm:"type:text"`
	ExpiresAt      time.Time  `gorm:"not null;index"`
}

// -----------------------------------------------------------------------------
// Explorer index
// -----------------------------------------------------------------------------

// MediaIndex mirrors one remote library item. Composite primary key
// (account_id, media_key) — the index is strictly per account.
//
// MediaIndex does not embed Base: the natural key is the provider-side
// media key, not a UUID.
type MediaIndex struct {
	AccountID uuid.UUID `gorm:"type:text;primaryKey"`
	MediaKey  string    `gorm:"primaryKey"`

	DedupKey          string `gorm:"index;default:''"`
	TimestampTaken    *int64 `gorm:"index"`
	TimestampUploaded *int64 `gorm:"index"`
	TimezoneOffset    *int64
	FileName          string `gorm:"type:text;default:''"`
	Size              *int64
	MediaType         string `gorm:"index;default:''"` // "image" or "video"

	IsArchived bool `gorm:"not null;default:false;index"`
	IsFavorite bool `gorm:"not null;default:false;index"`
	IsTrashed  bool `gorm:"not null;default:false;index"`

	AlbumIDs   StringList `gorm:"type:text;not null"`
	ThumbURL   string     `gorm:"type:text;default:''"`
	OwnerName  string     `gorm:"default:''"`
	SpaceFlags JSONMap    `gorm:"type:text;not null"`
	Source     string     `gorm:"not null;default:'library';index"`

	RawItem JSONMap `gorm:"type:text;not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null;index"`
}

// AlbumIndex mirrors one remote album. Composite primary key like MediaIndex.
type AlbumIndex struct {
	AccountID uuid.UUID `gorm:"type:text;primaryKey"`
	MediaKey  string    `gorm:"primaryKey"`

	Title             string `gorm:"default:''"`
	OwnerActorID      string `gorm:"default:''"`
	ItemCount         *int64
	CreationTimestamp *int64
	ModifiedTimestamp *int64
	IsShared          bool   `gorm:"not null;default:false"`
	Thumb             string `gorm:"type:text;default:''"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null;index"`
}
