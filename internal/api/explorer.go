package api

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/photark-io/photark/internal/db"
	"github.com/photark-io/photark/internal/explorer"
	"github.com/photark-io/photark/internal/repositories"
)

// ExplorerHandler serves the indexed media views: sources, query pages,
// albums, and the index refresh trigger. Queries never leave the local
// index; refreshing runs as a job.
type ExplorerHandler struct {
	svc      *explorer.Service
	accounts repositories.AccountRepository
	jobs     repositories.JobRepository
	logger   *zap.Logger
}

// NewExplorerHandler creates a new ExplorerHandler.
func NewExplorerHandler(
	svc *explorer.Service,
	accounts repositories.AccountRepository,
	jobs repositories.JobRepository,
	logger *zap.Logger,
) *ExplorerHandler {
	return &ExplorerHandler{
		svc:      svc,
		accounts: accounts,
		jobs:     jobs,
		logger:   logger.Named("explorer_handler"),
	}
}

// Sources handles GET /api/v1/explorer/sources.
func (h *ExplorerHandler) Sources(w http.ResponseWriter, r *http.Request) {
	Ok(w, explorer.Sources())
}

// Query handles POST /api/v1/accounts/{id}/explorer/query.
func (h *ExplorerHandler) Query(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	var query explorer.Query
	if !decodeJSON(w, r, &query) {
		return
	}

	page, err := h.svc.Query(r.Context(), id, query)
	if err != nil {
		ErrBadRequest(w, err.Error())
		return
	}
	Ok(w, page)
}

// Albums handles GET /api/v1/accounts/{id}/explorer/albums.
func (h *ExplorerHandler) Albums(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	albums, err := h.svc.Albums(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list albums", zap.Error(err))
		ErrInternal(w)
		return
	}
	Ok(w, albums)
}

type refreshIndexRequest struct {
	ForceFull       bool `json:"force_full"`
	SyncMemberships bool `json:"sync_memberships"`
}

// Refresh handles POST /api/v1/accounts/{id}/explorer/refresh. The refresh
// walks the remote library, so it is enqueued as a job rather than run
// inline.
func (h *ExplorerHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	var req refreshIndexRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}

	job := &db.Job{
		AccountID: id,
		Provider:  "explorer",
		Operation: "explorer.refresh_index",
		DryRun:    false,
		Params: db.JSONMap{
			"force_full":       req.ForceFull,
			"sync_memberships": req.SyncMemberships,
		},
		Status:  db.JobStatusQueued,
		Message: "Queued",
	}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		h.logger.Error("failed to enqueue index refresh", zap.Error(err))
		ErrInternal(w)
		return
	}
	Created(w, jobToResponse(job, nil))
}

func (h *ExplorerHandler) requireAccount(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return requireAccountID(w, r, h.accounts, h.logger)
}
