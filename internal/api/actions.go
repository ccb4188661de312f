package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/photark-io/photark/internal/actions"
	"github.com/photark-io/photark/internal/db"
	"github.com/photark-io/photark/internal/repositories"
)

// ActionHandler serves the preview/commit endpoints. Every bulk or
// destructive operation goes preview first; the commit enqueues the job.
type ActionHandler struct {
	svc      *actions.Service
	accounts repositories.AccountRepository
	previews repositories.PreviewRepository
	logger   *zap.Logger
}

// NewActionHandler creates a new ActionHandler.
func NewActionHandler(
	svc *actions.Service,
	accounts repositories.AccountRepository,
	previews repositories.PreviewRepository,
	logger *zap.Logger,
) *ActionHandler {
	return &ActionHandler{
		svc:      svc,
		accounts: accounts,
		previews: previews,
		logger:   logger.Named("action_handler"),
	}
}

// previewResponse is the JSON representation of a stored preview.
type previewResponse struct {
	ID              string         `json:"id"`
	AccountID       string         `json:"account_id"`
	Kind            string         `json:"kind"`
	Action          string         `json:"action"`
	QueryPayload    map[string]any `json:"query_payload"`
	ActionParams    map[string]any `json:"action_params"`
	MatchedCount    int            `json:"matched_count"`
	SampleItems     []any          `json:"sample_items"`
	Warnings        []string       `json:"warnings"`
	RequiresConfirm bool           `json:"requires_confirm"`
	Status          string         `json:"status"`
	CommittedJobID  string         `json:"committed_job_id,omitempty"`
	ExpiresAt       string         `json:"expires_at"`
	CreatedAt       string         `json:"created_at"`
}

func previewToResponse(p *db.PreviewAction) previewResponse {
	resp := previewResponse{
		ID:              p.ID.String(),
		AccountID:       p.AccountID.String(),
		Kind:            p.Kind,
		Action:          p.Action,
		QueryPayload:    p.QueryPayload,
		ActionParams:    p.ActionParams,
		MatchedCount:    len(p.MatchedMediaKeys),
		SampleItems:     p.SampleItems,
		Warnings:        p.Warnings,
		RequiresConfirm: p.RequiresConfirm,
		Status:          p.Status,
		ExpiresAt:       formatTime(p.ExpiresAt),
		CreatedAt:       formatTime(p.CreatedAt),
	}
	if p.CommittedJobID != nil {
		resp.CommittedJobID = p.CommittedJobID.String()
	}
	return resp
}

// PreviewExplorerAction handles POST /api/v1/accounts/{id}/actions/preview.
func (h *ActionHandler) PreviewExplorerAction(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAccountID(w, r, h.accounts, h.logger)
	if !ok {
		return
	}
	var req actions.ExplorerActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	preview, err := h.svc.PreviewExplorerAction(r.Context(), id, req)
	if err != nil {
		h.previewError(w, err)
		return
	}
	Created(w, previewToResponse(preview))
}

// PreviewUpload handles POST /api/v1/accounts/{id}/uploads/preview.
func (h *ActionHandler) PreviewUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAccountID(w, r, h.accounts, h.logger)
	if !ok {
		return
	}
	var req actions.UploadRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	preview, err := h.svc.PreviewUpload(r.Context(), id, req)
	if err != nil {
		h.previewError(w, err)
		return
	}
	Created(w, previewToResponse(preview))
}

// PreviewPipeline handles POST /api/v1/accounts/{id}/pipeline/preview.
func (h *ActionHandler) PreviewPipeline(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAccountID(w, r, h.accounts, h.logger)
	if !ok {
		return
	}
	var req actions.PipelineRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	preview, err := h.svc.PreviewPipeline(r.Context(), id, req)
	if err != nil {
		h.previewError(w, err)
		return
	}
	Created(w, previewToResponse(preview))
}

// PreviewAdvanced handles POST /api/v1/accounts/{id}/advanced/preview.
func (h *ActionHandler) PreviewAdvanced(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAccountID(w, r, h.accounts, h.logger)
	if !ok {
		return
	}
	var req actions.AdvancedRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	preview, err := h.svc.PreviewAdvanced(r.Context(), id, req)
	if err != nil {
		h.previewError(w, err)
		return
	}
	Created(w, previewToResponse(preview))
}

// ListPreviews handles GET /api/v1/accounts/{id}/previews.
func (h *ActionHandler) ListPreviews(w http.ResponseWriter, r *http.Request) {
	id, ok := requireAccountID(w, r, h.accounts, h.logger)
	if !ok {
		return
	}
	previews, total, err := h.previews.List(r.Context(), id, paginationOpts(r))
	if err != nil {
		h.logger.Error("failed to list previews", zap.Error(err))
		ErrInternal(w)
		return
	}
	items := make([]previewResponse, len(previews))
	for i := range previews {
		items[i] = previewToResponse(&previews[i])
	}
	Ok(w, map[string]any{"items": items, "total": total})
}

type commitRequest struct {
	Confirm bool `json:"confirm"`
}

// Commit handles POST /api/v1/accounts/{id}/previews/{previewID}/commit.
func (h *ActionHandler) Commit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := requireAccountID(w, r, h.accounts, h.logger)
	if !ok {
		return
	}
	previewID, ok := parseUUID(w, r, "previewID")
	if !ok {
		return
	}
	var req commitRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}

	job, err := h.svc.Commit(r.Context(), accountID, previewID, req.Confirm)
	if err != nil {
		h.commitError(w, err)
		return
	}
	Created(w, jobToResponse(job, nil))
}

// previewError maps preview-creation failures onto HTTP statuses. Service
// errors are user input problems; only repository failures are internal.
func (h *ActionHandler) previewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		ErrNotFound(w)
	case isStorageError(err):
		h.logger.Error("preview failed", zap.Error(err))
		ErrInternal(w)
	default:
		ErrBadRequest(w, err.Error())
	}
}

func (h *ActionHandler) commitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		ErrNotFound(w)
	case errors.Is(err, actions.ErrAccountMismatch):
		ErrNotFound(w)
	case errors.Is(err, actions.ErrAlreadyCommitted):
		ErrConflict(w, err.Error())
	case errors.Is(err, actions.ErrPreviewExpired):
		errJSON(w, http.StatusGone, err.Error(), "gone")
	case errors.Is(err, actions.ErrConfirmRequired):
		ErrBadRequest(w, err.Error())
	case isStorageError(err):
		h.logger.Error("commit failed", zap.Error(err))
		ErrInternal(w)
	default:
		ErrBadRequest(w, err.Error())
	}
}

// isStorageError distinguishes repository failures (wrapped with their table
// prefix) from validation errors raised by the actions service itself.
func isStorageError(err error) bool {
	msg := err.Error()
	for _, prefix := range []string{"previews:", "jobs:", "accounts:", "index:"} {
		if len(msg) >= len(prefix) && msg[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
