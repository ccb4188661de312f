package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/photark-io/photark/internal/catalog"
)

// OperationHandler serves the operation catalog for discovery.
type OperationHandler struct{}

// NewOperationHandler creates a new OperationHandler.
func NewOperationHandler() *OperationHandler {
	return &OperationHandler{}
}

// List handles GET /api/v1/operations.
func (h *OperationHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := catalog.Entries()
	Ok(w, map[string]any{"items": entries, "total": len(entries)})
}

// GetByName handles GET /api/v1/operations/{name}.
func (h *OperationHandler) GetByName(w http.ResponseWriter, r *http.Request) {
	entry, ok := catalog.Lookup(chi.URLParam(r, "name"))
	if !ok {
		ErrNotFound(w)
		return
	}
	Ok(w, entry)
}
