package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/photark-io/photark/internal/repositories"
	"go.uber.org/zap"
)

// parseUUID reads and validates a UUID path parameter. On failure it writes
// a 400 and returns false so callers can early-return.
func parseUUID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		ErrBadRequest(w, "invalid "+param+": must be a valid UUID")
		return uuid.UUID{}, false
	}
	return id, true
}

// parseUUIDString parses a raw UUID string, returning an error if invalid.
// Used for query parameter parsing where parseUUID (path param) is not
// applicable.
func parseUUIDString(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// paginationOpts reads limit and offset query parameters from the request.
// Defaults: limit=20, offset=0. Max limit is capped at 100.
func paginationOpts(r *http.Request) repositories.ListOptions {
	limit := 20
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 100 {
		limit = 100
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return repositories.ListOptions{Limit: limit, Offset: offset}
}

// requireAccountID parses the {id} path param and checks that the account
// exists, writing the error response itself on failure.
func requireAccountID(w http.ResponseWriter, r *http.Request, accounts repositories.AccountRepository, logger *zap.Logger) (uuid.UUID, bool) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return uuid.UUID{}, false
	}
	if _, err := accounts.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return uuid.UUID{}, false
		}
		logger.Error("failed to load account", zap.Error(err))
		ErrInternal(w)
		return uuid.UUID{}, false
	}
	return id, true
}
