package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/photark-io/photark/internal/cookies"
	"github.com/photark-io/photark/internal/db"
	"github.com/photark-io/photark/internal/repositories"
)

// maxCookieFileSize bounds uploaded cookie export files.
const maxCookieFileSize = 4 << 20

// SessionRefresher bootstraps a fresh RPC session for an account. Implemented
// by the native-rpc adapter.
type SessionRefresher interface {
	RefreshSession(ctx context.Context, accountID uuid.UUID) (map[string]any, error)
}

// AccountHandler groups the account and credential endpoints.
type AccountHandler struct {
	accounts  repositories.AccountRepository
	creds     repositories.CredentialRepository
	refresher SessionRefresher
	logger    *zap.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(
	accounts repositories.AccountRepository,
	creds repositories.CredentialRepository,
	refresher SessionRefresher,
	logger *zap.Logger,
) *AccountHandler {
	return &AccountHandler{
		accounts:  accounts,
		creds:     creds,
		refresher: refresher,
		logger:    logger.Named("account_handler"),
	}
}

// accountResponse is the JSON representation of an account. Credentials are
// never echoed back; only their presence is reported.
type accountResponse struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	EmailHint string `json:"email_hint"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

func accountToResponse(a *db.Account) accountResponse {
	return accountResponse{
		ID:        a.ID.String(),
		Label:     a.Label,
		EmailHint: a.EmailHint,
		IsActive:  a.IsActive,
		CreatedAt: formatTime(a.CreatedAt),
	}
}

type createAccountRequest struct {
	Label     string `json:"label"`
	EmailHint string `json:"email_hint"`
}

// Create handles POST /api/v1/accounts.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Label == "" {
		ErrBadRequest(w, "label is required")
		return
	}

	account := &db.Account{Label: req.Label, EmailHint: req.EmailHint, IsActive: true}
	if err := h.accounts.Create(r.Context(), account); err != nil {
		h.logger.Error("failed to create account", zap.Error(err))
		ErrInternal(w)
		return
	}
	Created(w, accountToResponse(account))
}

// List handles GET /api/v1/accounts, newest first.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, total, err := h.accounts.List(r.Context(), paginationOpts(r))
	if err != nil {
		h.logger.Error("failed to list accounts", zap.Error(err))
		ErrInternal(w)
		return
	}
	items := make([]accountResponse, len(accounts))
	for i := range accounts {
		items[i] = accountToResponse(&accounts[i])
	}
	Ok(w, map[string]any{"items": items, "total": total})
}

// GetByID handles GET /api/v1/accounts/{id}.
func (h *AccountHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}
	account, err := h.accounts.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to get account", zap.Error(err))
		ErrInternal(w)
		return
	}
	Ok(w, accountToResponse(account))
}

// Delete handles DELETE /api/v1/accounts/{id}. Credentials and index rows go
// with the account; jobs and previews are kept for audit.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.accounts.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to delete account", zap.Error(err))
		ErrInternal(w)
		return
	}
	NoContent(w)
}

// -----------------------------------------------------------------------------
// Credentials
// -----------------------------------------------------------------------------

type uploadAuthRequest struct {
	AuthData string `json:"auth_data"`
}

// SetUploadAuth handles POST /api/v1/accounts/{id}/credentials/upload-auth.
func (h *AccountHandler) SetUploadAuth(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	var req uploadAuthRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AuthData == "" {
		ErrBadRequest(w, "auth_data is required")
		return
	}
	if err := h.creds.UpsertUploadAuth(r.Context(), id, db.EncryptedString(req.AuthData)); err != nil {
		h.logger.Error("failed to store upload auth", zap.Error(err))
		ErrInternal(w)
		return
	}
	Ok(w, map[string]any{"account_id": id.String(), "stored": true})
}

// ImportCookies handles POST /api/v1/accounts/{id}/credentials/cookies/import.
// The body is a multipart form with a "file" field holding a Netscape cookie
// export. Importing new cookies invalidates any cached RPC session.
func (h *AccountHandler) ImportCookies(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireAccount(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxCookieFileSize); err != nil {
		ErrBadRequest(w, "expected a multipart form with a file field")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		ErrBadRequest(w, "expected a multipart form with a file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxCookieFileSize))
	if err != nil {
		h.logger.Error("failed to read cookie file", zap.Error(err))
		ErrInternal(w)
		return
	}
	if !utf8.Valid(data) {
		ErrBadRequest(w, "Cookie file must be UTF-8 text")
		return
	}

	jar, err := cookies.ParseNetscape(string(data))
	if err != nil {
		ErrBadRequest(w, "No valid cookies found in file")
		return
	}
	h.storeCookies(w, r, id, jar)
}

type pasteCookiesRequest struct {
	CookieString string `json:"cookie_string"`
}

// PasteCookies handles POST /api/v1/accounts/{id}/credentials/cookies/paste.
// The body carries a raw "name=value; name=value" cookie header string.
func (h *AccountHandler) PasteCookies(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	var req pasteCookiesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	jar, err := cookies.ParseString(req.CookieString)
	if err != nil {
		ErrBadRequest(w, "Invalid cookie string")
		return
	}
	h.storeCookies(w, r, id, jar)
}

func (h *AccountHandler) storeCookies(w http.ResponseWriter, r *http.Request, id uuid.UUID, jar []cookies.Cookie) {
	encoded, err := db.MarshalJSONValue(jar)
	if err != nil {
		h.logger.Error("failed to encode cookie jar", zap.Error(err))
		ErrInternal(w)
		return
	}
	if err := h.creds.UpsertCookies(r.Context(), id, encoded); err != nil {
		h.logger.Error("failed to store cookie jar", zap.Error(err))
		ErrInternal(w)
		return
	}
	Ok(w, map[string]any{"account_id": id.String(), "cookie_count": len(jar)})
}

// RefreshSession handles POST /api/v1/accounts/{id}/session/refresh. It
// bootstraps a fresh RPC session with the stored cookies; failures surface
// as 400 so the GUI can prompt for new credentials.
func (h *AccountHandler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	state, err := h.refresher.RefreshSession(r.Context(), id)
	if err != nil {
		ErrBadRequest(w, err.Error())
		return
	}
	Ok(w, map[string]any{"account_id": id.String(), "session_state": state})
}

// requireAccount parses the account id and checks the account exists.
func (h *AccountHandler) requireAccount(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return uuid.UUID{}, false
	}
	if _, err := h.accounts.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return uuid.UUID{}, false
		}
		h.logger.Error("failed to load account", zap.Error(err))
		ErrInternal(w)
		return uuid.UUID{}, false
	}
	return id, true
}
