package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/photark-io/photark/internal/actions"
	"github.com/photark-io/photark/internal/db"
	"github.com/photark-io/photark/internal/explorer"
	"github.com/photark-io/photark/internal/repositories"
	"github.com/photark-io/photark/internal/websocket"
)

type fakeRefresher struct {
	state map[string]any
	err   error
}

func (f *fakeRefresher) RefreshSession(context.Context, uuid.UUID) (map[string]any, error) {
	return f.state, f.err
}

type fixture struct {
	router    http.Handler
	accounts  repositories.AccountRepository
	jobs      repositories.JobRepository
	previews  repositories.PreviewRepository
	index     repositories.IndexRepository
	refresher *fakeRefresher
}

func setup(t *testing.T) *fixture {
	t.Helper()
	require.NoError(t, db.InitEncryption([]byte("0123456789abcdef0123456789abcdef")))

	database, err := db.New(db.Config{Driver: "sqlite", DSN: ":memory:", Logger: zap.NewNop()})
	require.NoError(t, err)

	f := &fixture{
		accounts:  repositories.NewAccountRepository(database),
		jobs:      repositories.NewJobRepository(database),
		previews:  repositories.NewPreviewRepository(database),
		index:     repositories.NewIndexRepository(database),
		refresher: &fakeRefresher{state: map[string]any{"at": "token"}},
	}
	creds := repositories.NewCredentialRepository(database)
	explorerSvc := explorer.NewService(f.index, nil, zap.NewNop())
	actionsSvc := actions.NewService(f.previews, f.jobs, f.accounts, f.index, 30*time.Minute, zap.NewNop())

	f.router = NewRouter(RouterConfig{
		Logger:      zap.NewNop(),
		Accounts:    f.accounts,
		Credentials: creds,
		Jobs:        f.jobs,
		Previews:    f.previews,
		Explorer:    explorerSvc,
		Actions:     actionsSvc,
		Refresher:   f.refresher,
		Hub:         websocket.NewHub(),
	})
	return f
}

func (f *fixture) newAccount(t *testing.T) uuid.UUID {
	t.Helper()
	account := &db.Account{Label: "test", IsActive: true}
	require.NoError(t, f.accounts.Create(context.Background(), account))
	return account.ID
}

func (f *fixture) seedMedia(t *testing.T, accountID uuid.UUID, n int) []string {
	t.Helper()
	rows := make([]db.MediaIndex, 0, n)
	keys := make([]string, 0, n)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("m%03d", i)
		ts := int64(1700000000 + i)
		keys = append(keys, key)
		rows = append(rows, db.MediaIndex{
			AccountID:      accountID,
			MediaKey:       key,
			DedupKey:       "dedup-" + key,
			TimestampTaken: &ts,
			FileName:       key + ".jpg",
			MediaType:      "image",
			AlbumIDs:       db.StringList{},
			SpaceFlags:     db.JSONMap{},
			Source:         "library",
			RawItem:        db.JSONMap{},
		})
	}
	require.NoError(t, f.index.UpsertMedia(context.Background(), rows))
	return keys
}

// do performs a JSON request against the router and decodes the envelope.
func (f *fixture) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var envelope map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	}
	return rec.Code, envelope
}

func data(t *testing.T, envelope map[string]any) map[string]any {
	t.Helper()
	payload, ok := envelope["data"].(map[string]any)
	require.True(t, ok, "expected data envelope, got %v", envelope)
	return payload
}

func errMessage(t *testing.T, envelope map[string]any) string {
	t.Helper()
	errObj, ok := envelope["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", envelope)
	msg, _ := errObj["message"].(string)
	return msg
}

func TestHealthz(t *testing.T) {
	f := setup(t)
	code, envelope := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", data(t, envelope)["status"])
}

func TestAccountLifecycle(t *testing.T) {
	f := setup(t)

	code, envelope := f.do(t, http.MethodPost, "/api/v1/accounts", map[string]any{"email_hint": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "label is required", errMessage(t, envelope))

	code, envelope = f.do(t, http.MethodPost, "/api/v1/accounts", map[string]any{
		"label": "Main", "email_hint": "a***@gmail.com",
	})
	require.Equal(t, http.StatusCreated, code)
	created := data(t, envelope)
	assert.Equal(t, "Main", created["label"])
	id := created["id"].(string)

	code, envelope = f.do(t, http.MethodGet, "/api/v1/accounts/"+id, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "a***@gmail.com", data(t, envelope)["email_hint"])

	code, _ = f.do(t, http.MethodDelete, "/api/v1/accounts/"+id, nil)
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = f.do(t, http.MethodGet, "/api/v1/accounts/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCreateJobDestructiveGate(t *testing.T) {
	f := setup(t)
	accountID := f.newAccount(t)

	// Real destructive run without confirmed is rejected before queueing.
	code, envelope := f.do(t, http.MethodPost, "/api/v1/jobs", map[string]any{
		"account_id": accountID.String(),
		"operation":  "native-rpc.move_items_to_trash",
		"dry_run":    false,
		"params":     map[string]any{"dedupKeyArray": []string{"d1"}},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Destructive operation requires params.confirmed=true after dry-run", errMessage(t, envelope))

	// Dry run defaults to true and passes the gate.
	code, envelope = f.do(t, http.MethodPost, "/api/v1/jobs", map[string]any{
		"account_id": accountID.String(),
		"operation":  "native-rpc.move_items_to_trash",
		"params":     map[string]any{"dedupKeyArray": []string{"d1"}},
	})
	require.Equal(t, http.StatusCreated, code)
	job := data(t, envelope)
	assert.Equal(t, "queued", job["status"])
	assert.Equal(t, true, job["dry_run"])
	assert.Equal(t, "native-rpc", job["provider"])

	// Confirmed real run queues.
	code, _ = f.do(t, http.MethodPost, "/api/v1/jobs", map[string]any{
		"account_id": accountID.String(),
		"operation":  "native-rpc.move_items_to_trash",
		"dry_run":    false,
		"params":     map[string]any{"dedupKeyArray": []string{"d1"}, "confirmed": true},
	})
	assert.Equal(t, http.StatusCreated, code)
}

func TestCreateJobUnknownAccount(t *testing.T) {
	f := setup(t)
	code, _ := f.do(t, http.MethodPost, "/api/v1/jobs", map[string]any{
		"account_id": uuid.New().String(),
		"operation":  "native-rpc.get_items_by_uploaded_date",
	})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCancelJob(t *testing.T) {
	f := setup(t)
	accountID := f.newAccount(t)

	code, envelope := f.do(t, http.MethodPost, "/api/v1/jobs", map[string]any{
		"account_id": accountID.String(),
		"operation":  "native-rpc.get_items_by_uploaded_date",
	})
	require.Equal(t, http.StatusCreated, code)
	jobID := data(t, envelope)["id"].(string)

	code, envelope = f.do(t, http.MethodPost, "/api/v1/jobs/"+jobID+"/cancel", nil)
	require.Equal(t, http.StatusOK, code)
	cancelled := data(t, envelope)
	assert.Equal(t, "cancelled", cancelled["status"])
	assert.Equal(t, "Cancelled before execution", cancelled["message"])
	assert.NotNil(t, cancelled["finished_at"])

	// Cancelling a terminal job is a no-op.
	code, envelope = f.do(t, http.MethodPost, "/api/v1/jobs/"+jobID+"/cancel", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cancelled", data(t, envelope)["status"])
}

func TestJobListFilters(t *testing.T) {
	f := setup(t)
	accountA := f.newAccount(t)
	accountB := f.newAccount(t)

	for _, id := range []uuid.UUID{accountA, accountA, accountB} {
		code, _ := f.do(t, http.MethodPost, "/api/v1/jobs", map[string]any{
			"account_id": id.String(),
			"operation":  "native-rpc.get_items_by_uploaded_date",
		})
		require.Equal(t, http.StatusCreated, code)
	}

	code, envelope := f.do(t, http.MethodGet, "/api/v1/jobs?account_id="+accountA.String(), nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, data(t, envelope)["total"])

	code, _ = f.do(t, http.MethodGet, "/api/v1/jobs?account_id=not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestImportCookies(t *testing.T) {
	f := setup(t)
	accountID := f.newAccount(t)
	url := "/api/v1/accounts/" + accountID.String() + "/credentials/cookies/import"

	post := func(content []byte) (int, map[string]any) {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		part, err := writer.CreateFormFile("file", "cookies.txt")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, url, &buf)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		var envelope map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
		return rec.Code, envelope
	}

	code, envelope := post([]byte{0xff, 0xfe, 0x00})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Cookie file must be UTF-8 text", errMessage(t, envelope))

	code, envelope = post([]byte("not a cookie file"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No valid cookies found in file", errMessage(t, envelope))

	netscape := strings.Join([]string{
		"# Netscape HTTP Cookie File",
		".google.com\tTRUE\t/\tTRUE\t1999999999\tSID\tabc",
		".google.com\tTRUE\t/\tTRUE\t1999999999\tHSID\tdef",
	}, "\n")
	code, envelope = post([]byte(netscape))
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, data(t, envelope)["cookie_count"])
}

func TestPasteCookies(t *testing.T) {
	f := setup(t)
	accountID := f.newAccount(t)
	url := "/api/v1/accounts/" + accountID.String() + "/credentials/cookies/paste"

	code, envelope := f.do(t, http.MethodPost, url, map[string]any{"cookie_string": ";;;"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid cookie string", errMessage(t, envelope))

	code, envelope = f.do(t, http.MethodPost, url, map[string]any{"cookie_string": "SID=abc; HSID=def"})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, data(t, envelope)["cookie_count"])
}

func TestRefreshSession(t *testing.T) {
	f := setup(t)
	accountID := f.newAccount(t)
	url := "/api/v1/accounts/" + accountID.String() + "/session/refresh"

	code, envelope := f.do(t, http.MethodPost, url, nil)
	require.Equal(t, http.StatusOK, code)
	state := data(t, envelope)["session_state"].(map[string]any)
	assert.Equal(t, "token", state["at"])

	f.refresher.err = fmt.Errorf("cookie jar is missing for this account")
	code, envelope = f.do(t, http.MethodPost, url, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "cookie jar is missing for this account", errMessage(t, envelope))
}

func TestPreviewCommitFlow(t *testing.T) {
	f := setup(t)
	accountID := f.newAccount(t)
	keys := f.seedMedia(t, accountID, 3)
	base := "/api/v1/accounts/" + accountID.String()

	code, envelope := f.do(t, http.MethodPost, base+"/actions/preview", map[string]any{
		"action":   "trash",
		"selected": keys,
	})
	require.Equal(t, http.StatusCreated, code)
	preview := data(t, envelope)
	assert.Equal(t, true, preview["requires_confirm"])
	assert.EqualValues(t, 3, preview["matched_count"])
	previewID := preview["id"].(string)

	commitURL := base + "/previews/" + previewID + "/commit"

	code, _ = f.do(t, http.MethodPost, commitURL, map[string]any{"confirm": false})
	assert.Equal(t, http.StatusBadRequest, code)

	code, envelope = f.do(t, http.MethodPost, commitURL, map[string]any{"confirm": true})
	require.Equal(t, http.StatusCreated, code)
	job := data(t, envelope)
	assert.Equal(t, "native-rpc.move_items_to_trash", job["operation"])
	assert.Equal(t, "queued", job["status"])

	// Second commit conflicts.
	code, _ = f.do(t, http.MethodPost, commitURL, map[string]any{"confirm": true})
	assert.Equal(t, http.StatusConflict, code)

	// Commit against a different account 404s.
	otherID := f.newAccount(t)
	code, _ = f.do(t, http.MethodPost, "/api/v1/accounts/"+otherID.String()+"/previews/"+previewID+"/commit",
		map[string]any{"confirm": true})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPreviewExpiredCommit(t *testing.T) {
	f := setup(t)
	accountID := f.newAccount(t)
	keys := f.seedMedia(t, accountID, 1)
	base := "/api/v1/accounts/" + accountID.String()

	code, envelope := f.do(t, http.MethodPost, base+"/actions/preview", map[string]any{
		"action":   "favorite",
		"selected": keys,
	})
	require.Equal(t, http.StatusCreated, code)
	previewID := data(t, envelope)["id"].(string)

	stored, err := f.previews.GetByID(context.Background(), uuid.MustParse(previewID))
	require.NoError(t, err)
	stored.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, f.previews.Update(context.Background(), stored))

	code, _ = f.do(t, http.MethodPost, base+"/previews/"+previewID+"/commit", map[string]any{"confirm": true})
	assert.Equal(t, http.StatusGone, code)
}

func TestExplorerEndpoints(t *testing.T) {
	f := setup(t)
	accountID := f.newAccount(t)
	f.seedMedia(t, accountID, 5)
	base := "/api/v1/accounts/" + accountID.String()

	code, envelope := f.do(t, http.MethodGet, "/api/v1/explorer/sources", nil)
	require.Equal(t, http.StatusOK, code)
	sources := envelope["data"].([]any)
	assert.Len(t, sources, 5)

	code, envelope = f.do(t, http.MethodPost, base+"/explorer/query", map[string]any{
		"source": "library", "page_size": 2,
	})
	require.Equal(t, http.StatusOK, code)
	page := data(t, envelope)
	assert.Len(t, page["items"].([]any), 2)
	assert.Equal(t, true, page["has_more"])

	code, _ = f.do(t, http.MethodPost, base+"/explorer/query", map[string]any{
		"source": "library", "cursor": "bogus",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	// Refresh enqueues an explorer job rather than running inline.
	code, envelope = f.do(t, http.MethodPost, base+"/explorer/refresh", map[string]any{"force_full": true})
	require.Equal(t, http.StatusCreated, code)
	job := data(t, envelope)
	assert.Equal(t, "explorer.refresh_index", job["operation"])
	assert.Equal(t, "explorer", job["provider"])
	assert.Equal(t, "queued", job["status"])
}

func TestOperationsCatalog(t *testing.T) {
	f := setup(t)

	code, envelope := f.do(t, http.MethodGet, "/api/v1/operations/catalog", nil)
	require.Equal(t, http.StatusOK, code)
	payload := data(t, envelope)
	assert.Greater(t, payload["total"].(float64), float64(30))

	code, envelope = f.do(t, http.MethodGet, "/api/v1/operations/native-rpc.move_items_to_trash", nil)
	require.Equal(t, http.StatusOK, code)
	entry := data(t, envelope)
	assert.Equal(t, true, entry["destructive"])

	code, _ = f.do(t, http.MethodGet, "/api/v1/operations/native-rpc.nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}
