package upload

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthData(t *testing.T) {
	token, err := ParseAuthData("SID=x\nLSID=y\nAuth=ya29.token-value\nExpiry=123")
	require.NoError(t, err)
	assert.Equal(t, "ya29.token-value", token)

	token, err = ParseAuthData("Auth=abc&other=1")
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	_, err = ParseAuthData("SID=x\nLSID=y")
	assert.ErrorIs(t, err, ErrMissingAuthToken)
}

func TestUpload(t *testing.T) {
	content := []byte("fake image bytes")
	sum := sha1.Sum(content)
	wantHash := base64.StdEncoding.EncodeToString(sum[:])

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/uploads":
			assert.Equal(t, "resumable", r.Header.Get("X-Goog-Upload-Protocol"))
			assert.Equal(t, "start", r.Header.Get("X-Goog-Upload-Command"))
			assert.Equal(t, fmt.Sprint(len(content)), r.Header.Get("X-Goog-Upload-Raw-Size"))
			w.Header().Set("X-Goog-Upload-URL", srv.URL+"/upload-session/1")
		case "/upload-session/1":
			assert.Equal(t, "upload, finalize", r.Header.Get("X-Goog-Upload-Command"))
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, content, body)
			fmt.Fprint(w, "upload-token-1")
		case "/commit":
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "upload-token-1", payload["uploadToken"])
			assert.Equal(t, "photo.jpg", payload["fileName"])
			assert.Equal(t, wantHash, payload["sha1Hash"])
			assert.Equal(t, "saver", payload["quality"])
			fmt.Fprint(w, `{"mediaKey":"mk-new"}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	client := NewClient(Config{BaseURL: srv.URL})
	result, err := client.Upload(context.Background(), "tok", path, QualitySaver)
	require.NoError(t, err)

	assert.Equal(t, "mk-new", result.MediaKey)
	assert.Equal(t, "photo.jpg", result.FileName)
	assert.Equal(t, wantHash, result.Sha1)
	assert.Equal(t, int64(len(content)), result.Size)
}

func TestUploadStartFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "x.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.Upload(context.Background(), "tok", path, QualityOriginal)
	assert.ErrorContains(t, err, "unexpected status 401")
}

func TestCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hashes.json")

	cache, err := OpenCache(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Len())

	require.NoError(t, cache.Put("hash1", "mk1"))
	require.NoError(t, cache.Put("hash2", "mk2"))

	// A fresh open sees the persisted entries.
	reopened, err := OpenCache(path)
	require.NoError(t, err)
	key, ok := reopened.Get("hash1")
	assert.True(t, ok)
	assert.Equal(t, "mk1", key)
	assert.Equal(t, 2, reopened.Len())

	require.NoError(t, reopened.Replace(map[string]string{"hash3": "mk3"}))
	_, ok = reopened.Get("hash1")
	assert.False(t, ok)
	key, ok = reopened.Get("hash3")
	assert.True(t, ok)
	assert.Equal(t, "mk3", key)
}
