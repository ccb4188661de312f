// Package upload implements the media byte-upload flow: a resumable upload
// of the file contents followed by a commit that turns the upload token
// into a library item. Metadata operations on uploaded items (hash lookup,
// trash, albums) go through the RPC layer instead.
package upload

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://photos.googleapis.com"

// Quality selects the storage treatment of an upload.
type Quality int

const (
	// QualityOriginal counts against the account's storage quota.
	QualityOriginal Quality = iota
	// QualitySaver recompresses the media and does not count against quota.
	QualitySaver
)

// Result describes a completed upload.
type Result struct {
	MediaKey string `json:"mediaKey"`
	FileName string `json:"fileName"`
	Sha1     string `json:"sha1"`
	Size     int64  `json:"size"`
}

// FileSha1 returns the base64-encoded SHA-1 of a file's contents, the hash
// form the remote hash index and the local cache key on.
func FileSha1(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("upload: open file: %w", err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("upload: hash file: %w", err)
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// ErrMissingAuthToken is returned when the stored auth blob has no Auth token.
var ErrMissingAuthToken = errors.New("upload: auth_data carries no Auth token")

// ParseAuthData extracts the bearer token from a stored auth blob. The blob
// is the raw token-exchange response: key=value pairs separated by newlines
// or ampersands, one of which is Auth.
func ParseAuthData(blob string) (string, error) {
	blob = strings.ReplaceAll(blob, "\n", "&")
	values, err := url.ParseQuery(blob)
	if err != nil {
		return "", fmt.Errorf("upload: malformed auth_data: %w", err)
	}
	token := values.Get("Auth")
	if token == "" {
		return "", ErrMissingAuthToken
	}
	return token, nil
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client uploads file bytes for any account; the auth token is passed per
// call like the RPC client's cookie jar.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Client from the given config, filling in defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger.Named("upload"),
	}
}

// Upload pushes one file and commits it into the library. The three steps
// are: start a resumable session, send the bytes, commit the returned
// upload token together with the file's SHA-1.
func (c *Client) Upload(ctx context.Context, authToken, path string, quality Quality) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("upload: read file: %w", err)
	}
	sum := sha1.Sum(data)
	hash := base64.StdEncoding.EncodeToString(sum[:])
	fileName := filepath.Base(path)

	uploadURL, err := c.startSession(ctx, authToken, fileName, int64(len(data)))
	if err != nil {
		return Result{}, err
	}
	token, err := c.sendBytes(ctx, authToken, uploadURL, data)
	if err != nil {
		return Result{}, err
	}
	mediaKey, err := c.commit(ctx, authToken, token, fileName, hash, quality)
	if err != nil {
		return Result{}, err
	}

	c.logger.Debug("file uploaded",
		zap.String("file", fileName),
		zap.String("media_key", mediaKey),
	)
	return Result{MediaKey: mediaKey, FileName: fileName, Sha1: hash, Size: int64(len(data))}, nil
}

func (c *Client) startSession(ctx context.Context, authToken, fileName string, size int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/uploads", nil)
	if err != nil {
		return "", fmt.Errorf("upload: build start request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+authToken)
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Raw-Size", strconv.FormatInt(size, 10))
	req.Header.Set("X-Goog-Upload-File-Name", fileName)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: start session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload: start session: unexpected status %d", resp.StatusCode)
	}

	uploadURL := resp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return "", errors.New("upload: start session: no upload URL in response")
	}
	return uploadURL, nil
}

func (c *Client) sendBytes(ctx context.Context, authToken, uploadURL string, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("upload: build bytes request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+authToken)
	req.Header.Set("X-Goog-Upload-Command", "upload, finalize")
	req.Header.Set("X-Goog-Upload-Offset", "0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: send bytes: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload: send bytes: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("upload: read upload token: %w", err)
	}
	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", errors.New("upload: empty upload token")
	}
	return token, nil
}

func (c *Client) commit(ctx context.Context, authToken, uploadToken, fileName, hash string, quality Quality) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"uploadToken": uploadToken,
		"fileName":    fileName,
		"sha1Hash":    hash,
		"quality":     qualityName(quality),
	})
	if err != nil {
		return "", fmt.Errorf("upload: marshal commit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/commit", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("upload: build commit request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+authToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: commit: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload: commit: unexpected status %d", resp.StatusCode)
	}

	var result struct {
		MediaKey string `json:"mediaKey"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("upload: decode commit response: %w", err)
	}
	if result.MediaKey == "" {
		return "", errors.New("upload: commit returned no media key")
	}
	return result.MediaKey, nil
}

func qualityName(q Quality) string {
	if q == QualitySaver {
		return "saver"
	}
	return "original"
}
