package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/photark-io/photark/internal/cookies"
	"github.com/photark-io/photark/internal/metrics"
	"go.uber.org/zap"
)

const (
	defaultBaseURL        = "https://photos.google.com"
	defaultSourcePath     = "/"
	defaultRPCPath        = "/_/PhotosUi/"
	defaultMaxRetries     = 3
	defaultRetryBaseDelay = 1500 * time.Millisecond

	bootstrapTimeout = 60 * time.Second
	executeTimeout   = 120 * time.Second

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// wizKeys maps Session fields to the keys of the WIZ_global_data blob
// embedded in the app shell HTML.
var wizKeys = map[string]string{
	"account": "oPEP7c",
	"fSid":    "FdrFJe",
	"bl":      "cfb2h",
	"path":    "eptZe",
	"at":      "SNlM0e",
	"rapt":    "Dbw5Ud",
}

// HTTPError is returned when the remote endpoint answers with a non-200
// status. 401 and 403 trigger a session re-bootstrap before the next retry.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("rpc: unexpected status %d", e.StatusCode)
}

// IsAuthError reports whether err is an HTTP 401 or 403 response.
func IsAuthError(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden
	}
	return false
}

// Config configures a Client. The zero value of every field has a usable
// default; BaseURL is overridden in tests to point at a local server.
type Config struct {
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *zap.Logger
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Client speaks the batchexecute protocol. It is stateless with respect to
// accounts: the caller supplies the cookie jar and session on every call, so
// one client serves all accounts concurrently.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	logger         *zap.Logger
	maxRetries     int
	retryBaseDelay time.Duration
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
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	return &Client{
		baseURL:        strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient:     cfg.HTTPClient,
		logger:         cfg.Logger.Named("rpc"),
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: cfg.RetryBaseDelay,
	}
}

// Bootstrap fetches the app shell page with the account's cookies and
// scrapes the session tokens from the embedded WIZ data. sourcePath selects
// which shell page to load; some RPCs only hand out the right tokens from
// specific pages (e.g. the locked folder).
func (c *Client) Bootstrap(ctx context.Context, jar []cookies.Cookie, sourcePath string) (Session, error) {
	if sourcePath == "" {
		sourcePath = defaultSourcePath
	}

	ctx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+sourcePath, nil)
	if err != nil {
		return Session{}, fmt.Errorf("rpc: build bootstrap request: %w", err)
	}
	req.Header.Set("Cookie", cookies.Header(jar))
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("rpc: bootstrap request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Session{}, &HTTPError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Session{}, fmt.Errorf("rpc: read bootstrap response: %w", err)
	}

	session := extractSession(string(body))
	if !session.Valid() {
		return Session{}, errors.New("rpc: unable to extract required session fields (f.sid/bl/at)")
	}

	c.logger.Debug("session bootstrapped",
		zap.String("account", session.Account),
		zap.String("source_path", sourcePath),
	)
	return session, nil
}

// extractSession scrapes the WIZ keys out of the app shell HTML.
func extractSession(html string) Session {
	values := make(map[string]string, len(wizKeys))
	for field, key := range wizKeys {
		re := regexp.MustCompile(`"` + key + `":"([^"]+)"`)
		if m := re.FindStringSubmatch(html); m != nil {
			values[field] = unescapeWiz(m[1])
		}
	}

	path := values["path"]
	if path == "" {
		path = defaultRPCPath
	}
	return Session{
		Account: values["account"],
		FSid:    values["fSid"],
		BL:      values["bl"],
		Path:    path,
		AT:      values["at"],
		Rapt:    values["rapt"],
	}
}

// unescapeWiz reverses the JS string escapes found in WIZ values.
func unescapeWiz(s string) string {
	s = strings.ReplaceAll(s, "\\u003d", "=")
	s = strings.ReplaceAll(s, "\\u0026", "&")
	s = strings.ReplaceAll(s, "\\/", "/")
	return s
}

// Execute performs a single RPC against batchexecute, retrying transient
// failures with a linearly growing delay. On a 401/403 the session is
// re-bootstrapped in place before the next attempt, so callers should
// persist *session after a successful call. Returns the decoded payload and
// its raw JSON text.
func (c *Client) Execute(ctx context.Context, jar []cookies.Cookie, session *Session, rpcID string, requestData any, sourcePath string) (any, string, error) {
	if session == nil {
		return nil, "", errors.New("rpc: nil session")
	}
	if !session.Valid() {
		fresh, err := c.Bootstrap(ctx, jar, sourcePath)
		if err != nil {
			return nil, "", err
		}
		*session = fresh
	}

	var (
		data any
		raw  string
	)
	attempt := 0

	operation := func() error {
		attempt++
		d, r, err := c.executeOnce(ctx, jar, *session, rpcID, requestData, sourcePath)
		if err != nil {
			c.logger.Warn("rpc attempt failed",
				zap.String("rpcid", rpcID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if IsAuthError(err) {
				fresh, bootErr := c.Bootstrap(ctx, jar, sourcePath)
				if bootErr != nil {
					return backoff.Permanent(bootErr)
				}
				*session = fresh
			}
			return err
		}
		data, raw = d, r
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newLinearBackOff(c.retryBaseDelay), uint64(c.maxRetries-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		metrics.RPCRequests.WithLabelValues(rpcID, "error").Inc()
		return nil, "", err
	}
	metrics.RPCRequests.WithLabelValues(rpcID, "ok").Inc()
	return data, raw, nil
}

// executeOnce performs one batchexecute POST without retrying.
func (c *Client) executeOnce(ctx context.Context, jar []cookies.Cookie, session Session, rpcID string, requestData any, sourcePath string) (any, string, error) {
	if sourcePath == "" {
		sourcePath = defaultSourcePath
	}

	inner, err := json.Marshal(requestData)
	if err != nil {
		return nil, "", fmt.Errorf("rpc: marshal request data: %w", err)
	}
	wrapped, err := json.Marshal([]any{[]any{[]any{rpcID, string(inner), nil, "generic"}}})
	if err != nil {
		return nil, "", fmt.Errorf("rpc: marshal request envelope: %w", err)
	}

	body := "f.req=" + url.QueryEscape(string(wrapped)) + "&at=" + url.QueryEscape(session.AT) + "&"

	params := url.Values{}
	params.Set("rpcids", rpcID)
	params.Set("source-path", sourcePath)
	params.Set("f.sid", session.FSid)
	params.Set("bl", session.BL)
	params.Set("pageId", "none")
	params.Set("rt", "c")
	if session.Rapt != "" {
		params.Set("rapt", session.Rapt)
	}
	endpoint := c.baseURL + session.Path + "data/batchexecute?" + params.Encode()

	ctx, cancel := context.WithTimeout(ctx, executeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("rpc: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	req.Header.Set("Cookie", cookies.Header(jar))
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("rpc: execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", &HTTPError{StatusCode: resp.StatusCode}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("rpc: read response: %w", err)
	}
	return ParseEnvelope(string(respBody))
}

// linearBackOff grows the delay linearly with the attempt number:
// base, 2*base, 3*base, ...
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func newLinearBackOff(base time.Duration) *linearBackOff {
	return &linearBackOff{base: base}
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.base * time.Duration(b.attempt)
}

func (b *linearBackOff) Reset() {
	b.attempt = 0
}
