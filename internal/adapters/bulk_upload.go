package adapters

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/photark-io/photark/internal/db"
	"github.com/photark-io/photark/internal/metrics"
	"github.com/photark-io/photark/internal/repositories"
	"github.com/photark-io/photark/internal/upload"
	"go.uber.org/zap"
)

const bulkUploadPrefix = "bulk-upload."

// BulkUploadAdapter executes bulk-upload operations: pushing local media
// files into the library and the hash-cache maintenance around it. Byte
// uploads use the upload client with the account's auth_data; metadata
// operations (hash lookup, trash, albums) reuse the RPC layer.
type BulkUploadAdapter struct {
	uploader    *upload.Client
	credentials repositories.CredentialRepository
	rpcCaller   RPCCaller
	cacheDir    string
	logger      *zap.Logger
}

// NewBulkUploadAdapter wires the adapter to the upload client, the
// credential store, and the RPC caller. cacheDir holds the per-account hash
// cache files.
func NewBulkUploadAdapter(uploader *upload.Client, credentials repositories.CredentialRepository, rpcCaller RPCCaller, cacheDir string, logger *zap.Logger) *BulkUploadAdapter {
	return &BulkUploadAdapter{
		uploader:    uploader,
		credentials: credentials,
		rpcCaller:   rpcCaller,
		cacheDir:    cacheDir,
		logger:      logger.Named("bulk-upload"),
	}
}

func (a *BulkUploadAdapter) Provider() string { return "bulk-upload" }

func (a *BulkUploadAdapter) Run(ctx context.Context, job *db.Job, progress ProgressFunc) (map[string]any, error) {
	params := map[string]any(job.Params)
	short := strings.TrimPrefix(job.Operation, bulkUploadPrefix)

	switch short {
	case "upload":
		return a.runUpload(ctx, job, params, progress)
	case "move_to_trash":
		return a.runMoveToTrash(ctx, job, params, progress)
	case "add_to_album":
		return a.runAddToAlbum(ctx, job, params, progress)
	case "get_media_key_by_hash":
		return a.runGetMediaKeyByHash(ctx, job, params, progress)
	case "update_cache":
		return a.runUpdateCache(ctx, job, params, progress)
	}
	return nil, fmt.Errorf("unsupported bulk-upload operation: %s", job.Operation)
}

// -----------------------------------------------------------------------------
// upload
// -----------------------------------------------------------------------------

// UploadOptions are the knobs of one upload run, shared with the pipeline
// adapter.
type UploadOptions struct {
	Recursive      bool
	AlbumName      string
	UseQuota       bool
	Saver          bool
	ForceUpload    bool
	DeleteFromHost bool
	Filter         FileFilter
}

func uploadOptionsFromParams(params map[string]any) UploadOptions {
	getBool := func(key string) bool { b, _ := params[key].(bool); return b }
	getString := func(key string) string { s, _ := params[key].(string); return s }
	return UploadOptions{
		Recursive:      getBool("recursive"),
		AlbumName:      getString("album_name"),
		UseQuota:       getBool("use_quota"),
		Saver:          getBool("saver"),
		ForceUpload:    getBool("force_upload"),
		DeleteFromHost: getBool("delete_from_host"),
		Filter: FileFilter{
			Expression: getString("filter_exp"),
			Exclude:    getBool("filter_exclude"),
			Regex:      getBool("filter_regex"),
			IgnoreCase: getBool("filter_ignore_case"),
			MatchPath:  getBool("filter_path"),
		},
	}
}

func (a *BulkUploadAdapter) runUpload(ctx context.Context, job *db.Job, params map[string]any, progress ProgressFunc) (map[string]any, error) {
	opts := uploadOptionsFromParams(params)

	var targets []string
	switch v := params["target"].(type) {
	case string:
		if v != "" {
			targets = []string{v}
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				targets = append(targets, s)
			}
		}
	}
	if len(targets) == 0 {
		return nil, errors.New("upload requires params.target")
	}

	files, err := collectMediaFiles(targets, opts.Recursive, opts.Filter)
	if err != nil {
		return nil, err
	}

	if job.DryRun {
		sample := files
		if len(sample) > 10 {
			sample = sample[:10]
		}
		return map[string]any{
			"operation":    job.Operation,
			"target_count": len(files),
			"sample":       sample,
		}, nil
	}

	return a.UploadFiles(ctx, job.AccountID, files, opts, progress)
}

// UploadFiles pushes the given files for an account. Exposed for the
// pipeline adapter, which feeds it disguised artifacts.
func (a *BulkUploadAdapter) UploadFiles(ctx context.Context, accountID uuid.UUID, files []string, opts UploadOptions, progress ProgressFunc) (map[string]any, error) {
	authToken, err := a.authToken(ctx, accountID)
	if err != nil {
		return nil, err
	}
	cache, err := upload.OpenCache(a.cachePath(accountID))
	if err != nil {
		return nil, err
	}

	quality := upload.QualityOriginal
	if opts.Saver && !opts.UseQuota {
		quality = upload.QualitySaver
	}

	var (
		uploaded  []upload.Result
		skipped   int
		mediaKeys []string
		failures  []string
	)
	for i, path := range files {
		if err := progress(float64(i)/float64(max(len(files), 1)), fmt.Sprintf("Uploading %d/%d", i+1, len(files))); err != nil {
			return nil, err
		}

		if !opts.ForceUpload {
			hash, err := upload.FileSha1(path)
			if err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(path), err))
				metrics.UploadsTotal.WithLabelValues("failed").Inc()
				continue
			}
			if key, ok := cache.Get(hash); ok {
				skipped++
				mediaKeys = append(mediaKeys, key)
				metrics.UploadsTotal.WithLabelValues("skipped").Inc()
				continue
			}
		}

		result, err := a.uploader.Upload(ctx, authToken, path, quality)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			metrics.UploadsTotal.WithLabelValues("failed").Inc()
			continue
		}
		metrics.UploadsTotal.WithLabelValues("uploaded").Inc()
		if err := cache.Put(result.Sha1, result.MediaKey); err != nil {
			a.logger.Warn("failed to persist hash cache", zap.Error(err))
		}
		uploaded = append(uploaded, result)
		mediaKeys = append(mediaKeys, result.MediaKey)

		if opts.DeleteFromHost {
			if err := os.Remove(path); err != nil {
				a.logger.Warn("failed to remove uploaded file", zap.String("path", path), zap.Error(err))
			}
		}
	}

	if opts.AlbumName != "" && len(mediaKeys) > 0 {
		if err := progress(0.95, fmt.Sprintf("Adding %d items to album %q", len(mediaKeys), opts.AlbumName)); err != nil {
			return nil, err
		}
		if _, err := a.rpcCaller.Call(ctx, accountID, "add_items_to_album", map[string]any{
			"mediaKeyArray": mediaKeys,
			"albumName":     opts.AlbumName,
		}); err != nil {
			failures = append(failures, fmt.Sprintf("add to album: %v", err))
		}
	}

	if err := progress(1.0, "Upload completed"); err != nil {
		return nil, err
	}
	return map[string]any{
		"operation":      "bulk-upload.upload",
		"total":          len(files),
		"uploaded_count": len(uploaded),
		"skipped_count":  skipped,
		"failed_count":   len(failures),
		"media_keys":     mediaKeys,
		"failures":       failures,
	}, nil
}

// -----------------------------------------------------------------------------
// Hash-based operations
// -----------------------------------------------------------------------------

func (a *BulkUploadAdapter) runMoveToTrash(ctx context.Context, job *db.Job, params map[string]any, progress ProgressFunc) (map[string]any, error) {
	hashes := stringList(params["sha1_hashes"])
	if len(hashes) == 0 {
		return nil, errors.New("move_to_trash requires params.sha1_hashes")
	}
	if job.DryRun {
		return map[string]any{"operation": job.Operation, "target_count": len(hashes)}, nil
	}

	if err := progress(0.5, fmt.Sprintf("Resolving %d hashes", len(hashes))); err != nil {
		return nil, err
	}
	matches, err := a.rpcCaller.Call(ctx, job.AccountID, "get_remote_matches_by_hash", map[string]any{
		"hashArray": hashes,
	})
	if err != nil {
		return nil, err
	}

	var dedupKeys []string
	if rows, ok := matches["matches"].([]any); ok {
		for _, raw := range rows {
			match, _ := raw.(map[string]any)
			item, _ := match["item"].(map[string]any)
			if key, _ := item["dedupKey"].(string); key != "" {
				dedupKeys = append(dedupKeys, key)
			}
		}
	}
	if len(dedupKeys) == 0 {
		return nil, errors.New("no remote items matched the given hashes")
	}

	if _, err := a.rpcCaller.Call(ctx, job.AccountID, "move_items_to_trash", map[string]any{
		"dedupKeyArray": dedupKeys,
	}); err != nil {
		return nil, err
	}
	if err := progress(1.0, "Items moved to trash"); err != nil {
		return nil, err
	}
	return map[string]any{
		"operation":     job.Operation,
		"matched_count": len(dedupKeys),
	}, nil
}

func (a *BulkUploadAdapter) runGetMediaKeyByHash(ctx context.Context, job *db.Job, params map[string]any, progress ProgressFunc) (map[string]any, error) {
	hash, _ := params["sha1_hash"].(string)
	if hash == "" {
		return nil, errors.New("get_media_key_by_hash requires params.sha1_hash")
	}
	if job.DryRun {
		return map[string]any{"operation": job.Operation, "sha1_hash": hash}, nil
	}

	cache, err := upload.OpenCache(a.cachePath(job.AccountID))
	if err != nil {
		return nil, err
	}
	if key, ok := cache.Get(hash); ok {
		return map[string]any{"operation": job.Operation, "sha1_hash": hash, "media_key": key, "source": "cache"}, nil
	}

	if err := progress(0.5, "Querying remote hash index"); err != nil {
		return nil, err
	}
	matches, err := a.rpcCaller.Call(ctx, job.AccountID, "get_remote_matches_by_hash", map[string]any{
		"hashArray": []string{hash},
	})
	if err != nil {
		return nil, err
	}
	var mediaKey string
	if rows, ok := matches["matches"].([]any); ok && len(rows) > 0 {
		match, _ := rows[0].(map[string]any)
		item, _ := match["item"].(map[string]any)
		mediaKey, _ = item["mediaKey"].(string)
	}
	if mediaKey == "" {
		return nil, errors.New("no remote item matched the given hash")
	}

	if err := progress(1.0, "Hash resolved"); err != nil {
		return nil, err
	}
	return map[string]any{"operation": job.Operation, "sha1_hash": hash, "media_key": mediaKey, "source": "remote"}, nil
}

func (a *BulkUploadAdapter) runAddToAlbum(ctx context.Context, job *db.Job, params map[string]any, progress ProgressFunc) (map[string]any, error) {
	mediaKeys := stringList(params["media_keys"])
	albumName, _ := params["album_name"].(string)
	if len(mediaKeys) == 0 || albumName == "" {
		return nil, errors.New("add_to_album requires params.media_keys and params.album_name")
	}
	if job.DryRun {
		return map[string]any{"operation": job.Operation, "target_count": len(mediaKeys), "album_name": albumName}, nil
	}

	if err := progress(0.5, fmt.Sprintf("Adding %d items to album %q", len(mediaKeys), albumName)); err != nil {
		return nil, err
	}
	if _, err := a.rpcCaller.Call(ctx, job.AccountID, "add_items_to_album", map[string]any{
		"mediaKeyArray": mediaKeys,
		"albumName":     albumName,
	}); err != nil {
		return nil, err
	}
	if err := progress(1.0, "Items added to album"); err != nil {
		return nil, err
	}
	return map[string]any{"operation": job.Operation, "added_count": len(mediaKeys), "album_name": albumName}, nil
}

func (a *BulkUploadAdapter) runUpdateCache(ctx context.Context, job *db.Job, params map[string]any, progress ProgressFunc) (map[string]any, error) {
	if job.DryRun {
		return map[string]any{"operation": job.Operation}, nil
	}

	entries := make(map[string]string)
	pageID := ""
	page := 0
	for {
		if err := progress(min(0.9, 0.1+float64(page)*0.1), fmt.Sprintf("Scanned %d remote items", len(entries))); err != nil {
			return nil, err
		}
		result, err := a.rpcCaller.Call(ctx, job.AccountID, "get_items_by_uploaded_date", map[string]any{
			"pageId": pageID,
		})
		if err != nil {
			return nil, err
		}
		items, _ := result["items"].([]any)
		for _, raw := range items {
			item, _ := raw.(map[string]any)
			dedupKey, _ := item["dedupKey"].(string)
			mediaKey, _ := item["mediaKey"].(string)
			if dedupKey != "" && mediaKey != "" {
				entries[dedupKey] = mediaKey
			}
		}
		pageID, _ = result["nextPageId"].(string)
		page++
		if pageID == "" {
			break
		}
	}

	cache, err := upload.OpenCache(a.cachePath(job.AccountID))
	if err != nil {
		return nil, err
	}
	if err := cache.Replace(entries); err != nil {
		return nil, err
	}

	if err := progress(1.0, "Cache rebuilt"); err != nil {
		return nil, err
	}
	return map[string]any{"operation": job.Operation, "cached_count": len(entries)}, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func (a *BulkUploadAdapter) authToken(ctx context.Context, accountID uuid.UUID) (string, error) {
	record, err := a.credentials.GetUploadAuth(ctx, accountID)
	if errors.Is(err, repositories.ErrNotFound) {
		return "", errors.New("auth_data is missing for this account")
	}
	if err != nil {
		return "", err
	}
	token, err := upload.ParseAuthData(string(record.AuthData))
	if err != nil {
		return "", errors.New("auth_data is missing for this account")
	}
	return token, nil
}

func (a *BulkUploadAdapter) cachePath(accountID uuid.UUID) string {
	return filepath.Join(a.cacheDir, accountID.String()+".hashes.json")
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// FileFilter narrows a collected file set by name.
type FileFilter struct {
	Expression string
	Exclude    bool
	Regex      bool
	IgnoreCase bool
	MatchPath  bool
}

func (f FileFilter) matches(path string) (bool, error) {
	if f.Expression == "" {
		return true, nil
	}
	subject := filepath.Base(path)
	if f.MatchPath {
		subject = path
	}
	expression := f.Expression
	if f.IgnoreCase {
		subject = strings.ToLower(subject)
		expression = strings.ToLower(expression)
	}

	var matched bool
	if f.Regex {
		re, err := regexp.Compile(expression)
		if err != nil {
			return false, fmt.Errorf("invalid filter regex: %w", err)
		}
		matched = re.MatchString(subject)
	} else {
		matched = strings.Contains(subject, expression)
	}
	if f.Exclude {
		matched = !matched
	}
	return matched, nil
}

// collectMediaFiles expands the targets into a sorted list of media files.
// Directories are walked one level deep unless recursive is set; only files
// whose extension maps to an image or video MIME type qualify.
func collectMediaFiles(targets []string, recursive bool, filter FileFilter) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	add := func(path string) error {
		if !isMediaFile(path) {
			return nil
		}
		ok, err := filter.matches(path)
		if err != nil {
			return err
		}
		if !ok || seen[path] {
			return nil
		}
		seen[path] = true
		files = append(files, path)
		return nil
	}

	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, fmt.Errorf("stat upload target: %w", err)
		}
		if !info.IsDir() {
			if err := add(target); err != nil {
				return nil, err
			}
			continue
		}

		if recursive {
			err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return err
				}
				return add(path)
			})
		} else {
			var entries []fs.DirEntry
			entries, err = os.ReadDir(target)
			if err == nil {
				for _, entry := range entries {
					if entry.IsDir() {
						continue
					}
					if err = add(filepath.Join(target, entry.Name())); err != nil {
						break
					}
				}
			}
		}
		if err != nil {
			return nil, fmt.Errorf("walk upload target: %w", err)
		}
	}

	sort.Strings(files)
	return files, nil
}

func isMediaFile(path string) bool {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	return strings.HasPrefix(mimeType, "image/") || strings.HasPrefix(mimeType, "video/")
}
