// Package actions implements the two-phase preview/commit flow. A preview
// resolves the target set, records warnings, and binds everything to an
// opaque id with a TTL; committing the preview enqueues the real job exactly
// once. Every commit requires an explicit confirm flag; destructive actions
// additionally carry a warning.
package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/photark-io/photark/internal/catalog"
	"github.com/photark-io/photark/internal/db"
	"github.com/photark-io/photark/internal/gphotos"
	"github.com/photark-io/photark/internal/repositories"
	"go.uber.org/zap"
)

const (
	// maxCollect bounds how many items a query-based preview resolves.
	maxCollect = 5000

	// resolvePageSize is the index page size used while collecting targets.
	resolvePageSize = 500

	sampleSize       = 12
	uploadSampleSize = 20

	// DefaultTTL is how long a preview stays committable.
	DefaultTTL = 30 * time.Minute

	truncationWarning  = "Result was truncated to 5000 items for safety"
	destructiveWarning = "Operation is destructive. Confirm explicitly before commit."
)

// Commit-time failures the HTTP layer maps to client errors.
var (
	ErrPreviewExpired   = errors.New("actions: preview has expired")
	ErrAlreadyCommitted = errors.New("actions: preview was already committed")
	ErrConfirmRequired  = errors.New("actions: commit requires confirm=true")
	ErrAccountMismatch  = errors.New("actions: preview belongs to a different account")
)

// destructiveActions are the explorer actions that remove or trash media.
var destructiveActions = map[string]bool{
	"trash":         true,
	"move_to_trash": true,
	"remove_album":  true,
}

// Service builds previews and commits them into jobs.
type Service struct {
	previews repositories.PreviewRepository
	jobs     repositories.JobRepository
	accounts repositories.AccountRepository
	index    repositories.IndexRepository
	ttl      time.Duration
	logger   *zap.Logger
}

// NewService wires the preview/commit flow. A non-positive ttl falls back to
// DefaultTTL.
func NewService(
	previews repositories.PreviewRepository,
	jobs repositories.JobRepository,
	accounts repositories.AccountRepository,
	index repositories.IndexRepository,
	ttl time.Duration,
	logger *zap.Logger,
) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		previews: previews,
		jobs:     jobs,
		accounts: accounts,
		index:    index,
		ttl:      ttl,
		logger:   logger.Named("actions"),
	}
}

// SweepExpired deletes previews whose TTL elapsed. Also called by the
// maintenance scheduler.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.previews.DeleteExpired(ctx, time.Now().UTC())
}

// -----------------------------------------------------------------------------
// Explorer action previews
// -----------------------------------------------------------------------------

// ExplorerActionRequest describes an action over indexed media: either an
// explicit selection of media keys or a query resolving the target set.
type ExplorerActionRequest struct {
	Action   string                  `json:"action"`
	Selected []string                `json:"selected"`
	Query    repositories.MediaQuery `json:"query"`
	Params   map[string]any          `json:"params"`
}

// PreviewExplorerAction resolves the target set and stores the preview.
func (s *Service) PreviewExplorerAction(ctx context.Context, accountID uuid.UUID, req ExplorerActionRequest) (*db.PreviewAction, error) {
	s.sweep(ctx)

	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	if _, _, err := explorerOperation(req.Action); err != nil {
		return nil, err
	}

	keys, warnings, err := s.resolveTargets(ctx, accountID, req)
	if err != nil {
		return nil, err
	}

	samples, err := s.sampleRows(ctx, accountID, keys)
	if err != nil {
		return nil, err
	}

	destructive := destructiveActions[req.Action]
	if destructive {
		warnings = append(warnings, destructiveWarning)
	}

	preview := &db.PreviewAction{
		AccountID:        accountID,
		Kind:             db.PreviewKindExplorerAction,
		Action:           req.Action,
		QueryPayload:     queryPayload(req),
		ActionParams:     db.JSONMap(orEmpty(req.Params)),
		MatchedMediaKeys: db.StringList(keys),
		SampleItems:      samples,
		Warnings:         db.StringList(warnings),
		RequiresConfirm:  true,
		Status:           db.PreviewStatusPreviewed,
		ExpiresAt:        time.Now().UTC().Add(s.ttl),
	}
	if err := s.previews.Create(ctx, preview); err != nil {
		return nil, err
	}
	return preview, nil
}

// resolveTargets turns a selection or a query into a concrete media key list.
// Explicit selections are deduplicated preserving order; queries page through
// the index up to maxCollect.
func (s *Service) resolveTargets(ctx context.Context, accountID uuid.UUID, req ExplorerActionRequest) ([]string, []string, error) {
	if len(req.Selected) > 0 {
		seen := make(map[string]bool, len(req.Selected))
		keys := make([]string, 0, len(req.Selected))
		for _, key := range req.Selected {
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			keys = append(keys, key)
		}
		return keys, nil, nil
	}

	q := req.Query
	q.Limit = resolvePageSize
	if req.Query.Limit > 0 && req.Query.Limit < resolvePageSize {
		q.Limit = req.Query.Limit
	}
	q.Offset = 0

	var keys []string
	var warnings []string
	for len(keys) < maxCollect {
		rows, err := s.index.QueryMedia(ctx, accountID, q)
		if err != nil {
			return nil, nil, err
		}
		for _, row := range rows {
			keys = append(keys, row.MediaKey)
			if len(keys) == maxCollect {
				break
			}
		}
		if len(rows) < q.Limit {
			break
		}
		if len(keys) == maxCollect {
			warnings = append(warnings, truncationWarning)
			break
		}
		q.Offset += len(rows)
	}
	return keys, warnings, nil
}

// sampleRows returns up to sampleSize resolved rows for display. Samples are
// drawn evenly across the first sampleSize*8 matched keys so the preview is
// not just the head of the result.
func (s *Service) sampleRows(ctx context.Context, accountID uuid.UUID, keys []string) (db.JSONList, error) {
	window := keys
	if len(window) > sampleSize*8 {
		window = window[:sampleSize*8]
	}
	if len(window) > sampleSize {
		step := float64(len(window)) / float64(sampleSize)
		picked := make([]string, 0, sampleSize)
		for i := 0; i < sampleSize; i++ {
			picked = append(picked, window[int(float64(i)*step)])
		}
		window = picked
	}
	rows, err := s.index.ListMediaByKeys(ctx, accountID, window)
	if err != nil {
		return nil, err
	}
	samples := make(db.JSONList, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, map[string]any{
			"media_key":       row.MediaKey,
			"file_name":       row.FileName,
			"media_type":      row.MediaType,
			"timestamp_taken": row.TimestampTaken,
			"thumb":           row.ThumbURL,
		})
	}
	return samples, nil
}

func queryPayload(req ExplorerActionRequest) db.JSONMap {
	payload := db.JSONMap{"action": req.Action}
	if len(req.Selected) > 0 {
		payload["selected_count"] = len(req.Selected)
		return payload
	}
	q := req.Query
	payload["query"] = map[string]any{
		"source":     q.Source,
		"media_type": q.MediaType,
		"search":     q.Search,
		"album_id":   q.AlbumID,
		"sort":       q.Sort,
	}
	return payload
}

// -----------------------------------------------------------------------------
// Upload, pipeline, and advanced previews
// -----------------------------------------------------------------------------

// UploadRequest previews a bulk upload of local files.
type UploadRequest struct {
	Files     []string       `json:"files"`
	Recursive bool           `json:"recursive"`
	Options   map[string]any `json:"options"`
}

// PreviewUpload stores an upload preview. The matched set holds the file
// paths instead of media keys.
func (s *Service) PreviewUpload(ctx context.Context, accountID uuid.UUID, req UploadRequest) (*db.PreviewAction, error) {
	s.sweep(ctx)

	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	if len(req.Files) == 0 {
		return nil, errors.New("actions: upload preview requires files")
	}

	samples := make(db.JSONList, 0, uploadSampleSize)
	for _, path := range req.Files {
		if len(samples) == uploadSampleSize {
			break
		}
		samples = append(samples, map[string]any{"path": path})
	}

	preview := &db.PreviewAction{
		AccountID:        accountID,
		Kind:             db.PreviewKindUpload,
		Action:           "bulk-upload.upload",
		QueryPayload:     db.JSONMap{"files": toAny(req.Files), "recursive": req.Recursive},
		ActionParams:     db.JSONMap(orEmpty(req.Options)),
		MatchedMediaKeys: db.StringList(req.Files),
		SampleItems:      samples,
		Warnings:         db.StringList{},
		RequiresConfirm:  true,
		Status:           db.PreviewStatusPreviewed,
		ExpiresAt:        time.Now().UTC().Add(s.ttl),
	}
	if err := s.previews.Create(ctx, preview); err != nil {
		return nil, err
	}
	return preview, nil
}

// PipelineRequest previews the disguise-then-upload pipeline.
type PipelineRequest struct {
	InputFiles    []string       `json:"input_files"`
	DisguiseType  string         `json:"disguise_type"`
	Separator     string         `json:"separator"`
	OutputPolicy  map[string]any `json:"output_policy"`
	UploadOptions map[string]any `json:"upload_options"`
}

// PreviewPipeline stores a pipeline preview.
func (s *Service) PreviewPipeline(ctx context.Context, accountID uuid.UUID, req PipelineRequest) (*db.PreviewAction, error) {
	s.sweep(ctx)

	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	if len(req.InputFiles) == 0 {
		return nil, errors.New("actions: pipeline preview requires input_files")
	}

	samples := make(db.JSONList, 0, uploadSampleSize)
	for _, path := range req.InputFiles {
		if len(samples) == uploadSampleSize {
			break
		}
		samples = append(samples, map[string]any{"path": path})
	}

	preview := &db.PreviewAction{
		AccountID: accountID,
		Kind:      db.PreviewKindPipeline,
		Action:    "pipeline.disguise_upload",
		QueryPayload: db.JSONMap{
			"input_files":   toAny(req.InputFiles),
			"disguise_type": req.DisguiseType,
			"separator":     req.Separator,
		},
		ActionParams: db.JSONMap{
			"output_policy":  orEmpty(req.OutputPolicy),
			"upload_options": orEmpty(req.UploadOptions),
		},
		MatchedMediaKeys: db.StringList(req.InputFiles),
		SampleItems:      samples,
		Warnings:         db.StringList{},
		RequiresConfirm:  true,
		Status:           db.PreviewStatusPreviewed,
		ExpiresAt:        time.Now().UTC().Add(s.ttl),
	}
	if err := s.previews.Create(ctx, preview); err != nil {
		return nil, err
	}
	return preview, nil
}

// AdvancedRequest previews a raw catalog operation with caller-supplied
// params.
type AdvancedRequest struct {
	Operation string         `json:"operation"`
	Params    map[string]any `json:"params"`
}

// PreviewAdvanced stores an advanced-operation preview. Destructive
// operations get a warning and require confirm at commit.
func (s *Service) PreviewAdvanced(ctx context.Context, accountID uuid.UUID, req AdvancedRequest) (*db.PreviewAction, error) {
	s.sweep(ctx)

	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return nil, err
	}
	if req.Operation == "" {
		return nil, errors.New("actions: advanced preview requires operation")
	}

	destructive := catalog.IsDestructive(req.Operation)
	warnings := db.StringList{}
	if destructive {
		warnings = append(warnings, destructiveWarning)
	}

	preview := &db.PreviewAction{
		AccountID:        accountID,
		Kind:             db.PreviewKindAdvanced,
		Action:           req.Operation,
		QueryPayload:     db.JSONMap{"operation": req.Operation},
		ActionParams:     db.JSONMap(orEmpty(req.Params)),
		MatchedMediaKeys: db.StringList{},
		SampleItems:      db.JSONList{},
		Warnings:         warnings,
		RequiresConfirm:  true,
		Status:           db.PreviewStatusPreviewed,
		ExpiresAt:        time.Now().UTC().Add(s.ttl),
	}
	if err := s.previews.Create(ctx, preview); err != nil {
		return nil, err
	}
	return preview, nil
}

// -----------------------------------------------------------------------------
// Commit
// -----------------------------------------------------------------------------

// Commit turns a previewed action into a queued job. The preview must belong
// to the account, be unexpired and uncommitted, and carry confirm=true when
// it requires confirmation.
func (s *Service) Commit(ctx context.Context, accountID, previewID uuid.UUID, confirmed bool) (*db.Job, error) {
	preview, err := s.previews.GetByID(ctx, previewID)
	if err != nil {
		return nil, err
	}
	if preview.AccountID != accountID {
		return nil, ErrAccountMismatch
	}
	if preview.Status == db.PreviewStatusCommitted {
		return nil, ErrAlreadyCommitted
	}
	if preview.Status == db.PreviewStatusExpired || time.Now().UTC().After(preview.ExpiresAt) {
		if preview.Status != db.PreviewStatusExpired {
			preview.Status = db.PreviewStatusExpired
			if err := s.previews.Update(ctx, preview); err != nil {
				s.logger.Warn("failed to mark preview expired", zap.Error(err))
			}
		}
		return nil, ErrPreviewExpired
	}
	if preview.RequiresConfirm && !confirmed {
		return nil, ErrConfirmRequired
	}

	job, err := s.buildJob(ctx, preview)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	preview.Status = db.PreviewStatusCommitted
	preview.CommittedJobID = &job.ID
	if err := s.previews.Update(ctx, preview); err != nil {
		return nil, err
	}

	s.logger.Info("preview committed",
		zap.String("preview_id", preview.ID.String()),
		zap.String("job_id", job.ID.String()),
		zap.String("kind", preview.Kind),
	)
	return job, nil
}

// buildJob maps a preview onto the job its kind enqueues.
func (s *Service) buildJob(ctx context.Context, preview *db.PreviewAction) (*db.Job, error) {
	switch preview.Kind {
	case db.PreviewKindExplorerAction:
		operation, params, err := s.explorerJobParams(ctx, preview)
		if err != nil {
			return nil, err
		}
		return &db.Job{
			AccountID: preview.AccountID,
			Provider:  "native-rpc",
			Operation: operation,
			DryRun:    false,
			Params:    db.JSONMap(params),
			Status:    db.JobStatusQueued,
			Message:   fmt.Sprintf("Queued from preview %s", preview.ID),
		}, nil

	case db.PreviewKindUpload:
		params := map[string]any{
			"target":    toAny([]string(preview.MatchedMediaKeys)),
			"recursive": false,
			"confirmed": true,
		}
		for key, value := range preview.ActionParams {
			params[key] = value
		}
		return &db.Job{
			AccountID: preview.AccountID,
			Provider:  "bulk-upload",
			Operation: "bulk-upload.upload",
			DryRun:    false,
			Params:    db.JSONMap(params),
			Status:    db.JobStatusQueued,
			Message:   fmt.Sprintf("Queued upload from preview %s", preview.ID),
		}, nil

	case db.PreviewKindPipeline:
		params := map[string]any{"confirmed": true}
		for key, value := range preview.QueryPayload {
			params[key] = value
		}
		for key, value := range preview.ActionParams {
			params[key] = value
		}
		return &db.Job{
			AccountID: preview.AccountID,
			Provider:  "pipeline",
			Operation: preview.Action,
			DryRun:    false,
			Params:    db.JSONMap(params),
			Status:    db.JobStatusQueued,
			Message:   fmt.Sprintf("Queued pipeline from preview %s", preview.ID),
		}, nil

	case db.PreviewKindAdvanced:
		params := map[string]any{}
		for key, value := range preview.ActionParams {
			params[key] = value
		}
		if _, ok := params["confirmed"]; !ok {
			params["confirmed"] = true
		}
		return &db.Job{
			AccountID: preview.AccountID,
			Provider:  catalog.Provider(preview.Action),
			Operation: preview.Action,
			DryRun:    false,
			Params:    db.JSONMap(params),
			Status:    db.JobStatusQueued,
			Message:   fmt.Sprintf("Queued advanced operation from preview %s", preview.ID),
		}, nil
	}
	return nil, fmt.Errorf("actions: unknown preview kind %q", preview.Kind)
}

// explorerJobParams re-resolves the matched rows and builds the native-rpc
// request params for the preview's action.
func (s *Service) explorerJobParams(ctx context.Context, preview *db.PreviewAction) (string, map[string]any, error) {
	operation, build, err := explorerOperation(preview.Action)
	if err != nil {
		return "", nil, err
	}

	rows, err := s.index.ListMediaByKeys(ctx, preview.AccountID, preview.MatchedMediaKeys)
	if err != nil {
		return "", nil, err
	}
	byKey := make(map[string]db.MediaIndex, len(rows))
	for _, row := range rows {
		byKey[row.MediaKey] = row
	}
	ordered := make([]db.MediaIndex, 0, len(rows))
	for _, key := range preview.MatchedMediaKeys {
		if row, ok := byKey[key]; ok {
			ordered = append(ordered, row)
		}
	}
	if len(ordered) == 0 {
		return "", nil, errors.New("actions: preview matches no indexed items")
	}

	params, err := build(ordered, preview.ActionParams)
	if err != nil {
		return "", nil, err
	}
	params["confirmed"] = true
	return gphotos.ProviderPrefix + operation, params, nil
}

// paramBuilder turns resolved rows plus action params into request params.
type paramBuilder func(rows []db.MediaIndex, actionParams db.JSONMap) (map[string]any, error)

// explorerOperation maps an explorer action to the native-rpc operation and
// its request builder.
func explorerOperation(action string) (string, paramBuilder, error) {
	switch action {
	case "trash", "move_to_trash":
		return "move_items_to_trash", dedupKeyParams, nil
	case "restore", "restore_from_trash":
		return "restore_from_trash", dedupKeyParams, nil
	case "archive":
		return "set_archive", flagParams(true), nil
	case "unarchive":
		return "set_archive", flagParams(false), nil
	case "favorite":
		return "set_favorite", flagParams(true), nil
	case "unfavorite":
		return "set_favorite", flagParams(false), nil
	case "add_album":
		return "add_items_to_album", addAlbumParams, nil
	case "remove_album":
		return "remove_items_from_shared_album", removeAlbumParams, nil
	case "set_datetime", "set_timestamp":
		return "set_items_timestamp", timestampParams, nil
	}
	return "", nil, fmt.Errorf("actions: unsupported explorer action %q", action)
}

func dedupKeys(rows []db.MediaIndex) []string {
	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		if row.DedupKey != "" {
			keys = append(keys, row.DedupKey)
		}
	}
	return keys
}

func mediaKeys(rows []db.MediaIndex) []string {
	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, row.MediaKey)
	}
	return keys
}

func dedupKeyParams(rows []db.MediaIndex, _ db.JSONMap) (map[string]any, error) {
	keys := dedupKeys(rows)
	if len(keys) == 0 {
		return nil, errors.New("actions: matched items carry no dedup keys, refresh the index")
	}
	return map[string]any{"dedupKeyArray": toAny(keys)}, nil
}

func flagParams(value bool) paramBuilder {
	return func(rows []db.MediaIndex, _ db.JSONMap) (map[string]any, error) {
		keys := dedupKeys(rows)
		if len(keys) == 0 {
			return nil, errors.New("actions: matched items carry no dedup keys, refresh the index")
		}
		return map[string]any{"dedupKeyArray": toAny(keys), "action": value}, nil
	}
}

func addAlbumParams(rows []db.MediaIndex, actionParams db.JSONMap) (map[string]any, error) {
	params := map[string]any{"mediaKeyArray": toAny(mediaKeys(rows))}
	albumID, _ := actionParams["album_id"].(string)
	albumName, _ := actionParams["album_name"].(string)
	switch {
	case albumID != "":
		params["albumMediaKey"] = albumID
	case albumName != "":
		params["albumName"] = albumName
	default:
		return nil, errors.New("actions: add_album requires params.album_id or params.album_name")
	}
	return params, nil
}

func removeAlbumParams(rows []db.MediaIndex, actionParams db.JSONMap) (map[string]any, error) {
	albumID, _ := actionParams["album_id"].(string)
	if albumID == "" {
		return nil, errors.New("actions: remove_album requires params.album_id")
	}
	return map[string]any{
		"mediaKeyArray": toAny(mediaKeys(rows)),
		"albumMediaKey": albumID,
	}, nil
}

func timestampParams(rows []db.MediaIndex, actionParams db.JSONMap) (map[string]any, error) {
	timestampSec, ok := numberParam(actionParams, "timestamp_sec")
	if !ok {
		return nil, errors.New("actions: set_datetime requires params.timestamp_sec")
	}
	timezoneSec, _ := numberParam(actionParams, "timezone_sec")

	items := make([]any, 0, len(rows))
	for _, row := range rows {
		if row.DedupKey == "" {
			continue
		}
		items = append(items, map[string]any{
			"dedupKey":     row.DedupKey,
			"timestampSec": timestampSec,
			"timezoneSec":  timezoneSec,
		})
	}
	if len(items) == 0 {
		return nil, errors.New("actions: matched items carry no dedup keys, refresh the index")
	}
	return map[string]any{"items": items}, nil
}

func numberParam(params db.JSONMap, key string) (int64, bool) {
	switch v := params[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

func (s *Service) sweep(ctx context.Context) {
	if _, err := s.previews.DeleteExpired(ctx, time.Now().UTC()); err != nil {
		s.logger.Warn("preview sweep failed", zap.Error(err))
	}
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func toAny(list []string) []any {
	out := make([]any, len(list))
	for i, v := range list {
		out[i] = v
	}
	return out
}
