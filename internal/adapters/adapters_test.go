package adapters

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/photark-io/photark/internal/db"
	"github.com/photark-io/photark/internal/repositories"
	"github.com/photark-io/photark/internal/rpc"
	"github.com/photark-io/photark/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func noProgress(float64, string) error { return nil }

type fakeCaller struct {
	calls     []string
	responses map[string]map[string]any
	err       error
}

func (f *fakeCaller) Call(_ context.Context, _ uuid.UUID, operation string, _ map[string]any) (map[string]any, error) {
	f.calls = append(f.calls, operation)
	if f.err != nil {
		return nil, f.err
	}
	return f.responses[operation], nil
}

func newCredentialRepo(t *testing.T) repositories.CredentialRepository {
	t.Helper()
	require.NoError(t, db.InitEncryption([]byte("0123456789abcdef0123456789abcdef")))
	database, err := db.New(db.Config{Driver: "sqlite", DSN: ":memory:", Logger: zap.NewNop()})
	require.NoError(t, err)
	return repositories.NewCredentialRepository(database)
}

func TestRegistry(t *testing.T) {
	nativeRPC := NewNativeRPCAdapter(rpc.NewClient(rpc.Config{}), nil, zap.NewNop())
	fileDisguise := NewFileDisguiseAdapter(zap.NewNop())

	registry := NewRegistry(nativeRPC, fileDisguise)
	assert.Len(t, registry, 2)
	assert.Equal(t, nativeRPC, registry["native-rpc"])
	assert.Equal(t, fileDisguise, registry["file-disguise"])
}

func TestNativeRPCDryRun(t *testing.T) {
	adapter := NewNativeRPCAdapter(rpc.NewClient(rpc.Config{}), nil, zap.NewNop())

	job := &db.Job{
		AccountID: uuid.New(),
		Operation: "native-rpc.move_items_to_trash",
		DryRun:    true,
		Params:    db.JSONMap{"dedupKeyArray": []any{"d1", "d2"}},
	}
	result, err := adapter.Run(context.Background(), job, noProgress)
	require.NoError(t, err)
	assert.Equal(t, "XwAOJf", result["rpcid"])
	assert.NotNil(t, result["request_preview"])
}

func TestNativeRPCExecuteRequiresFrame(t *testing.T) {
	adapter := NewNativeRPCAdapter(rpc.NewClient(rpc.Config{}), nil, zap.NewNop())

	job := &db.Job{
		AccountID: uuid.New(),
		Operation: "native-rpc.rpc_execute",
		DryRun:    true,
		Params:    db.JSONMap{"rpcid": "XwAOJf"},
	}
	_, err := adapter.Run(context.Background(), job, noProgress)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requestData")
}

func TestFileFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter FileFilter
		path   string
		want   bool
	}{
		{"empty matches all", FileFilter{}, "/tmp/a.jpg", true},
		{"substring", FileFilter{Expression: "holiday"}, "/tmp/holiday_1.jpg", true},
		{"substring miss", FileFilter{Expression: "holiday"}, "/tmp/work.jpg", false},
		{"exclude", FileFilter{Expression: "holiday", Exclude: true}, "/tmp/work.jpg", true},
		{"ignore case", FileFilter{Expression: "HOLIDAY", IgnoreCase: true}, "/tmp/holiday.jpg", true},
		{"regex", FileFilter{Expression: `^img_\d+`, Regex: true}, "/tmp/img_042.jpg", true},
		{"name only by default", FileFilter{Expression: "tmp"}, "/tmp/a.jpg", false},
		{"match full path", FileFilter{Expression: "tmp", MatchPath: true}, "/tmp/a.jpg", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.filter.matches(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := FileFilter{Expression: "([", Regex: true}.matches("/tmp/a.jpg")
	assert.Error(t, err)
}

func TestCollectMediaFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	for _, name := range []string{"b.jpg", "a.png", "notes.txt", "clip.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(sub, "deep.jpg"), []byte("x"), 0o644))

	// Non-recursive: top-level media only, sorted, text file excluded.
	files, err := collectMediaFiles([]string{dir}, false, FileFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "b.jpg"),
		filepath.Join(dir, "clip.mp4"),
	}, files)

	// Recursive picks up the nested file.
	files, err = collectMediaFiles([]string{dir}, true, FileFilter{})
	require.NoError(t, err)
	assert.Contains(t, files, filepath.Join(sub, "deep.jpg"))

	// Filter narrows the set.
	files, err = collectMediaFiles([]string{dir}, false, FileFilter{Expression: ".jpg"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.jpg")}, files)

	_, err = collectMediaFiles([]string{filepath.Join(dir, "missing")}, false, FileFilter{})
	assert.Error(t, err)
}

func TestBulkUploadDryRun(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "b.jpg"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	adapter := NewBulkUploadAdapter(upload.NewClient(upload.Config{}), nil, nil, t.TempDir(), zap.NewNop())

	job := &db.Job{
		AccountID: uuid.New(),
		Operation: "bulk-upload.upload",
		DryRun:    true,
		Params:    db.JSONMap{"target": []any{dir}},
	}
	result, err := adapter.Run(context.Background(), job, noProgress)
	require.NoError(t, err)
	assert.Equal(t, 2, result["target_count"])

	job.Params = db.JSONMap{}
	_, err = adapter.Run(context.Background(), job, noProgress)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "params.target")

	job.Operation = "bulk-upload.shred"
	_, err = adapter.Run(context.Background(), job, noProgress)
	assert.Error(t, err)
}

func TestUploadFilesSkipsCachedHashes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("cached bytes"), 0o644))

	creds := newCredentialRepo(t)
	accountID := uuid.New()
	require.NoError(t, creds.UpsertUploadAuth(context.Background(), accountID, "Auth=token"))

	cacheDir := t.TempDir()
	adapter := NewBulkUploadAdapter(upload.NewClient(upload.Config{}), creds, nil, cacheDir, zap.NewNop())

	hash, err := upload.FileSha1(path)
	require.NoError(t, err)
	cache, err := upload.OpenCache(adapter.cachePath(accountID))
	require.NoError(t, err)
	require.NoError(t, cache.Put(hash, "cached-key"))

	result, err := adapter.UploadFiles(context.Background(), accountID, []string{path}, UploadOptions{}, noProgress)
	require.NoError(t, err)
	assert.Equal(t, 1, result["skipped_count"])
	assert.Equal(t, 0, result["uploaded_count"])
	assert.Equal(t, []string{"cached-key"}, result["media_keys"])
}

func TestMoveToTrashByHash(t *testing.T) {
	caller := &fakeCaller{responses: map[string]map[string]any{
		"get_remote_matches_by_hash": {
			"matches": []any{
				map[string]any{"item": map[string]any{"dedupKey": "d1"}},
				map[string]any{"item": map[string]any{"dedupKey": "d2"}},
			},
		},
		"move_items_to_trash": {},
	}}
	adapter := NewBulkUploadAdapter(upload.NewClient(upload.Config{}), nil, caller, t.TempDir(), zap.NewNop())

	job := &db.Job{
		AccountID: uuid.New(),
		Operation: "bulk-upload.move_to_trash",
		Params:    db.JSONMap{"sha1_hashes": []any{"h1", "h2"}},
	}
	result, err := adapter.Run(context.Background(), job, noProgress)
	require.NoError(t, err)
	assert.Equal(t, 2, result["matched_count"])
	assert.Equal(t, []string{"get_remote_matches_by_hash", "move_items_to_trash"}, caller.calls)
}

func TestMoveToTrashNoMatches(t *testing.T) {
	caller := &fakeCaller{responses: map[string]map[string]any{
		"get_remote_matches_by_hash": {"matches": []any{}},
	}}
	adapter := NewBulkUploadAdapter(upload.NewClient(upload.Config{}), nil, caller, t.TempDir(), zap.NewNop())

	job := &db.Job{
		AccountID: uuid.New(),
		Operation: "bulk-upload.move_to_trash",
		Params:    db.JSONMap{"sha1_hashes": []any{"h1"}},
	}
	_, err := adapter.Run(context.Background(), job, noProgress)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no remote items matched")
}

func TestFileDisguiseHideExtract(t *testing.T) {
	dir := t.TempDir()
	payload := filepath.Join(dir, "secret.pdf")
	require.NoError(t, os.WriteFile(payload, []byte("payload bytes"), 0o644))

	adapter := NewFileDisguiseAdapter(zap.NewNop())
	outDir := t.TempDir()

	hideJob := &db.Job{
		AccountID: uuid.New(),
		Operation: "file-disguise.hide",
		Params:    db.JSONMap{"files": []any{payload}, "output": outDir},
	}
	result, err := adapter.Run(context.Background(), hideJob, noProgress)
	require.NoError(t, err)
	created, ok := result["created"].([]string)
	require.True(t, ok)
	require.Len(t, created, 1)

	restoreDir := t.TempDir()
	extractJob := &db.Job{
		AccountID: hideJob.AccountID,
		Operation: "file-disguise.extract",
		Params:    db.JSONMap{"files": []any{created[0]}, "output": restoreDir},
	}
	result, err = adapter.Run(context.Background(), extractJob, noProgress)
	require.NoError(t, err)
	restored, ok := result["created"].([]string)
	require.True(t, ok)
	require.Len(t, restored, 1)

	data, err := os.ReadFile(restored[0])
	require.NoError(t, err)
	assert.Equal(t, "payload bytes", string(data))
}

func TestFileDisguiseRequiresFiles(t *testing.T) {
	adapter := NewFileDisguiseAdapter(zap.NewNop())
	job := &db.Job{
		AccountID: uuid.New(),
		Operation: "file-disguise.hide",
		Params:    db.JSONMap{},
	}
	_, err := adapter.Run(context.Background(), job, noProgress)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "params.files")
}

func TestPipelineDryRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(input, []byte("x"), 0o644))

	uploads := NewBulkUploadAdapter(upload.NewClient(upload.Config{}), nil, nil, t.TempDir(), zap.NewNop())
	adapter := NewPipelineAdapter(uploads, zap.NewNop())

	job := &db.Job{
		AccountID: uuid.New(),
		Operation: "pipeline.disguise_upload",
		DryRun:    true,
		Params:    db.JSONMap{"input_files": []any{input}},
	}
	result, err := adapter.Run(context.Background(), job, noProgress)
	require.NoError(t, err)
	assert.Equal(t, 1, result["target_count"])
}

func TestUploadOptionsFromParams(t *testing.T) {
	opts := uploadOptionsFromParams(map[string]any{
		"recursive":          true,
		"album_name":         "Holiday",
		"saver":              true,
		"filter_exp":         ".jpg",
		"filter_exclude":     true,
		"filter_ignore_case": true,
	})
	assert.True(t, opts.Recursive)
	assert.Equal(t, "Holiday", opts.AlbumName)
	assert.True(t, opts.Saver)
	assert.False(t, opts.UseQuota)
	assert.Equal(t, ".jpg", opts.Filter.Expression)
	assert.True(t, opts.Filter.Exclude)
	assert.True(t, opts.Filter.IgnoreCase)
}
