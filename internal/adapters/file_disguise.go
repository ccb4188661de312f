package adapters

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/photark-io/photark/internal/db"
	"github.com/photark-io/photark/internal/disguise"
	"go.uber.org/zap"
)

const fileDisguisePrefix = "file-disguise."

// FileDisguiseAdapter executes the hide and extract operations of the
// disguise codec over local files.
type FileDisguiseAdapter struct {
	logger *zap.Logger
}

// NewFileDisguiseAdapter creates the adapter.
func NewFileDisguiseAdapter(logger *zap.Logger) *FileDisguiseAdapter {
	return &FileDisguiseAdapter{logger: logger.Named("file-disguise")}
}

func (a *FileDisguiseAdapter) Provider() string { return "file-disguise" }

func (a *FileDisguiseAdapter) Run(ctx context.Context, job *db.Job, progress ProgressFunc) (map[string]any, error) {
	params := map[string]any(job.Params)
	short := strings.TrimPrefix(job.Operation, fileDisguisePrefix)

	patterns := stringList(params["files"])
	if len(patterns) == 0 {
		return nil, errors.New("file-disguise requires params.files")
	}
	files, err := expandGlobs(patterns)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("no files matched the given patterns")
	}

	output, _ := params["output"].(string)
	if output == "" {
		output = filepath.Dir(files[0])
	}
	cfg := disguise.Config{
		Separator:      stringOr(params, "separator", ""),
		RestoredSuffix: stringOr(params, "suffix", ""),
		Video:          stringOr(params, "type", "image") == "video",
	}

	if job.DryRun {
		return map[string]any{
			"operation":    job.Operation,
			"target_count": len(files),
			"sample":       head(files, 10),
			"output":       output,
		}, nil
	}

	var created []string
	var failures []string
	for i, path := range files {
		if err := progress(0.2+0.8*float64(i)/float64(len(files)), fmt.Sprintf("Processed %d/%d", i, len(files))); err != nil {
			return nil, err
		}
		var outPath string
		var opErr error
		switch short {
		case "hide":
			outPath, opErr = disguise.Hide(path, output, cfg)
		case "extract":
			outPath, opErr = disguise.Extract(path, output, cfg)
		default:
			return nil, fmt.Errorf("unsupported file-disguise operation: %s", job.Operation)
		}
		if opErr != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(path), opErr))
			continue
		}
		created = append(created, outPath)
	}

	if err := progress(1.0, fmt.Sprintf("Processed %d/%d", len(files), len(files))); err != nil {
		return nil, err
	}
	return map[string]any{
		"operation":     job.Operation,
		"total":         len(files),
		"created":       created,
		"created_count": len(created),
		"failed_count":  len(failures),
		"failures":      failures,
	}, nil
}

// expandGlobs resolves glob patterns into a deduplicated, sorted file list.
// A pattern without glob metacharacters is taken as a literal path.
func expandGlobs(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
		}
		if matches == nil && !strings.ContainsAny(pattern, "*?[") {
			matches = []string{pattern}
		}
		for _, match := range matches {
			resolved, err := filepath.Abs(match)
			if err != nil {
				return nil, err
			}
			if !seen[resolved] {
				seen[resolved] = true
				files = append(files, resolved)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func stringOr(params map[string]any, key, def string) string {
	if s, ok := params[key].(string); ok && s != "" {
		return s
	}
	return def
}

func head(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}
