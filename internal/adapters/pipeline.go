package adapters

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/photark-io/photark/internal/db"
	"github.com/photark-io/photark/internal/disguise"
	"go.uber.org/zap"
)

// PipelineAdapter chains the disguise hide step with a bulk upload: local
// files are embedded into media containers, the artifacts are uploaded, and
// the intermediate artifacts are cleaned up unless the output policy keeps
// them.
type PipelineAdapter struct {
	uploads *BulkUploadAdapter
	logger  *zap.Logger
}

// NewPipelineAdapter wires the pipeline to the bulk-upload adapter it feeds.
func NewPipelineAdapter(uploads *BulkUploadAdapter, logger *zap.Logger) *PipelineAdapter {
	return &PipelineAdapter{uploads: uploads, logger: logger.Named("pipeline")}
}

func (a *PipelineAdapter) Provider() string { return "pipeline" }

func (a *PipelineAdapter) Run(ctx context.Context, job *db.Job, progress ProgressFunc) (map[string]any, error) {
	params := map[string]any(job.Params)

	patterns := stringList(params["input_files"])
	if len(patterns) == 0 {
		return nil, errors.New("pipeline requires params.input_files")
	}
	files, err := expandGlobs(patterns)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("no files matched the given patterns")
	}

	outputPolicy, _ := params["output_policy"].(map[string]any)
	keepArtifacts, _ := outputPolicy["keep_artifacts"].(bool)
	outputDir, _ := outputPolicy["output_dir"].(string)

	cfg := disguise.Config{
		Separator: stringOr(params, "separator", ""),
		Video:     stringOr(params, "disguise_type", "image") == "video",
	}
	uploadOptions := UploadOptions{}
	if raw, ok := params["upload_options"].(map[string]any); ok {
		uploadOptions = uploadOptionsFromParams(raw)
	}

	if job.DryRun {
		return map[string]any{
			"operation":    job.Operation,
			"target_count": len(files),
			"sample":       head(files, 10),
		}, nil
	}

	tempDir := false
	if outputDir == "" {
		outputDir, err = os.MkdirTemp("", "photark_disguise_")
		if err != nil {
			return nil, fmt.Errorf("create artifact dir: %w", err)
		}
		tempDir = true
	}

	// Hide step, scaled into the 0.08..0.50 progress band.
	if err := progress(0.08, "Running disguise hide step"); err != nil {
		return nil, err
	}
	var created []string
	var errorsList []string
	for i, path := range files {
		sub := float64(i) / float64(len(files))
		if err := progress(0.08+sub*0.42, fmt.Sprintf("disguise: Processed %d/%d", i, len(files))); err != nil {
			return nil, err
		}
		artifact, err := disguise.Hide(path, outputDir, cfg)
		if err != nil {
			errorsList = append(errorsList, fmt.Sprintf("hide %s: %v", path, err))
			continue
		}
		created = append(created, artifact)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("disguise step produced no artifacts: %s", strings.Join(errorsList, "; "))
	}

	// Upload step, scaled into the 0.55..0.95 band.
	if err := progress(0.55, "Running upload step"); err != nil {
		return nil, err
	}
	uploadResult, err := a.uploads.UploadFiles(ctx, job.AccountID, created, uploadOptions, func(v float64, msg string) error {
		return progress(0.55+v*0.4, "upload: "+msg)
	})
	if err != nil {
		return nil, err
	}

	cleaned := 0
	kept := len(created)
	if !keepArtifacts {
		if err := progress(0.97, "Cleaning up artifacts"); err != nil {
			return nil, err
		}
		for _, artifact := range created {
			if err := os.Remove(artifact); err != nil {
				a.logger.Warn("failed to remove artifact", zap.String("path", artifact), zap.Error(err))
				continue
			}
			cleaned++
		}
		kept = len(created) - cleaned
		if tempDir {
			_ = os.Remove(outputDir)
		}
	}

	if err := progress(1.0, "Pipeline completed"); err != nil {
		return nil, err
	}

	uploadedCount, _ := uploadResult["uploaded_count"].(int)
	failedCount, _ := uploadResult["failed_count"].(int)
	return map[string]any{
		"operation": job.Operation,
		"summary": fmt.Sprintf("Disguised %d files, uploaded %d, %d failed",
			len(created), uploadedCount, failedCount),
		"processed_count": len(files),
		"success_count":   uploadedCount,
		"failed_count":    failedCount + (len(files) - len(created)),
		"artifacts": map[string]any{
			"created": len(created),
			"cleaned": cleaned,
			"kept":    kept,
		},
		"upload": uploadResult,
		"errors": errorsList,
	}, nil
}
