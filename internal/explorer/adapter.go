package explorer

import (
	"context"
	"fmt"
	"strings"

	"github.com/photark-io/photark/internal/adapters"
	"github.com/photark-io/photark/internal/db"
)

const refreshOp = "refresh_index"

// Adapter runs explorer operations through the job queue. Refreshing the
// index is long-running, so it executes as a job like any provider
// operation.
type Adapter struct {
	svc *Service
}

// NewAdapter wraps the explorer service for the job registry.
func NewAdapter(svc *Service) *Adapter {
	return &Adapter{svc: svc}
}

func (a *Adapter) Provider() string { return "explorer" }

func (a *Adapter) Run(ctx context.Context, job *db.Job, progress adapters.ProgressFunc) (map[string]any, error) {
	short := strings.TrimPrefix(job.Operation, "explorer.")
	if short != refreshOp {
		return nil, fmt.Errorf("unsupported explorer operation: %s", job.Operation)
	}

	params := map[string]any(job.Params)
	opts := RefreshOptions{}
	opts.ForceFull, _ = params["force_full"].(bool)
	opts.SyncMemberships, _ = params["sync_memberships"].(bool)
	if v, ok := params["max_items"].(float64); ok {
		opts.MaxItems = int(v)
	}

	if job.DryRun {
		return map[string]any{
			"operation":        job.Operation,
			"force_full":       opts.ForceFull,
			"sync_memberships": opts.SyncMemberships,
			"max_items":        opts.MaxItems,
		}, nil
	}
	return a.svc.Refresh(ctx, job.AccountID, opts, progress)
}
