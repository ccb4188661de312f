// Package worker runs queued jobs. A pool polls for claimable jobs and hands
// each one to the executor, which drives the provider adapter, persists
// progress, and settles the terminal status.
package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/photark-io/photark/internal/adapters"
	"github.com/photark-io/photark/internal/catalog"
	"github.com/photark-io/photark/internal/db"
	"github.com/photark-io/photark/internal/metrics"
	"github.com/photark-io/photark/internal/repositories"
	"go.uber.org/zap"
)

// errCancelled aborts an adapter run when the job's cancel flag flips
// mid-flight. Surfaced to the user as the "Job cancelled by user" event.
var errCancelled = errors.New("Job cancelled by user")

// EventSink receives every persisted job event, paired with the job's state
// at emission time. The websocket hub implements it.
type EventSink interface {
	JobEvent(job *db.Job, event *db.JobEvent)
}

// Executor runs one job to a terminal status.
type Executor struct {
	jobs     repositories.JobRepository
	accounts repositories.AccountRepository
	creds    repositories.CredentialRepository
	registry adapters.Registry
	sink     EventSink
	logger   *zap.Logger
}

// NewExecutor wires the executor. sink may be nil.
func NewExecutor(
	jobs repositories.JobRepository,
	accounts repositories.AccountRepository,
	creds repositories.CredentialRepository,
	registry adapters.Registry,
	sink EventSink,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		jobs:     jobs,
		accounts: accounts,
		creds:    creds,
		registry: registry,
		sink:     sink,
		logger:   logger.Named("executor"),
	}
}

// Execute drives a claimed job to a terminal status. Every path out of here
// stamps finished_at; panics in adapters are not recovered and crash the
// worker on purpose.
func (e *Executor) Execute(ctx context.Context, job *db.Job) {
	log := e.logger.With(
		zap.String("job_id", job.ID.String()),
		zap.String("provider", job.Provider),
		zap.String("operation", job.Operation),
	)

	adapter, ok := e.registry[job.Provider]
	if !ok {
		e.fail(ctx, job, "unsupported provider: "+job.Provider)
		return
	}

	if _, err := e.accounts.GetByID(ctx, job.AccountID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			e.fail(ctx, job, "account not found")
			return
		}
		e.fail(ctx, job, err.Error())
		return
	}

	// Destructive operations only run for real after an explicit confirm.
	confirmed, _ := job.Params["confirmed"].(bool)
	if catalog.IsDestructive(job.Operation) && !job.DryRun && !confirmed {
		job.Status = db.JobStatusFailed
		job.Error = db.JSONMap{"message": "Destructive operation requires params.confirmed=true after dry-run"}
		job.Message = "Blocked: destructive operation missing confirmed=true"
		e.finish(ctx, job)
		e.appendEvent(ctx, job, "error", "Blocked: destructive operation missing confirmed=true", nil)
		return
	}

	now := time.Now().UTC()
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	job.Status = db.JobStatusRunning
	job.Message = "Job started"
	if job.Progress < 0.01 {
		job.Progress = 0.01
	}
	if err := e.jobs.Update(ctx, job); err != nil {
		log.Error("failed to mark job running", zap.Error(err))
		return
	}
	e.appendEvent(ctx, job, "info", "Job started", &job.Progress)

	result, runErr := adapter.Run(ctx, job, e.progressFunc(ctx, job))

	if runErr == nil {
		// The cancel flag may have flipped after the last progress report.
		if cancelled, err := e.cancelRequested(ctx, job); err == nil && cancelled {
			runErr = errCancelled
		}
	}

	switch {
	case runErr == nil:
		e.persistSessionState(ctx, job, result)
		job.Status = db.JobStatusSucceeded
		job.Progress = 1.0
		job.Message = "Job completed"
		job.Result = db.JSONMap(result)
		e.finish(ctx, job)
		e.appendEvent(ctx, job, "info", "Job completed", &job.Progress)
		log.Info("job succeeded")

	case errors.Is(runErr, errCancelled):
		job.Status = db.JobStatusCancelled
		job.Message = "Job cancelled"
		job.Error = db.JSONMap{"message": "cancelled"}
		e.finish(ctx, job)
		e.appendEvent(ctx, job, "warn", "Job cancelled by user", nil)
		log.Info("job cancelled")

	default:
		msg := runErr.Error()
		if lower := strings.ToLower(msg); strings.Contains(lower, "auth_data") || strings.Contains(lower, "cookie") {
			job.Status = db.JobStatusRequiresCredentials
		} else {
			job.Status = db.JobStatusFailed
		}
		job.Message = msg
		job.Error = db.JSONMap{"message": msg}
		e.finish(ctx, job)
		e.appendEvent(ctx, job, "error", msg, nil)
		log.Warn("job failed", zap.String("status", job.Status), zap.Error(runErr))
	}
}

// progressFunc builds the adapter's progress callback. Each report refreshes
// the job row so a cancel request lands between two progress steps, clamps
// the value, and appends an event.
func (e *Executor) progressFunc(ctx context.Context, job *db.Job) adapters.ProgressFunc {
	return func(progress float64, message string) error {
		fresh, err := e.jobs.GetByID(ctx, job.ID)
		if err == nil && fresh.CancelRequested {
			job.CancelRequested = true
			return errCancelled
		}

		if progress < 0 {
			progress = 0
		}
		if progress > 1 {
			progress = 1
		}
		if progress > job.Progress {
			job.Progress = progress
		}
		job.Message = message
		if err := e.jobs.Update(ctx, job); err != nil {
			return err
		}
		e.appendEvent(ctx, job, "info", message, &job.Progress)
		return nil
	}
}

// persistSessionState stores refreshed RPC session material returned by a
// native-rpc run so the next job skips the bootstrap.
func (e *Executor) persistSessionState(ctx context.Context, job *db.Job, result map[string]any) {
	state, ok := result["session_state"].(map[string]any)
	if !ok || len(state) == 0 {
		return
	}
	if err := e.creds.UpsertSession(ctx, job.AccountID, db.JSONMap(state)); err != nil {
		e.logger.Warn("failed to persist session state",
			zap.String("job_id", job.ID.String()), zap.Error(err))
	}
}

func (e *Executor) cancelRequested(ctx context.Context, job *db.Job) (bool, error) {
	fresh, err := e.jobs.GetByID(ctx, job.ID)
	if err != nil {
		return false, err
	}
	return fresh.CancelRequested, nil
}

func (e *Executor) fail(ctx context.Context, job *db.Job, message string) {
	job.Status = db.JobStatusFailed
	job.Message = message
	job.Error = db.JSONMap{"message": message}
	e.finish(ctx, job)
	e.appendEvent(ctx, job, "error", message, nil)
}

// finish stamps finished_at and persists the terminal state.
func (e *Executor) finish(ctx context.Context, job *db.Job) {
	now := time.Now().UTC()
	job.FinishedAt = &now
	if err := e.jobs.Update(ctx, job); err != nil {
		e.logger.Error("failed to persist terminal job state",
			zap.String("job_id", job.ID.String()), zap.Error(err))
	}
	metrics.JobsFinished.WithLabelValues(job.Status).Inc()
}

func (e *Executor) appendEvent(ctx context.Context, job *db.Job, level, message string, progress *float64) {
	event := &db.JobEvent{JobID: job.ID, Level: level, Message: message}
	if progress != nil {
		p := *progress
		event.Progress = &p
	}
	if err := e.jobs.AppendEvent(ctx, event); err != nil {
		e.logger.Warn("failed to append job event",
			zap.String("job_id", job.ID.String()), zap.Error(err))
		return
	}
	metrics.JobEvents.Inc()
	if e.sink != nil {
		e.sink.JobEvent(job, event)
	}
}
