// Package maintenance runs the periodic housekeeping tasks: sweeping expired
// previews, pruning old job events, and logging job throughput. It wraps
// gocron; each task runs in singleton mode so a slow sweep never overlaps
// itself.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/photark-io/photark/internal/actions"
	"github.com/photark-io/photark/internal/metrics"
	"github.com/photark-io/photark/internal/repositories"
	"go.uber.org/zap"
)

const (
	previewSweepInterval = 5 * time.Minute
	eventPruneInterval   = time.Hour
	eventRetention       = 30 * 24 * time.Hour
	statusLogInterval    = time.Minute
	taskTimeout          = 30 * time.Second
)

// Scheduler owns the housekeeping jobs.
type Scheduler struct {
	cron    gocron.Scheduler
	actions *actions.Service
	jobs    repositories.JobRepository
	logger  *zap.Logger
}

// New creates the maintenance scheduler.
func New(actionsSvc *actions.Service, jobs repositories.JobRepository, logger *zap.Logger) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{
		cron:    cron,
		actions: actionsSvc,
		jobs:    jobs,
		logger:  logger.Named("maintenance"),
	}, nil
}

// Start registers the tasks and starts ticking.
func (s *Scheduler) Start() error {
	_, err := s.cron.NewJob(
		gocron.DurationJob(previewSweepInterval),
		gocron.NewTask(s.sweepPreviews),
		gocron.WithTags("preview-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("gocron.NewJob failed for preview sweep: %w", err)
	}

	_, err = s.cron.NewJob(
		gocron.DurationJob(eventPruneInterval),
		gocron.NewTask(s.pruneEvents),
		gocron.WithTags("event-prune"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("gocron.NewJob failed for event prune: %w", err)
	}

	_, err = s.cron.NewJob(
		gocron.DurationJob(statusLogInterval),
		gocron.NewTask(s.logStatusCounts),
		gocron.WithTags("status-log"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("gocron.NewJob failed for status log: %w", err)
	}

	s.cron.Start()
	s.logger.Info("maintenance scheduler started")
	return nil
}

// Stop shuts the scheduler down, waiting for running tasks.
func (s *Scheduler) Stop() error {
	if err := s.cron.Shutdown(); err != nil {
		return fmt.Errorf("maintenance shutdown error: %w", err)
	}
	s.logger.Info("maintenance scheduler stopped")
	return nil
}

func (s *Scheduler) sweepPreviews() {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	removed, err := s.actions.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("preview sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		metrics.PreviewsExpired.Add(float64(removed))
		s.logger.Info("expired previews removed", zap.Int64("count", removed))
	}
}

func (s *Scheduler) pruneEvents() {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	removed, err := s.jobs.PruneEventsBefore(ctx, time.Now().UTC().Add(-eventRetention))
	if err != nil {
		s.logger.Error("event prune failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("old job events pruned", zap.Int64("count", removed))
	}
}

func (s *Scheduler) logStatusCounts() {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	counts, err := s.jobs.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("status count failed", zap.Error(err))
		return
	}
	if counts["queued"] > 0 || counts["running"] > 0 {
		s.logger.Info("job queue",
			zap.Int64("queued", counts["queued"]),
			zap.Int64("running", counts["running"]),
		)
	}
}
