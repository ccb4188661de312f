package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/photark-io/photark/internal/db"
	"github.com/photark-io/photark/internal/metrics"
	"github.com/photark-io/photark/internal/repositories"
	"go.uber.org/zap"
)

// Pool defaults.
const (
	DefaultMaxWorkers    = 4
	DefaultMaxPerAccount = 1
	DefaultPollInterval  = time.Second
)

// PoolConfig tunes the worker pool.
type PoolConfig struct {
	MaxWorkers    int
	MaxPerAccount int
	PollInterval  time.Duration
}

// Pool polls for queued jobs and runs them on a bounded set of goroutines.
// At most MaxPerAccount jobs of the same account run concurrently, so
// serialized providers never race on one account's session.
type Pool struct {
	jobs     repositories.JobRepository
	executor *Executor
	cfg      PoolConfig
	logger   *zap.Logger

	mu       sync.Mutex
	inFlight map[uuid.UUID]uuid.UUID // job id -> account id
	wg       sync.WaitGroup
}

// NewPool creates a pool, filling config defaults.
func NewPool(jobs repositories.JobRepository, executor *Executor, cfg PoolConfig, logger *zap.Logger) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.MaxPerAccount <= 0 {
		cfg.MaxPerAccount = DefaultMaxPerAccount
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Pool{
		jobs:     jobs,
		executor: executor,
		cfg:      cfg,
		logger:   logger.Named("worker"),
		inFlight: make(map[uuid.UUID]uuid.UUID),
	}
}

// Run polls until ctx is cancelled, then waits for in-flight jobs to settle.
func (p *Pool) Run(ctx context.Context) {
	p.logger.Info("worker pool started",
		zap.Int("max_workers", p.cfg.MaxWorkers),
		zap.Int("max_per_account", p.cfg.MaxPerAccount),
		zap.Duration("poll_interval", p.cfg.PollInterval),
	)

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("worker pool draining")
			p.wg.Wait()
			p.logger.Info("worker pool stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick claims up to the free capacity and submits the claimed jobs.
func (p *Pool) tick(ctx context.Context) {
	p.mu.Lock()
	available := p.cfg.MaxWorkers - len(p.inFlight)
	perAccount := make(map[uuid.UUID]int, len(p.inFlight))
	for _, accountID := range p.inFlight {
		perAccount[accountID]++
	}
	p.mu.Unlock()

	if available <= 0 {
		return
	}

	claimed, err := p.jobs.ClaimJobs(ctx, available, p.cfg.MaxPerAccount, perAccount)
	if err != nil {
		p.logger.Error("claim failed", zap.Error(err))
		return
	}
	for i := range claimed {
		p.submit(ctx, &claimed[i])
	}
}

func (p *Pool) submit(ctx context.Context, job *db.Job) {
	p.mu.Lock()
	p.inFlight[job.ID] = job.AccountID
	p.mu.Unlock()
	metrics.JobsInFlight.Inc()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			p.mu.Lock()
			delete(p.inFlight, job.ID)
			p.mu.Unlock()
			metrics.JobsInFlight.Dec()
		}()
		p.executor.Execute(ctx, job)
	}()
}

// InFlight returns the number of currently running jobs.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inFlight)
}
