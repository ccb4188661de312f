package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/photark-io/photark/internal/db"
	"gorm.io/gorm"
)

// claimScanLimit bounds how many queued jobs a single claim transaction
// inspects. Keeps the claim cheap when the queue is deep.
const claimScanLimit = 500

// gormJobRepository is the GORM implementation of JobRepository.
type gormJobRepository struct {
	db *gorm.DB
}

// NewJobRepository returns a JobRepository backed by the provided *gorm.DB.
func NewJobRepository(db *gorm.DB) JobRepository {
	return &gormJobRepository{db: db}
}

// Create inserts a new job record into the database.
func (r *gormJobRepository) Create(ctx context.Context, job *db.Job) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("jobs: create: %w", err)
	}
	return nil
}

// GetByID retrieves a job by its UUID.
// Returns ErrNotFound if no record exists.
func (r *gormJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*db.Job, error) {
	var job db.Job
	err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("jobs: get by id: %w", err)
	}
	return &job, nil
}

// Update persists all fields of an existing job record.
func (r *gormJobRepository) Update(ctx context.Context, job *db.Job) error {
	result := r.db.WithContext(ctx).Save(job)
	if result.Error != nil {
		return fmt.Errorf("jobs: update: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns a paginated, filtered list of jobs and the total count,
// ordered by creation time descending (most recent first).
func (r *gormJobRepository) List(ctx context.Context, opts JobListOptions) ([]db.Job, int64, error) {
	var jobs []db.Job
	var total int64

	query := r.db.WithContext(ctx).Model(&db.Job{})
	if opts.AccountID != (uuid.UUID{}) {
		query = query.Where("account_id = ?", opts.AccountID)
	}
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("jobs: list count: %w", err)
	}

	if err := query.
		Limit(opts.Limit).
		Offset(opts.Offset).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		return nil, 0, fmt.Errorf("jobs: list: %w", err)
	}

	return jobs, total, nil
}

// ClaimJobs transitions queued jobs to running on behalf of the worker pool.
// Candidates are scanned oldest first. A job is admitted only while fewer
// than limit jobs have been claimed and its account's in-flight count
// (inFlight plus jobs claimed earlier in this same call) stays below
// maxPerAccount. The status flip, the claim event, and the progress bump
// commit atomically, so a crash between claim and execution never leaves a
// half-claimed job.
func (r *gormJobRepository) ClaimJobs(ctx context.Context, limit, maxPerAccount int, inFlight map[uuid.UUID]int) ([]db.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	var claimed []db.Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []db.Job
		if err := tx.
			Where("status = ?", db.JobStatusQueued).
			Order("created_at ASC").
			Limit(claimScanLimit).
			Find(&candidates).Error; err != nil {
			return fmt.Errorf("list queued: %w", err)
		}

		local := make(map[uuid.UUID]int)
		now := time.Now().UTC()

		for i := range candidates {
			if len(claimed) >= limit {
				break
			}
			job := candidates[i]
			if inFlight[job.AccountID]+local[job.AccountID] >= maxPerAccount {
				continue
			}

			job.Status = db.JobStatusRunning
			if job.StartedAt == nil {
				startedAt := now
				job.StartedAt = &startedAt
			}
			job.Message = "Worker claimed job"
			if job.Progress < 0.01 {
				job.Progress = 0.01
			}
			if err := tx.Save(&job).Error; err != nil {
				return fmt.Errorf("claim job %s: %w", job.ID, err)
			}

			progress := job.Progress
			event := db.JobEvent{
				JobID:    job.ID,
				Level:    "info",
				Message:  job.Message,
				Progress: &progress,
			}
			if err := tx.Create(&event).Error; err != nil {
				return fmt.Errorf("claim event for job %s: %w", job.ID, err)
			}

			local[job.AccountID]++
			claimed = append(claimed, job)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("jobs: claim: %w", err)
	}
	return claimed, nil
}

// AppendEvent inserts a single job event record.
func (r *gormJobRepository) AppendEvent(ctx context.Context, event *db.JobEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("jobs: append event: %w", err)
	}
	return nil
}

// ListEvents returns all events for a job, oldest first, so the caller can
// replay the execution timeline without additional sorting.
func (r *gormJobRepository) ListEvents(ctx context.Context, jobID uuid.UUID) ([]db.JobEvent, error) {
	var events []db.JobEvent
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("jobs: list events: %w", err)
	}
	return events, nil
}

// ListEventsAfter returns events strictly after the (after, afterID) cursor,
// oldest first. Ids are UUID v7 stored as text, so the lexical id comparison
// matches creation order and breaks ties between events sharing a
// created_at timestamp.
func (r *gormJobRepository) ListEventsAfter(ctx context.Context, after time.Time, afterID uuid.UUID, limit int) ([]db.JobEvent, error) {
	var events []db.JobEvent
	if err := r.db.WithContext(ctx).
		Where("created_at > ? OR (created_at = ? AND id > ?)", after, after, afterID).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("jobs: list events after: %w", err)
	}
	return events, nil
}

// PruneEventsBefore deletes job events older than the cutoff. Event history
// is append-only otherwise, so without pruning the table grows without bound.
func (r *gormJobRepository) PruneEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&db.JobEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("jobs: prune events: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CountByStatus returns the number of jobs per status. Used by the metrics
// collector and the seed tool's summary output.
func (r *gormJobRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&db.Job{}).
		Select("status, count(*) as total").
		Group("status").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("jobs: count by status: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}
