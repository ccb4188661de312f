package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/photark-io/photark/internal/catalog"
	"github.com/photark-io/photark/internal/db"
	"github.com/photark-io/photark/internal/repositories"
)

// Job list and stream bounds.
const (
	defaultJobListLimit = 200
	maxJobListLimit     = 1000

	streamEventLimit  = 300
	streamDefaultPoll = time.Second
	streamMinPoll     = 200 * time.Millisecond
	streamMaxPoll     = 5 * time.Second
)

// JobHandler groups the job endpoints: create, list, inspect, cancel, and
// the SSE event stream. Execution itself happens in the worker pool.
type JobHandler struct {
	jobs     repositories.JobRepository
	accounts repositories.AccountRepository
	logger   *zap.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobs repositories.JobRepository, accounts repositories.AccountRepository, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		jobs:     jobs,
		accounts: accounts,
		logger:   logger.Named("job_handler"),
	}
}

// -----------------------------------------------------------------------------
// Response types
// -----------------------------------------------------------------------------

// jobEventResponse is the JSON representation of one job event.
type jobEventResponse struct {
	ID        string   `json:"id"`
	Level     string   `json:"level"`
	Message   string   `json:"message"`
	Progress  *float64 `json:"progress,omitempty"`
	CreatedAt string   `json:"created_at"`
}

// jobResponse is the JSON representation of a job.
type jobResponse struct {
	ID              string             `json:"id"`
	AccountID       string             `json:"account_id"`
	Provider        string             `json:"provider"`
	Operation       string             `json:"operation"`
	DryRun          bool               `json:"dry_run"`
	Params          db.JSONMap         `json:"params"`
	Status          string             `json:"status"`
	Progress        float64            `json:"progress"`
	Message         string             `json:"message"`
	Result          db.JSONMap         `json:"result,omitempty"`
	Error           db.JSONMap         `json:"error,omitempty"`
	CancelRequested bool               `json:"cancel_requested"`
	StartedAt       *string            `json:"started_at"`
	FinishedAt      *string            `json:"finished_at"`
	CreatedAt       string             `json:"created_at"`
	Events          []jobEventResponse `json:"events,omitempty"`
}

// jobToResponse converts a db.Job and optional event slice to a jobResponse.
func jobToResponse(j *db.Job, events []db.JobEvent) jobResponse {
	resp := jobResponse{
		ID:              j.ID.String(),
		AccountID:       j.AccountID.String(),
		Provider:        j.Provider,
		Operation:       j.Operation,
		DryRun:          j.DryRun,
		Params:          j.Params,
		Status:          j.Status,
		Progress:        j.Progress,
		Message:         j.Message,
		Result:          j.Result,
		Error:           j.Error,
		CancelRequested: j.CancelRequested,
		CreatedAt:       formatTime(j.CreatedAt),
	}
	if j.StartedAt != nil {
		s := formatTime(*j.StartedAt)
		resp.StartedAt = &s
	}
	if j.FinishedAt != nil {
		s := formatTime(*j.FinishedAt)
		resp.FinishedAt = &s
	}
	for _, e := range events {
		resp.Events = append(resp.Events, eventToResponse(&e))
	}
	return resp
}

func eventToResponse(e *db.JobEvent) jobEventResponse {
	return jobEventResponse{
		ID:        e.ID.String(),
		Level:     e.Level,
		Message:   e.Message,
		Progress:  e.Progress,
		CreatedAt: formatTime(e.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// listJobsResponse wraps a paginated list of jobs.
type listJobsResponse struct {
	Items []jobResponse `json:"items"`
	Total int64         `json:"total"`
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// createJobRequest is the body of POST /api/v1/jobs. DryRun defaults to true:
// destructive operations must be previewed before they run for real.
type createJobRequest struct {
	AccountID string         `json:"account_id"`
	Provider  string         `json:"provider"`
	Operation string         `json:"operation"`
	Params    map[string]any `json:"params"`
	DryRun    *bool          `json:"dry_run"`
}

// Create handles POST /api/v1/jobs.
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Operation == "" {
		ErrBadRequest(w, "operation is required")
		return
	}
	accountID, err := parseUUIDString(req.AccountID)
	if err != nil {
		ErrBadRequest(w, "invalid account_id: must be a valid UUID")
		return
	}
	if _, err := h.accounts.GetByID(r.Context(), accountID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to load account", zap.Error(err))
		ErrInternal(w)
		return
	}

	provider := req.Provider
	if provider == "" {
		provider = catalog.Provider(req.Operation)
	}
	dryRun := true
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}

	// Destructive operations are rejected here unless explicitly confirmed,
	// so a bad request never even reaches the queue.
	confirmed, _ := req.Params["confirmed"].(bool)
	if catalog.IsDestructive(req.Operation) && !dryRun && !confirmed {
		ErrBadRequest(w, "Destructive operation requires params.confirmed=true after dry-run")
		return
	}

	job := &db.Job{
		AccountID: accountID,
		Provider:  provider,
		Operation: req.Operation,
		DryRun:    dryRun,
		Params:    db.JSONMap(req.Params),
		Status:    db.JobStatusQueued,
		Message:   "Queued",
	}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		h.logger.Error("failed to create job", zap.Error(err))
		ErrInternal(w)
		return
	}
	Created(w, jobToResponse(job, nil))
}

// List handles GET /api/v1/jobs. Filters: account_id, status. Newest first.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := repositories.JobListOptions{
		Status: r.URL.Query().Get("status"),
		Limit:  defaultJobListLimit,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if opts.Limit > maxJobListLimit {
		opts.Limit = maxJobListLimit
	}
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := parseUUIDString(raw)
		if err != nil {
			ErrBadRequest(w, "invalid account_id: must be a valid UUID")
			return
		}
		opts.AccountID = id
	}

	jobs, total, err := h.jobs.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list jobs", zap.Error(err))
		ErrInternal(w)
		return
	}

	includeEvents := r.URL.Query().Get("include_events") == "true"
	items := make([]jobResponse, len(jobs))
	for i := range jobs {
		var events []db.JobEvent
		if includeEvents {
			events, _ = h.jobs.ListEvents(r.Context(), jobs[i].ID)
		}
		items[i] = jobToResponse(&jobs[i], events)
	}
	Ok(w, listJobsResponse{Items: items, Total: total})
}

// GetByID handles GET /api/v1/jobs/{id}. Events are included unless
// include_events=false.
func (h *JobHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to get job", zap.String("id", id.String()), zap.Error(err))
		ErrInternal(w)
		return
	}

	var events []db.JobEvent
	if r.URL.Query().Get("include_events") != "false" {
		events, err = h.jobs.ListEvents(r.Context(), id)
		if err != nil {
			h.logger.Error("failed to list job events", zap.Error(err))
			ErrInternal(w)
			return
		}
	}
	Ok(w, jobToResponse(job, events))
}

// Cancel handles POST /api/v1/jobs/{id}/cancel. A terminal job is returned
// unchanged; a queued job is cancelled immediately; a running job gets its
// cancel flag set and settles at the next progress report.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "id")
	if !ok {
		return
	}

	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			ErrNotFound(w)
			return
		}
		h.logger.Error("failed to get job", zap.Error(err))
		ErrInternal(w)
		return
	}

	if db.JobStatusTerminal(job.Status) {
		Ok(w, jobToResponse(job, nil))
		return
	}

	job.CancelRequested = true
	if job.Status == db.JobStatusQueued {
		now := time.Now().UTC()
		job.Status = db.JobStatusCancelled
		job.Message = "Cancelled before execution"
		job.FinishedAt = &now
	}
	if err := h.jobs.Update(r.Context(), job); err != nil {
		h.logger.Error("failed to cancel job", zap.Error(err))
		ErrInternal(w)
		return
	}
	Ok(w, jobToResponse(job, nil))
}

// -----------------------------------------------------------------------------
// SSE stream
// -----------------------------------------------------------------------------

// Stream handles GET /api/v1/jobs/stream: a Server-Sent Events feed of job
// events. Query params: since (RFC 3339 cursor, default now) and
// poll_seconds (default 1, clamped to [0.2, 5]). Idle polls emit a keepalive
// comment so proxies do not drop the connection.
func (h *JobHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		ErrBadRequest(w, "streaming is not supported by this connection")
		return
	}

	since := time.Now().UTC()
	var sinceID uuid.UUID
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ErrBadRequest(w, "invalid since: must be an RFC 3339 timestamp")
			return
		}
		since = parsed.UTC()
	}

	poll := streamDefaultPoll
	if raw := r.URL.Query().Get("poll_seconds"); raw != "" {
		seconds, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			ErrBadRequest(w, "invalid poll_seconds: must be a number")
			return
		}
		poll = time.Duration(seconds * float64(time.Second))
		if poll < streamMinPoll {
			poll = streamMinPoll
		}
		if poll > streamMaxPoll {
			poll = streamMaxPoll
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	jobCache := make(map[uuid.UUID]*db.Job)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		events, err := h.jobs.ListEventsAfter(r.Context(), since, sinceID, streamEventLimit)
		if err != nil {
			h.logger.Warn("event stream query failed", zap.Error(err))
			continue
		}
		if len(events) == 0 {
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
			continue
		}

		for i := range events {
			event := &events[i]
			job := jobCache[event.JobID]
			if job == nil || !db.JobStatusTerminal(job.Status) {
				if fresh, err := h.jobs.GetByID(r.Context(), event.JobID); err == nil {
					job = fresh
					jobCache[event.JobID] = fresh
				}
			}

			payload := map[string]any{
				"event_id": event.ID.String(),
				"type":     "job_event",
				"job_id":   event.JobID.String(),
				"payload": map[string]any{
					"level":    event.Level,
					"message":  event.Message,
					"progress": event.Progress,
				},
				"created_at": formatTime(event.CreatedAt),
			}
			if job != nil {
				payload["payload"].(map[string]any)["job"] = jobToResponse(job, nil)
			}

			data, err := json.Marshal(payload)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			since, sinceID = event.CreatedAt, event.ID
		}
		flusher.Flush()
	}
}
