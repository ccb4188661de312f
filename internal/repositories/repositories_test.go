package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/photark-io/photark/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	accounts AccountRepository
	creds    CredentialRepository
	jobs     JobRepository
	previews PreviewRepository
}

func setup(t *testing.T) *fixture {
	t.Helper()
	require.NoError(t, db.InitEncryption([]byte("0123456789abcdef0123456789abcdef")))

	database, err := db.New(db.Config{Driver: "sqlite", DSN: ":memory:", Logger: zap.NewNop()})
	require.NoError(t, err)

	return &fixture{
		accounts: NewAccountRepository(database),
		creds:    NewCredentialRepository(database),
		jobs:     NewJobRepository(database),
		previews: NewPreviewRepository(database),
	}
}

func (f *fixture) newAccount(t *testing.T, label string) uuid.UUID {
	t.Helper()
	account := &db.Account{Label: label, IsActive: true}
	require.NoError(t, f.accounts.Create(context.Background(), account))
	return account.ID
}

func (f *fixture) newQueuedJob(t *testing.T, accountID uuid.UUID) *db.Job {
	t.Helper()
	job := &db.Job{
		AccountID: accountID,
		Provider:  "native-rpc",
		Operation: "native-rpc.get_items_by_uploaded_date",
		DryRun:    true,
		Params:    db.JSONMap{},
		Status:    db.JobStatusQueued,
		Message:   "Queued",
	}
	require.NoError(t, f.jobs.Create(context.Background(), job))
	return job
}

func TestAccountCRUD(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	id := f.newAccount(t, "main")

	account, err := f.accounts.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "main", account.Label)
	assert.True(t, account.IsActive)

	account.EmailHint = "a***@gmail.com"
	require.NoError(t, f.accounts.Update(ctx, account))

	accounts, total, err := f.accounts.List(ctx, ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, accounts, 1)
	assert.Equal(t, "a***@gmail.com", accounts[0].EmailHint)

	require.NoError(t, f.accounts.Delete(ctx, id))
	_, err = f.accounts.GetByID(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.accounts.Delete(ctx, id), ErrNotFound)
}

func TestCookieUpsertClearsSession(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	id := f.newAccount(t, "main")

	jar, err := db.MarshalJSONValue([]map[string]string{{"name": "SID", "value": "abc"}})
	require.NoError(t, err)
	require.NoError(t, f.creds.UpsertCookies(ctx, id, jar))

	require.NoError(t, f.creds.UpsertSession(ctx, id, db.JSONMap{"at": "token"}))
	session, err := f.creds.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "token", session.State["at"])

	// A fresh cookie import invalidates the cached session.
	require.NoError(t, f.creds.UpsertCookies(ctx, id, jar))
	_, err = f.creds.GetSession(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	record, err := f.creds.GetCookies(ctx, id)
	require.NoError(t, err)
	assert.NotEmpty(t, record.CookieJar)
}

func TestUploadAuthUpsert(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	id := f.newAccount(t, "main")

	_, err := f.creds.GetUploadAuth(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.creds.UpsertUploadAuth(ctx, id, "Auth=first"))
	require.NoError(t, f.creds.UpsertUploadAuth(ctx, id, "Auth=second"))

	record, err := f.creds.GetUploadAuth(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, "Auth=second", record.AuthData)
}

func TestClaimJobsPerAccountFairness(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	accountA := f.newAccount(t, "a")
	accountB := f.newAccount(t, "b")

	for i := 0; i < 3; i++ {
		f.newQueuedJob(t, accountA)
	}
	f.newQueuedJob(t, accountB)

	claimed, err := f.jobs.ClaimJobs(ctx, 4, 1, nil)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	byAccount := map[uuid.UUID]int{}
	for _, job := range claimed {
		byAccount[job.AccountID]++
		assert.Equal(t, db.JobStatusRunning, job.Status)
		assert.NotNil(t, job.StartedAt)
		assert.Equal(t, "Worker claimed job", job.Message)
		assert.GreaterOrEqual(t, job.Progress, 0.01)
	}
	assert.Equal(t, 1, byAccount[accountA])
	assert.Equal(t, 1, byAccount[accountB])

	// Each claim writes an event inside the same transaction.
	events, err := f.jobs.ListEvents(ctx, claimed[0].ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Worker claimed job", events[0].Message)
}

func TestClaimJobsRespectsInFlight(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	accountA := f.newAccount(t, "a")
	accountB := f.newAccount(t, "b")

	f.newQueuedJob(t, accountA)
	jobB := f.newQueuedJob(t, accountB)

	claimed, err := f.jobs.ClaimJobs(ctx, 4, 1, map[uuid.UUID]int{accountA: 1})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, jobB.ID, claimed[0].ID)

	// The skipped job stays queued for the next tick.
	remaining, _, err := f.jobs.List(ctx, JobListOptions{Status: db.JobStatusQueued, Limit: 10})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, accountA, remaining[0].AccountID)
}

func TestClaimJobsHonorsLimit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	accountA := f.newAccount(t, "a")

	for i := 0; i < 5; i++ {
		f.newQueuedJob(t, accountA)
	}

	claimed, err := f.jobs.ClaimJobs(ctx, 2, 10, nil)
	require.NoError(t, err)
	assert.Len(t, claimed, 2)

	claimed, err = f.jobs.ClaimJobs(ctx, 0, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestJobListFilters(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	accountA := f.newAccount(t, "a")
	accountB := f.newAccount(t, "b")

	jobA := f.newQueuedJob(t, accountA)
	f.newQueuedJob(t, accountB)

	jobA.Status = db.JobStatusSucceeded
	require.NoError(t, f.jobs.Update(ctx, jobA))

	jobs, total, err := f.jobs.List(ctx, JobListOptions{AccountID: accountA, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, jobA.ID, jobs[0].ID)

	jobs, _, err = f.jobs.List(ctx, JobListOptions{Status: db.JobStatusQueued, Limit: 10})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, accountB, jobs[0].AccountID)

	counts, err := f.jobs.CountByStatus(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[db.JobStatusQueued])
	assert.EqualValues(t, 1, counts[db.JobStatusSucceeded])
}

func TestListEventsAfter(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	accountA := f.newAccount(t, "a")
	job := f.newQueuedJob(t, accountA)

	cutoff := time.Now().UTC().Add(-time.Minute)
	for _, msg := range []string{"first", "second", "third"} {
		require.NoError(t, f.jobs.AppendEvent(ctx, &db.JobEvent{JobID: job.ID, Level: "info", Message: msg}))
	}

	events, err := f.jobs.ListEventsAfter(ctx, cutoff, uuid.UUID{}, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "first", events[0].Message)
	assert.Equal(t, "second", events[1].Message)

	events, err = f.jobs.ListEventsAfter(ctx, time.Now().UTC().Add(time.Minute), uuid.UUID{}, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestListEventsAfterTieBreak(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	job := f.newQueuedJob(t, f.newAccount(t, "a"))

	// Two events sharing one created_at tick; the id cursor separates them.
	tick := time.Now().UTC().Truncate(time.Second)
	first := &db.JobEvent{JobID: job.ID, Level: "info", Message: "first"}
	first.CreatedAt = tick
	require.NoError(t, f.jobs.AppendEvent(ctx, first))
	second := &db.JobEvent{JobID: job.ID, Level: "info", Message: "second"}
	second.CreatedAt = tick
	require.NoError(t, f.jobs.AppendEvent(ctx, second))

	events, err := f.jobs.ListEventsAfter(ctx, tick, first.ID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "second", events[0].Message)

	events, err = f.jobs.ListEventsAfter(ctx, tick, second.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPruneEventsBefore(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	job := f.newQueuedJob(t, f.newAccount(t, "a"))

	old := &db.JobEvent{JobID: job.ID, Level: "info", Message: "old"}
	require.NoError(t, f.jobs.AppendEvent(ctx, old))
	require.NoError(t, f.jobs.AppendEvent(ctx, &db.JobEvent{JobID: job.ID, Level: "info", Message: "recent"}))

	removed, err := f.jobs.PruneEventsBefore(ctx, time.Now().UTC().Add(time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	removed, err = f.jobs.PruneEventsBefore(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestDeleteExpiredKeepsCommitted(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	accountA := f.newAccount(t, "a")

	expired := &db.PreviewAction{
		AccountID:        accountA,
		Kind:             db.PreviewKindExplorerAction,
		Action:           "favorite",
		QueryPayload:     db.JSONMap{},
		ActionParams:     db.JSONMap{},
		MatchedMediaKeys: db.StringList{"m1"},
		SampleItems:      db.JSONList{},
		Warnings:         db.StringList{},
		Status:           db.PreviewStatusPreviewed,
		ExpiresAt:        time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, f.previews.Create(ctx, expired))

	committed := &db.PreviewAction{
		AccountID:        accountA,
		Kind:             db.PreviewKindExplorerAction,
		Action:           "trash",
		QueryPayload:     db.JSONMap{},
		ActionParams:     db.JSONMap{},
		MatchedMediaKeys: db.StringList{"m2"},
		SampleItems:      db.JSONList{},
		Warnings:         db.StringList{},
		Status:           db.PreviewStatusCommitted,
		ExpiresAt:        time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, f.previews.Create(ctx, committed))

	removed, err := f.previews.DeleteExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	_, err = f.previews.GetByID(ctx, expired.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	kept, err := f.previews.GetByID(ctx, committed.ID)
	require.NoError(t, err)
	assert.Equal(t, db.PreviewStatusCommitted, kept.Status)
}
