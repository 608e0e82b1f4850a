package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/bank-sync/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var payload = jobs.SyncPayload{ConnectionID: "conn-1", TeamID: "team-1"}

func waitForStatus(t *testing.T, store *Store, jobID string, status jobs.JobStatus) *jobs.SyncConnectionJob {
	t.Helper()
	var job *jobs.SyncConnectionJob
	require.Eventually(t, func() bool {
		got, err := store.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		job = got
		return got.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(store, QueueOptions{Workers: 2})
	ctx := context.Background()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.SyncConnectionJob) error {
		job.Result = &jobs.SyncResult{Success: true, TotalUpserts: 4}
		return nil
	}))
	defer q.Close()

	job := &jobs.SyncConnectionJob{Payload: payload}
	require.NoError(t, q.PublishSync(ctx, job))
	require.NotEmpty(t, job.JobID)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, jobs.TriggerManual, done.Trigger)
	assert.Equal(t, 4, done.Result.TotalUpserts)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
}

func TestQueue_RetriesThenFails(t *testing.T) {
	store := NewStore()
	q := NewQueue(store, QueueOptions{MaxRetries: 2, RetryBackoff: time.Millisecond})
	ctx := context.Background()
	var calls atomic.Int32

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.SyncConnectionJob) error {
		calls.Add(1)
		return errors.New("store down")
	}))
	defer q.Close()

	job := &jobs.SyncConnectionJob{Payload: payload}
	require.NoError(t, q.PublishSync(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2, failed.RetryCount)
	assert.Equal(t, "store down", failed.Error)
}

func TestQueue_RetrySucceeds(t *testing.T) {
	store := NewStore()
	q := NewQueue(store, QueueOptions{RetryBackoff: time.Millisecond})
	ctx := context.Background()
	var calls atomic.Int32

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.SyncConnectionJob) error {
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	}))
	defer q.Close()

	job := &jobs.SyncConnectionJob{Payload: payload}
	require.NoError(t, q.PublishSync(ctx, job))

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	assert.Equal(t, 1, done.RetryCount)
	assert.Empty(t, done.Error)
}

func TestQueue_HandlerPanicFailsJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(store, QueueOptions{MaxRetries: -1})
	ctx := context.Background()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.SyncConnectionJob) error {
		panic("nil account")
	}))
	defer q.Close()

	job := &jobs.SyncConnectionJob{Payload: payload}
	require.NoError(t, q.PublishSync(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Contains(t, failed.Error, "nil account")
}

func TestQueue_RejectsInvalidPayload(t *testing.T) {
	q := NewQueue(nil, QueueOptions{})
	defer q.Close()

	err := q.PublishSync(context.Background(), &jobs.SyncConnectionJob{})

	assert.ErrorContains(t, err, "connectionId")
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(nil, QueueOptions{})
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.PublishSync(context.Background(), &jobs.SyncConnectionJob{Payload: payload}), jobs.ErrQueueClosed)
	assert.ErrorIs(t, q.Start(context.Background(), nil), jobs.ErrQueueClosed)
}

func TestQueue_StartTwice(t *testing.T) {
	q := NewQueue(nil, QueueOptions{})
	defer q.Close()
	handler := func(ctx context.Context, job *jobs.SyncConnectionJob) error { return nil }

	require.NoError(t, q.Start(context.Background(), handler))
	assert.Error(t, q.Start(context.Background(), handler))
}
