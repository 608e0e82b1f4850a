package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/bank-sync/internal/jobs"
	"github.com/dvloznov/bank-sync/internal/logger"
	"github.com/google/uuid"
)

const (
	DefaultBufferSize   = 100
	DefaultWorkers      = 4
	DefaultMaxRetries   = 3
	DefaultRetryBackoff = time.Second
)

// QueueOptions configures a Queue. Zero values take the defaults;
// a negative MaxRetries disables retries.
type QueueOptions struct {
	BufferSize   int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
}

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// This implementation is suitable for single-instance deployments and testing.
type Queue struct {
	jobChan   chan *jobs.SyncConnectionJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool
	started   bool

	workers      int
	maxRetries   int
	retryBackoff time.Duration
	now          func() time.Time
}

// NewQueue creates a new in-memory job queue. store may be nil.
func NewQueue(store jobs.JobStore, opts QueueOptions) *Queue {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	switch {
	case opts.MaxRetries == 0:
		opts.MaxRetries = DefaultMaxRetries
	case opts.MaxRetries < 0:
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	return &Queue{
		jobChan:      make(chan *jobs.SyncConnectionJob, opts.BufferSize),
		closeChan:    make(chan struct{}),
		store:        store,
		workers:      opts.Workers,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
		now:          time.Now,
	}
}

// PublishSync implements the Publisher interface.
// It validates and enqueues a sync job for asynchronous processing.
func (q *Queue) PublishSync(ctx context.Context, job *jobs.SyncConnectionJob) error {
	if err := jobs.ValidatePayload(job.Payload); err != nil {
		return fmt.Errorf("PublishSync: %w", err)
	}

	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return jobs.ErrQueueClosed
	}

	// Generate job ID if not provided
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.Trigger == "" {
		job.Trigger = jobs.TriggerManual
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.maxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("PublishSync: failed to save job: %w", err)
		}
	}

	// Enqueue job with context cancellation support
	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return jobs.ErrQueueClosed
	}
}

// Start implements the Consumer interface.
// It starts the configured number of workers, each calling handler for one
// job at a time.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return jobs.ErrQueueClosed
	}
	if q.started {
		return fmt.Errorf("Start: queue already started")
	}
	q.started = true

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

// worker processes jobs from the queue.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.SyncConnectionJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx)

	job.Status = jobs.JobStatusRunning
	now := q.now()
	job.StartedAt = &now
	q.save(ctx, job)

	err := q.runHandler(ctx, job, handler)

	completedAt := q.now()
	job.CompletedAt = &completedAt

	if err == nil {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.save(ctx, job)
		return
	}

	job.Error = err.Error()
	if job.RetryCount >= job.MaxRetries || ctx.Err() != nil {
		job.Status = jobs.JobStatusFailed
		q.save(ctx, job)
		return
	}

	job.RetryCount++
	job.Status = jobs.JobStatusRetrying
	q.save(ctx, job)

	// Re-enqueue with exponential backoff
	backoff := q.retryBackoff << uint(job.RetryCount-1)
	log.Warn().
		Err(err).
		Str("job_id", job.JobID).
		Int("retry_count", job.RetryCount).
		Dur("backoff", backoff).
		Msg("Sync job failed, retrying")

	retry := job.Clone()
	time.AfterFunc(backoff, func() {
		retry.Status = jobs.JobStatusPending
		retry.StartedAt = nil
		retry.CompletedAt = nil
		if err := q.PublishSync(ctx, retry); err != nil {
			retry.Status = jobs.JobStatusFailed
			retry.Error = fmt.Sprintf("%s; retry not enqueued: %v", retry.Error, err)
			q.save(context.WithoutCancel(ctx), retry)
		}
	})
}

// runHandler turns a handler panic into a job error.
func (q *Queue) runHandler(ctx context.Context, job *jobs.SyncConnectionJob, handler jobs.JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (q *Queue) save(ctx context.Context, job *jobs.SyncConnectionJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("job_id", job.JobID).
			Msg("Failed to save job state")
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("Stop: waiting for workers: %w", ctx.Err())
	}
}

// Close implements the Publisher interface.
// It closes the queue and releases resources.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

// Ensure Queue implements both Publisher and Consumer interfaces.
var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
