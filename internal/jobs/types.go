package jobs

import (
	"context"
	"errors"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeManualSync syncs every enabled account of one bank connection.
	JobTypeManualSync JobType = "transactions_manual_sync"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the sync ran to the end. Accounts may
	// still have failed; see Result.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// Trigger records what enqueued a job.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

var (
	// ErrQueueClosed is returned when publishing to or starting a stopped queue.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrJobNotFound is returned by a JobStore for an unknown job id.
	ErrJobNotFound = errors.New("job not found")
)

// SyncPayload is the event payload of a sync job.
type SyncPayload struct {
	ConnectionID string `json:"connectionId" validate:"required"`
	TeamID       string `json:"teamId" validate:"required"`
}

// SyncResult is the outcome of a finished sync, kept on the job for status
// queries.
type SyncResult struct {
	Success            bool   `json:"success"`
	TotalUpserts       int    `json:"total_upserts"`
	TotalFailedUpserts int    `json:"total_failed_upserts"`
	FailedAccounts     int    `json:"failed_accounts"`
	NewTransactions    int    `json:"new_transactions"`
	ErrorClass         string `json:"error_class,omitempty"`
}

// SyncConnectionJob represents a job to sync one bank connection.
type SyncConnectionJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Payload identifies the connection and its team.
	Payload SyncPayload `json:"payload"`

	// Trigger is what enqueued the job.
	Trigger Trigger `json:"trigger"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// Result is set once the sync has run.
	Result *SyncResult `json:"result,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *SyncConnectionJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *SyncConnectionJob) GetType() JobType {
	return JobTypeManualSync
}

// GetStatus implements the Job interface.
func (j *SyncConnectionJob) GetStatus() JobStatus {
	return j.Status
}

// Clone returns a deep copy of the job.
func (j *SyncConnectionJob) Clone() *SyncConnectionJob {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	return &c
}

// Publisher defines the interface for publishing jobs to a queue.
// This abstraction allows for different queue implementations (in-memory, Cloud Tasks, Pub/Sub).
type Publisher interface {
	// PublishSync publishes a connection sync job.
	PublishSync(ctx context.Context, job *SyncConnectionJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job *SyncConnectionJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *SyncConnectionJob) error

	// GetJob retrieves a job by ID. Unknown ids return ErrJobNotFound.
	GetJob(ctx context.Context, jobID string) (*SyncConnectionJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*SyncConnectionJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// ConnectionID filters jobs by bank connection.
	ConnectionID string

	// TeamID filters jobs by team.
	TeamID string

	// Statuses keeps jobs in any of the given states. Empty keeps all.
	Statuses []JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
