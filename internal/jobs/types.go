package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned by JobStore lookups for unknown ids.
var ErrJobNotFound = errors.New("job not found")

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeRefreshPrices refreshes the market prices of a user's holdings.
	JobTypeRefreshPrices JobType = "refresh_prices"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// Trigger records who asked for a job.
type Trigger string

const (
	TriggerAPI      Trigger = "api"
	TriggerSchedule Trigger = "schedule"
	TriggerCLI      Trigger = "cli"
)

// RefreshPricesJob asks for fresh quotes for every holding of one user.
type RefreshPricesJob struct {
	JobID   string  `json:"job_id"`
	UserID  string  `json:"user_id"`
	Trigger Trigger `json:"trigger"`

	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Updated is the number of holdings whose price changed.
	Updated int `json:"updated"`

	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	// MaxRetries of zero means the job is attempted once.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *RefreshPricesJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *RefreshPricesJob) GetType() JobType {
	return JobTypeRefreshPrices
}

// GetStatus implements the Job interface.
func (j *RefreshPricesJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs.
type Publisher interface {
	PublishRefreshPrices(ctx context.Context, job *RefreshPricesJob) error
	Close() error
}

// Consumer runs queued jobs.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the job for retry
// while retries remain.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state so clients can poll it.
type JobStore interface {
	SaveJob(ctx context.Context, job *RefreshPricesJob) error
	GetJob(ctx context.Context, jobID string) (*RefreshPricesJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*RefreshPricesJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	UserID string
	Status JobStatus
	Limit  int
	Offset int
}
