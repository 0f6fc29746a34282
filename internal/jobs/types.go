package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/sheetledger/internal/audit"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeDeliverAudit delivers a batch of write audit entries to the warehouse.
	JobTypeDeliverAudit JobType = "deliver_audit"
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

// DefaultMaxRetries is used when a job does not set MaxRetries.
const DefaultMaxRetries = 3

// ErrQueueFull is returned by a Publisher that dropped a job because its
// buffer was full.
var ErrQueueFull = errors.New("queue is full")

// AuditJob carries the audit entries produced by one ledger operation.
type AuditJob struct {
	JobID   string        `json:"job_id"`
	Owner   string        `json:"owner"`
	SheetID string        `json:"sheet_id"`
	Entries []audit.Entry `json:"entries"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
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
func (j *AuditJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *AuditJob) GetType() JobType {
	return JobTypeDeliverAudit
}

// GetStatus implements the Job interface.
func (j *AuditJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs.
type Publisher interface {
	// PublishAudit enqueues an audit delivery job.
	PublishAudit(ctx context.Context, job *AuditJob) error

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
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state so it can be inspected through the API.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *AuditJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*AuditJob, error)

	// ListJobs retrieves jobs with optional filtering, oldest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*AuditJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Owner   string
	SheetID string
	Status  JobStatus
	Limit   int
	Offset  int
}
