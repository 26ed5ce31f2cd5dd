package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status represents the current state of a background job.
type Status string

// Possible job status values
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Common errors
var (
	ErrJobNotFound     = errors.New("job not found")
	ErrUnknownJobType  = errors.New("unknown job type")
	ErrQueueFull       = errors.New("job queue is full, try again later")
	ErrRunnerNotActive = errors.New("job runner is not running")
)

// Job represents a unit of background work to be processed.
type Job interface {
	// ID returns the job's unique identifier
	ID() uuid.UUID

	// Type returns the job type identifier used to rebuild the job after a restart
	Type() string

	// Payload returns the serialized job arguments
	Payload() []byte

	// Status returns the current job status
	Status() Status

	// Execute runs the job logic
	Execute(ctx context.Context) error
}

// Record is the persisted form of a job.
type Record struct {
	ID           uuid.UUID `json:"id"`
	Type         string    `json:"type"`
	Payload      []byte    `json:"-"`
	Status       Status    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store defines the interface for persisting jobs.
type Store interface {
	// SaveJob persists a new job in pending state.
	SaveJob(ctx context.Context, job Job) error

	// UpdateJobStatus updates the status and error message of a job.
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status Status, errorMsg string) error

	// GetJob returns a single job record.
	// Returns ErrJobNotFound if the job does not exist.
	GetJob(ctx context.Context, id uuid.UUID) (*Record, error)

	// GetPendingJobs retrieves all jobs with "pending" status.
	GetPendingJobs(ctx context.Context) ([]Record, error)

	// GetProcessingJobs retrieves jobs with "processing" status.
	// If olderThan is non-zero, only jobs that have been processing
	// longer than olderThan are returned.
	GetProcessingJobs(ctx context.Context, olderThan time.Duration) ([]Record, error)
}

// Factory rebuilds an executable job from its persisted record.
type Factory func(rec Record) (Job, error)

// Registry maps job types to the factories that rebuild them.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds the factory for jobType, replacing any earlier one.
func (r *Registry) Register(jobType string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[jobType] = f
}

// Build rebuilds the job stored in rec.
func (r *Registry) Build(rec Record) (Job, error) {
	r.mu.RLock()
	f, ok := r.factories[rec.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, rec.Type)
	}
	return f(rec)
}
