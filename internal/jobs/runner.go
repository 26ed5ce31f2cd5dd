package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunnerConfig holds configuration for the job runner.
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process jobs
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory job queue
	QueueSize int

	// StuckJobAge defines how long a job can be in processing state
	// before it's considered stuck and reset
	StuckJobAge time.Duration

	// StuckJobCheckInterval defines how often to check for stuck jobs.
	// If zero, defaults to 5 minutes
	StuckJobCheckInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:           2,
		QueueSize:             100,
		StuckJobAge:           30 * time.Minute,
		StuckJobCheckInterval: 5 * time.Minute,
	}
}

// Observer is notified when a job finishes.
type Observer interface {
	JobFinished(jobType string, status Status, elapsed time.Duration)
}

// Runner manages background job processing: a buffered queue, a fixed
// worker pool, recovery of unfinished jobs on start and a monitor that
// requeues jobs stuck in processing.
type Runner struct {
	store    Store
	registry *Registry
	queue    chan Job
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	config   RunnerConfig
	logger   *slog.Logger

	mu       sync.RWMutex
	running  bool
	observer Observer
}

// NewRunner creates a new Runner. registry rebuilds jobs recovered from store.
func NewRunner(store Store, registry *Registry, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.StuckJobCheckInterval == 0 {
		config.StuckJobCheckInterval = 5 * time.Minute
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = NewRegistry()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Runner{
		store:    store,
		registry: registry,
		queue:    make(chan Job, config.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
		config:   config,
		logger:   logger.With(slog.String("component", "job_runner")),
	}
}

// SetObserver installs o to be notified of finished jobs.
func (r *Runner) SetObserver(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// Submit persists job and adds it to the queue.
// Before Start the job stays pending until recovery queues it. A job that
// does not fit in the queue is marked failed and ErrQueueFull is returned,
// so it never runs after the caller was told it was rejected.
func (r *Runner) Submit(ctx context.Context, job Job) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.store.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	if !r.running {
		return nil
	}

	select {
	case r.queue <- job:
		return nil
	default:
	}

	if err := r.store.UpdateJobStatus(context.WithoutCancel(ctx), job.ID(), StatusFailed, ErrQueueFull.Error()); err != nil {
		r.logger.Error("failed to mark rejected job", "job_id", job.ID(), "error", err)
	}
	return ErrQueueFull
}

// Status returns the persisted record of the job with id.
func (r *Runner) Status(ctx context.Context, id uuid.UUID) (*Record, error) {
	return r.store.GetJob(ctx, id)
}

// Start recovers unfinished jobs and starts the workers and the stuck-job monitor.
func (r *Runner) Start() error {
	// Submit waits while recovery runs so a new job is queued exactly once.
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	if err := r.Recover(r.ctx); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}
	r.running = true

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.stuckJobMonitor()

	return nil
}

// Stop cancels in-flight work and waits for workers to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

// Recover requeues pending jobs and resets jobs left in processing by a crash.
func (r *Runner) Recover(ctx context.Context) error {
	pending, err := r.store.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending jobs: %w", err)
	}

	processing, err := r.store.GetProcessingJobs(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing jobs: %w", err)
	}

	r.logger.Info("recovering unfinished jobs",
		"pending_count", len(pending),
		"processing_count", len(processing))

	for _, rec := range pending {
		r.requeue(ctx, rec)
	}

	for _, rec := range processing {
		if err := r.store.UpdateJobStatus(ctx, rec.ID, StatusPending, "reset after recovery"); err != nil {
			r.logger.Error("failed to reset processing job status",
				"job_id", rec.ID,
				"job_type", rec.Type,
				"error", err)
			continue
		}
		r.requeue(ctx, rec)
	}

	return nil
}

// requeue rebuilds rec through the registry and puts it on the queue.
// Records whose type cannot be rebuilt are marked failed.
func (r *Runner) requeue(ctx context.Context, rec Record) {
	job, err := r.registry.Build(rec)
	if err != nil {
		r.logger.Error("failed to rebuild job", "job_id", rec.ID, "job_type", rec.Type, "error", err)
		if updateErr := r.store.UpdateJobStatus(ctx, rec.ID, StatusFailed, err.Error()); updateErr != nil {
			r.logger.Error("failed to mark job failed", "job_id", rec.ID, "error", updateErr)
		}
		return
	}

	select {
	case r.queue <- job:
	default:
		r.logger.Error("failed to requeue job, queue is full",
			"job_id", rec.ID,
			"job_type", rec.Type)
	}
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "worker_id", id)
			return

		case job := <-r.queue:
			r.processJob(job, id)
		}
	}
}

// processJob handles execution of a single job.
func (r *Runner) processJob(job Job, workerID int) {
	ctx := r.ctx
	log := r.logger.With(
		"job_id", job.ID(),
		"job_type", job.Type(),
		"worker_id", workerID,
	)

	if err := r.store.UpdateJobStatus(ctx, job.ID(), StatusProcessing, ""); err != nil {
		log.Error("failed to update job status to processing", "error", err)
		return
	}

	log.Info("processing job")
	start := time.Now()

	status := StatusCompleted
	message := ""
	if err := job.Execute(ctx); err != nil {
		log.Error("job execution failed", "error", err)
		status = StatusFailed
		message = err.Error()
	} else {
		log.Info("job completed successfully", "duration_ms", time.Since(start).Milliseconds())
	}

	// Record the outcome even when the runner is shutting down.
	if err := r.store.UpdateJobStatus(context.WithoutCancel(ctx), job.ID(), status, message); err != nil {
		log.Error("failed to update job status", "status", status, "error", err)
	}

	r.mu.RLock()
	observer := r.observer
	r.mu.RUnlock()
	if observer != nil {
		observer.JobFinished(job.Type(), status, time.Since(start))
	}
}

// stuckJobMonitor periodically resets jobs that have been processing for too long.
func (r *Runner) stuckJobMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckJobCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return

		case <-ticker.C:
			r.resetStuckJobs(r.ctx)
		}
	}
}

func (r *Runner) resetStuckJobs(ctx context.Context) {
	stuck, err := r.store.GetProcessingJobs(ctx, r.config.StuckJobAge)
	if err != nil {
		r.logger.Error("failed to check for stuck jobs", "error", err)
		return
	}
	if len(stuck) == 0 {
		return
	}

	r.logger.Info("found stuck jobs", "count", len(stuck))
	for _, rec := range stuck {
		if err := r.store.UpdateJobStatus(ctx, rec.ID, StatusPending,
			"reset after being stuck in processing state"); err != nil {
			r.logger.Error("failed to reset stuck job status",
				"job_id", rec.ID,
				"job_type", rec.Type,
				"error", err)
			continue
		}
		r.requeue(ctx, rec)
	}
}
