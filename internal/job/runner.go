package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wanderplan/wanderplan-api/internal/domain"
)

// ErrQueueFull is returned by Submit when the in-memory queue has no
// capacity left. Callers should surface this as backpressure rather than
// blocking the request path.
var ErrQueueFull = errors.New("job queue is full")

// RunnerConfig holds the tunables for the worker pool.
type RunnerConfig struct {
	WorkerCount int
	QueueSize   int
}

// Runner owns the in-memory job queue and the worker pool that drains it.
// Submitted jobs are identified by request ID; the workers re-load job
// state from the store, so a restart loses only the queue, not the jobs.
type Runner struct {
	lifecycle *LifecycleManager
	pipeline  *PipelineOrchestrator
	queue     chan string
	workers   int
	wg        sync.WaitGroup
	logger    *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewRunner creates a Runner. Worker count and queue size fall back to
// sane minimums when unset.
func NewRunner(lifecycle *LifecycleManager, pipeline *PipelineOrchestrator, cfg RunnerConfig, logger *slog.Logger) *Runner {
	workers := cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = 100
	}

	return &Runner{
		lifecycle: lifecycle,
		pipeline:  pipeline,
		queue:     make(chan string, queueSize),
		workers:   workers,
		logger:    logger.With("component", "job_runner"),
	}
}

// Start launches the worker pool. ctx bounds the lifetime of the workers;
// cancelling it initiates the same drain as Stop.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("runner already started")
	}
	r.started = true
	r.mu.Unlock()

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}

	r.logger.InfoContext(ctx, "job runner started",
		"workers", r.workers,
		"queue_size", cap(r.queue))
	return nil
}

// Submit enqueues a job for execution. It never blocks; a full queue is
// reported to the caller. The lock is held across the send so a Submit
// can never race the close in Stop.
func (r *Runner) Submit(requestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return errors.New("runner is stopped")
	}

	select {
	case r.queue <- requestID:
		return nil
	default:
		return fmt.Errorf("%w: capacity %d", ErrQueueFull, cap(r.queue))
	}
}

// Stop closes the queue and waits for in-flight jobs to finish. In-flight
// pipelines still observe cancellation through their own status checks;
// Stop only guarantees no new work is picked up.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("job runner stopped")
}

// Recover re-seeds the queue after a restart. QUEUED jobs are re-enqueued
// as-is. Jobs stranded in PROCESSING are failed with an explanatory
// message, which makes them eligible for the retry sweep.
func (r *Runner) Recover(ctx context.Context) error {
	jobs, err := r.lifecycle.ListInProgress(ctx)
	if err != nil {
		return fmt.Errorf("failed to list in-progress jobs for recovery: %w", err)
	}

	var requeued, failed int
	for _, j := range jobs {
		switch j.Status {
		case domain.JobStatusQueued:
			if err := r.Submit(j.RequestID); err != nil {
				r.logger.WarnContext(ctx, "could not requeue job during recovery",
					"request_id", j.RequestID,
					"error", err)
				continue
			}
			requeued++
		case domain.JobStatusProcessing:
			if _, err := r.lifecycle.Fail(ctx, j.RequestID, "processing interrupted by service restart"); err != nil {
				r.logger.WarnContext(ctx, "could not fail stranded job during recovery",
					"request_id", j.RequestID,
					"error", err)
				continue
			}
			failed++
		}
	}

	r.logger.InfoContext(ctx, "job recovery finished",
		"requeued", requeued,
		"failed_stranded", failed)
	return nil
}

func (r *Runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	logger := r.logger.With("worker_id", id)

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker shutting down", "reason", ctx.Err())
			return
		case requestID, ok := <-r.queue:
			if !ok {
				return
			}
			r.runOne(ctx, logger, requestID)
		}
	}
}

// runOne executes a single job and contains its panics so one bad job
// cannot take down the worker.
func (r *Runner) runOne(ctx context.Context, logger *slog.Logger, requestID string) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorContext(ctx, "panic while running job",
				"request_id", requestID,
				"panic", rec)
			if _, err := r.lifecycle.Fail(ctx, requestID, fmt.Sprintf("internal error: %v", rec)); err != nil {
				logger.ErrorContext(ctx, "could not record panic failure",
					"request_id", requestID,
					"error", err)
			}
		}
	}()

	if err := r.pipeline.Run(ctx, requestID); err != nil {
		logger.ErrorContext(ctx, "pipeline run failed",
			"request_id", requestID,
			"error", err)
	}
}
