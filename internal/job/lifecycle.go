// Package job implements the asynchronous generation job subsystem: the
// lifecycle state machine, the multi-stage pipeline orchestrator, the
// worker runner and the retry/cleanup sweeps.
package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wanderplan/wanderplan-api/internal/domain"
	"github.com/wanderplan/wanderplan-api/internal/store"
)

// LifecycleManager owns every job state transition. It loads the current
// snapshot, applies the matching pure transition from the domain package,
// and persists the result. All invariants live in the transitions; this
// type only adds persistence and logging.
type LifecycleManager struct {
	jobs     store.JobStore
	maxRetry int
	logger   *slog.Logger
}

// NewLifecycleManager creates a LifecycleManager. maxRetry overrides the
// domain default retry budget for newly created jobs when positive.
func NewLifecycleManager(jobs store.JobStore, maxRetry int, logger *slog.Logger) *LifecycleManager {
	return &LifecycleManager{
		jobs:     jobs,
		maxRetry: maxRetry,
		logger:   logger.With("component", "job_lifecycle"),
	}
}

// CreateJob creates and persists a new QUEUED job. No external side
// effects beyond the insert.
func (m *LifecycleManager) CreateJob(
	ctx context.Context,
	tripID uuid.UUID,
	jobType domain.JobType,
	aiModel string,
	payload json.RawMessage,
) (domain.Job, error) {
	job, err := domain.NewJob(tripID, jobType, aiModel, payload)
	if err != nil {
		return domain.Job{}, err
	}

	if m.maxRetry > 0 {
		job.MaxRetry = m.maxRetry
	}

	if err := m.jobs.CreateJob(ctx, job); err != nil {
		return domain.Job{}, fmt.Errorf("failed to persist new job: %w", err)
	}

	m.logger.InfoContext(ctx, "job created",
		"request_id", job.RequestID,
		"job_type", job.JobType,
		"trip_id", job.TripID)

	return job, nil
}

// GetJob returns the current snapshot for a request ID.
func (m *LifecycleManager) GetJob(ctx context.Context, requestID string) (domain.Job, error) {
	return m.jobs.GetJob(ctx, requestID)
}

// Start transitions a job from QUEUED to PROCESSING.
func (m *LifecycleManager) Start(ctx context.Context, requestID string) (domain.Job, error) {
	return m.transition(ctx, requestID, func(j domain.Job) (domain.Job, error) {
		return j.Start(time.Now())
	})
}

// UpdateProgress records a progress checkpoint on a PROCESSING job.
func (m *LifecycleManager) UpdateProgress(
	ctx context.Context,
	requestID string,
	progress int,
	step string,
) (domain.Job, error) {
	return m.transition(ctx, requestID, func(j domain.Job) (domain.Job, error) {
		return j.WithProgress(progress, step, time.Now())
	})
}

// Complete transitions a job to COMPLETED with its result payload.
func (m *LifecycleManager) Complete(
	ctx context.Context,
	requestID string,
	result json.RawMessage,
) (domain.Job, error) {
	return m.transition(ctx, requestID, func(j domain.Job) (domain.Job, error) {
		return j.Complete(result, time.Now())
	})
}

// Fail transitions a job to FAILED, recording the reason.
func (m *LifecycleManager) Fail(
	ctx context.Context,
	requestID string,
	reason string,
) (domain.Job, error) {
	return m.transition(ctx, requestID, func(j domain.Job) (domain.Job, error) {
		return j.Fail(reason, time.Now())
	})
}

// Cancel transitions a QUEUED or PROCESSING job to CANCELLED. The pipeline
// observes the cancellation cooperatively at its next stage boundary.
func (m *LifecycleManager) Cancel(ctx context.Context, requestID string) (domain.Job, error) {
	return m.transition(ctx, requestID, func(j domain.Job) (domain.Job, error) {
		return j.Cancel(time.Now())
	})
}

// Retry moves an eligible FAILED job back to QUEUED.
func (m *LifecycleManager) Retry(ctx context.Context, requestID string) (domain.Job, error) {
	return m.transition(ctx, requestID, func(j domain.Job) (domain.Job, error) {
		return j.Retry()
	})
}

// ListInProgress returns jobs in the QUEUED or PROCESSING state.
func (m *LifecycleManager) ListInProgress(ctx context.Context) ([]domain.Job, error) {
	return m.jobs.ListInProgress(ctx)
}

// ListRetryCandidates returns FAILED jobs older than the backoff window
// with remaining retry budget.
func (m *LifecycleManager) ListRetryCandidates(
	ctx context.Context,
	backoffWindow time.Duration,
) ([]domain.Job, error) {
	return m.jobs.ListRetryCandidates(ctx, backoffWindow)
}

// CleanupOlderThan deletes terminal jobs older than age, returning the
// number removed.
func (m *LifecycleManager) CleanupOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	return m.jobs.DeleteTerminalOlderThan(ctx, age)
}

// transition applies a pure domain transition to the stored snapshot and
// persists the result. Conflicts surface unwrapped so callers can map
// them; storage failures are wrapped.
func (m *LifecycleManager) transition(
	ctx context.Context,
	requestID string,
	apply func(domain.Job) (domain.Job, error),
) (domain.Job, error) {
	job, err := m.jobs.GetJob(ctx, requestID)
	if err != nil {
		return domain.Job{}, err
	}

	next, err := apply(job)
	if err != nil {
		return domain.Job{}, err
	}

	if err := m.jobs.UpdateJob(ctx, next); err != nil {
		return domain.Job{}, fmt.Errorf("failed to persist job transition: %w", err)
	}

	m.logger.DebugContext(ctx, "job transition",
		"request_id", requestID,
		"from", job.Status,
		"to", next.Status,
		"progress", next.Progress)

	return next, nil
}
