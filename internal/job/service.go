package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wanderplan/wanderplan-api/internal/domain"
	"github.com/wanderplan/wanderplan-api/internal/generation"
	"github.com/wanderplan/wanderplan-api/internal/platform/redis"
)

// StatusSnapshot is the client-facing view of a job's progress.
type StatusSnapshot struct {
	RequestID                 string            `json:"request_id"`
	JobType                   domain.JobType    `json:"job_type"`
	TripID                    string            `json:"trip_id"`
	Status                    domain.JobStatus  `json:"status"`
	Progress                  int               `json:"progress"`
	CurrentStep               string            `json:"current_step"`
	Stages                    []StageStatus     `json:"stages"`
	ErrorMessage              string            `json:"error_message,omitempty"`
	RetryCount                int               `json:"retry_count"`
	EstimatedRemainingSeconds *int64            `json:"estimated_remaining_seconds,omitempty"`
	CreatedAt                 time.Time         `json:"created_at"`
	StartedAt                 *time.Time        `json:"started_at,omitempty"`
	CompletedAt               *time.Time        `json:"completed_at,omitempty"`
}

// Service is the entry point the transport layer talks to. It validates
// requests, applies the model selection policy, creates jobs and hands
// them to the runner. Reads go through a short-TTL Redis snapshot so
// status polling does not hammer the job store.
//
// Duplicate submissions for the same trip each get their own job; the
// last pipeline to persist wins the active schedule.
type Service struct {
	lifecycle *LifecycleManager
	runner    *Runner
	selector  *generation.ModelSelector
	status    redis.StatusCache
	statusTTL time.Duration
	logger    *slog.Logger
}

// NewService creates a Service. status may be nil when no Redis is
// configured; all snapshot caching is then skipped.
func NewService(
	lifecycle *LifecycleManager,
	runner *Runner,
	selector *generation.ModelSelector,
	status redis.StatusCache,
	statusTTL time.Duration,
	logger *slog.Logger,
) *Service {
	return &Service{
		lifecycle: lifecycle,
		runner:    runner,
		selector:  selector,
		status:    status,
		statusTTL: statusTTL,
		logger:    logger.With("component", "job_service"),
	}
}

// EnqueueScheduleGeneration validates the request, creates a
// SCHEDULE_GENERATION job and submits it to the worker pool.
func (s *Service) EnqueueScheduleGeneration(
	ctx context.Context,
	req domain.ScheduleRequest,
) (domain.Job, error) {
	if err := req.Validate(); err != nil {
		return domain.Job{}, err
	}
	return s.enqueue(ctx, req.TripID, domain.JobTypeScheduleGeneration,
		s.selector.Select(req.RequireHighPerformance), req)
}

// EnqueueDayRegeneration validates the request, creates a
// DAY_SCHEDULE_REGENERATION job and submits it to the worker pool.
func (s *Service) EnqueueDayRegeneration(
	ctx context.Context,
	req domain.RegenerateDayRequest,
) (domain.Job, error) {
	if err := req.Validate(); err != nil {
		return domain.Job{}, err
	}
	return s.enqueue(ctx, req.TripID, domain.JobTypeDayScheduleRegeneration,
		s.selector.Select(req.RequireHighPerformance), req)
}

func (s *Service) enqueue(
	ctx context.Context,
	tripID uuid.UUID,
	jobType domain.JobType,
	aiModel string,
	req any,
) (domain.Job, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to encode request payload: %w", err)
	}

	job, err := s.lifecycle.CreateJob(ctx, tripID, jobType, aiModel, payload)
	if err != nil {
		return domain.Job{}, err
	}

	if err := s.runner.Submit(job.RequestID); err != nil {
		// The job stays QUEUED; recovery or a later sweep re-enqueues it.
		s.logger.WarnContext(ctx, "job created but not enqueued",
			"request_id", job.RequestID,
			"error", err)
	}

	return job, nil
}

// GetStatus returns the status snapshot for a job, served from the Redis
// snapshot cache when possible. Cache errors are logged and ignored.
func (s *Service) GetStatus(ctx context.Context, requestID string) (StatusSnapshot, error) {
	if s.status != nil {
		cached, ok, err := s.status.GetStatus(ctx, requestID)
		if err != nil {
			s.logger.WarnContext(ctx, "status cache read failed",
				"request_id", requestID,
				"error", err)
		} else if ok {
			var snapshot StatusSnapshot
			if err := json.Unmarshal(cached, &snapshot); err == nil {
				return snapshot, nil
			}
			s.logger.WarnContext(ctx, "discarding corrupt cached status snapshot",
				"request_id", requestID)
		}
	}

	job, err := s.lifecycle.GetJob(ctx, requestID)
	if err != nil {
		return StatusSnapshot{}, err
	}

	snapshot := s.snapshotFor(job)

	if s.status != nil && !job.IsTerminal() {
		encoded, err := json.Marshal(snapshot)
		if err == nil {
			if err := s.status.SetStatus(ctx, requestID, encoded, s.statusTTL); err != nil {
				s.logger.WarnContext(ctx, "status cache write failed",
					"request_id", requestID,
					"error", err)
			}
		}
	}

	return snapshot, nil
}

// GetResult returns the result payload of a completed job. Asking for the
// result of a job in any other state is a conflict.
func (s *Service) GetResult(ctx context.Context, requestID string) (json.RawMessage, error) {
	job, err := s.lifecycle.GetJob(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if job.Status != domain.JobStatusCompleted {
		return nil, fmt.Errorf("%w: job %s is %s, result available only once COMPLETED",
			domain.ErrConflict, requestID, job.Status)
	}

	return job.ResultPayload, nil
}

// Cancel requests cancellation of a queued or processing job. The running
// pipeline observes the new state at its next stage boundary.
func (s *Service) Cancel(ctx context.Context, requestID string) (domain.Job, error) {
	job, err := s.lifecycle.Cancel(ctx, requestID)
	if err != nil {
		return domain.Job{}, err
	}

	s.dropSnapshot(ctx, requestID)
	return job, nil
}

// Retry immediately re-queues a failed job with remaining attempts,
// bypassing the sweep's backoff window.
func (s *Service) Retry(ctx context.Context, requestID string) (domain.Job, error) {
	job, err := s.lifecycle.Retry(ctx, requestID)
	if err != nil {
		return domain.Job{}, err
	}

	s.dropSnapshot(ctx, requestID)

	if err := s.runner.Submit(job.RequestID); err != nil {
		s.logger.WarnContext(ctx, "retried job not enqueued",
			"request_id", job.RequestID,
			"error", err)
	}

	return job, nil
}

// snapshotFor builds the client-facing view of a job.
func (s *Service) snapshotFor(job domain.Job) StatusSnapshot {
	return StatusSnapshot{
		RequestID:                 job.RequestID,
		JobType:                   job.JobType,
		TripID:                    job.TripID.String(),
		Status:                    job.Status,
		Progress:                  job.Progress,
		CurrentStep:               job.CurrentStep,
		Stages:                    ClassifyStages(job.JobType, job.Progress),
		ErrorMessage:              job.ErrorMessage,
		RetryCount:                job.RetryCount,
		EstimatedRemainingSeconds: job.EstimatedRemainingSeconds,
		CreatedAt:                 job.CreatedAt,
		StartedAt:                 job.StartedAt,
		CompletedAt:               job.CompletedAt,
	}
}

// dropSnapshot removes a cached status snapshot so clients observe a
// transition promptly. Best-effort.
func (s *Service) dropSnapshot(ctx context.Context, requestID string) {
	if s.status == nil {
		return
	}
	if err := s.status.DeleteStatus(ctx, requestID); err != nil {
		s.logger.WarnContext(ctx, "status cache delete failed",
			"request_id", requestID,
			"error", err)
	}
}
