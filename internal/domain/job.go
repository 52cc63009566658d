package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a generation job.
type JobStatus string

// Possible job status values
const (
	JobStatusQueued     JobStatus = "QUEUED"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusCancelled  JobStatus = "CANCELLED"
)

// JobType identifies the kind of generation work a job performs.
type JobType string

// Supported job types
const (
	JobTypeScheduleGeneration      JobType = "SCHEDULE_GENERATION"
	JobTypeDayScheduleRegeneration JobType = "DAY_SCHEDULE_REGENERATION"
)

// DefaultMaxRetry is the retry budget assigned to newly created jobs.
const DefaultMaxRetry = 3

// InitialStep is the step label a job carries before its pipeline has
// reported any progress, and again after a retry resets it.
const InitialStep = "Queued"

// Job is one tracked unit of asynchronous AI-backed generation work.
//
// Job values are immutable snapshots: lifecycle transitions are pure
// functions that validate the current state and return a new snapshot,
// leaving the receiver untouched. Callers persist the returned value.
type Job struct {
	RequestID                 string          `json:"request_id"`
	JobType                   JobType         `json:"job_type"`
	TripID                    uuid.UUID       `json:"trip_id"`
	AIModel                   string          `json:"ai_model"`
	Status                    JobStatus       `json:"status"`
	Progress                  int             `json:"progress"`
	CurrentStep               string          `json:"current_step"`
	RequestPayload            json.RawMessage `json:"request_payload,omitempty"`
	ResultPayload             json.RawMessage `json:"result_payload,omitempty"`
	ErrorMessage              string          `json:"error_message,omitempty"`
	RetryCount                int             `json:"retry_count"`
	MaxRetry                  int             `json:"max_retry"`
	EstimatedRemainingSeconds *int64          `json:"estimated_remaining_seconds,omitempty"`
	StartedAt                 *time.Time      `json:"started_at,omitempty"`
	CompletedAt               *time.Time      `json:"completed_at,omitempty"`
	CreatedAt                 time.Time       `json:"created_at"`
}

// NewJob creates a new Job in the QUEUED state with a freshly generated
// request ID. Returns an error if validation fails.
func NewJob(tripID uuid.UUID, jobType JobType, aiModel string, payload json.RawMessage) (Job, error) {
	now := time.Now().UTC()
	job := Job{
		RequestID:      newRequestID(jobType, tripID, now),
		JobType:        jobType,
		TripID:         tripID,
		AIModel:        aiModel,
		Status:         JobStatusQueued,
		Progress:       0,
		CurrentStep:    InitialStep,
		RequestPayload: payload,
		RetryCount:     0,
		MaxRetry:       DefaultMaxRetry,
		CreatedAt:      now,
	}

	if err := job.Validate(); err != nil {
		return Job{}, err
	}

	return job, nil
}

// newRequestID builds a globally unique request identifier from the job
// type, trip ID, creation timestamp and a random suffix.
func newRequestID(jobType JobType, tripID uuid.UUID, now time.Time) string {
	suffix := strings.Split(uuid.New().String(), "-")[0]
	return fmt.Sprintf("%s-%s-%d-%s",
		strings.ToLower(string(jobType)), tripID, now.UnixMilli(), suffix)
}

// Validate checks if the Job has valid data.
func (j Job) Validate() error {
	if j.RequestID == "" {
		return fmt.Errorf("%w: request ID cannot be empty", ErrValidation)
	}

	if j.TripID == uuid.Nil {
		return ErrEmptyTripID
	}

	if !isValidJobType(j.JobType) {
		return ErrInvalidJobType
	}

	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	if j.Progress < 0 || j.Progress > 100 {
		return ErrInvalidProgress
	}

	if j.RetryCount > j.MaxRetry {
		return fmt.Errorf("%w: retry count %d exceeds budget %d",
			ErrValidation, j.RetryCount, j.MaxRetry)
	}

	return nil
}

// IsTerminal reports whether the job has reached a final state.
// FAILED is terminal for the pipeline but may still re-enter QUEUED
// through Retry.
func (j Job) IsTerminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Start transitions the job from QUEUED to PROCESSING and stamps
// StartedAt. Returns ErrConflict if the job is not queued.
func (j Job) Start(now time.Time) (Job, error) {
	if j.Status != JobStatusQueued {
		return j, fmt.Errorf("%w: cannot start job in status %s", ErrConflict, j.Status)
	}

	started := now.UTC()
	j.Status = JobStatusProcessing
	j.StartedAt = &started
	return j, nil
}

// WithProgress records a progress checkpoint on a PROCESSING job and
// recomputes the remaining-time estimate. The estimate is left unset at
// progress zero since there is no elapsed-to-done ratio to extrapolate.
func (j Job) WithProgress(progress int, step string, now time.Time) (Job, error) {
	if j.Status != JobStatusProcessing {
		return j, fmt.Errorf("%w: cannot update progress in status %s", ErrConflict, j.Status)
	}

	if progress < 0 || progress > 100 {
		return j, ErrInvalidProgress
	}

	j.Progress = progress
	j.CurrentStep = step

	if progress > 0 && j.StartedAt != nil {
		elapsed := now.UTC().Sub(*j.StartedAt).Seconds()
		remaining := int64(elapsed * float64(100-progress) / float64(progress))
		j.EstimatedRemainingSeconds = &remaining
	}

	return j, nil
}

// Complete transitions the job to COMPLETED, storing the result payload
// and stamping CompletedAt. Returns ErrConflict if the job is already
// terminal.
func (j Job) Complete(result json.RawMessage, now time.Time) (Job, error) {
	if j.IsTerminal() {
		return j, fmt.Errorf("%w: cannot complete job in status %s", ErrConflict, j.Status)
	}

	completed := now.UTC()
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.ResultPayload = result
	j.CompletedAt = &completed
	return j, nil
}

// Fail transitions the job to FAILED, recording the failure reason and
// stamping CompletedAt. Returns ErrConflict if the job is already terminal.
func (j Job) Fail(reason string, now time.Time) (Job, error) {
	if j.IsTerminal() {
		return j, fmt.Errorf("%w: cannot fail job in status %s", ErrConflict, j.Status)
	}

	completed := now.UTC()
	j.Status = JobStatusFailed
	j.ErrorMessage = reason
	j.CompletedAt = &completed
	return j, nil
}

// Cancel transitions a QUEUED or PROCESSING job to CANCELLED. The pipeline
// observes the new status cooperatively at its next stage boundary.
func (j Job) Cancel(now time.Time) (Job, error) {
	if j.IsTerminal() {
		return j, fmt.Errorf("%w: cannot cancel job in status %s", ErrConflict, j.Status)
	}

	completed := now.UTC()
	j.Status = JobStatusCancelled
	j.CompletedAt = &completed
	return j, nil
}

// Retry moves a FAILED job back to QUEUED, consuming one unit of the
// retry budget and clearing all per-attempt state.
func (j Job) Retry() (Job, error) {
	if j.Status != JobStatusFailed {
		return j, fmt.Errorf("%w: cannot retry job in status %s", ErrConflict, j.Status)
	}

	if j.RetryCount >= j.MaxRetry {
		return j, fmt.Errorf("%w: retry budget exhausted (%d/%d)",
			ErrConflict, j.RetryCount, j.MaxRetry)
	}

	j.Status = JobStatusQueued
	j.RetryCount++
	j.Progress = 0
	j.CurrentStep = InitialStep
	j.ErrorMessage = ""
	j.ResultPayload = nil
	j.EstimatedRemainingSeconds = nil
	j.StartedAt = nil
	j.CompletedAt = nil
	return j, nil
}

// isValidJobStatus checks if the given status is a valid JobStatus.
func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted,
		JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// isValidJobType checks if the given type is a supported JobType.
func isValidJobType(jobType JobType) bool {
	switch jobType {
	case JobTypeScheduleGeneration, JobTypeDayScheduleRegeneration:
		return true
	default:
		return false
	}
}
