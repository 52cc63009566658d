package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/wanderplan/wanderplan-api/internal/domain"
)

// JobStore defines the interface for persisting generation jobs.
// Implementations must be linearizable per request ID: concurrent mutations
// of distinct jobs need no coordination.
type JobStore interface {
	// CreateJob persists a freshly created job.
	// Returns ErrRequestIDExists if the request ID is already taken.
	CreateJob(ctx context.Context, job domain.Job) error

	// GetJob retrieves a job snapshot by request ID.
	// Returns ErrJobNotFound if no such job exists.
	GetJob(ctx context.Context, requestID string) (domain.Job, error)

	// UpdateJob replaces the stored snapshot for the job's request ID.
	// Returns ErrJobNotFound if no such job exists.
	UpdateJob(ctx context.Context, job domain.Job) error

	// ListInProgress returns jobs in the QUEUED or PROCESSING state.
	ListInProgress(ctx context.Context) ([]domain.Job, error)

	// ListRetryCandidates returns FAILED jobs whose failure is older than
	// the backoff window and whose retry budget is not exhausted.
	ListRetryCandidates(ctx context.Context, backoffWindow time.Duration) ([]domain.Job, error)

	// DeleteTerminalOlderThan removes terminal jobs whose completion is
	// older than age. Returns the number of jobs removed.
	DeleteTerminalOlderThan(ctx context.Context, age time.Duration) (int64, error)

	// WithTx returns a JobStore bound to the provided transaction.
	WithTx(tx *sql.Tx) JobStore
}

// ScheduleStore defines the interface for persisting generated schedules.
type ScheduleStore interface {
	// CreateSchedule persists a new generated schedule artifact.
	CreateSchedule(ctx context.Context, schedule *domain.GeneratedSchedule) error

	// GetActiveSchedule retrieves the active schedule for a trip.
	// Returns ErrScheduleNotFound if the trip has no active schedule.
	GetActiveSchedule(ctx context.Context, tripID string) (*domain.GeneratedSchedule, error)

	// DeactivateSchedules clears the active flag on all of a trip's
	// schedules, making room for a superseding regeneration.
	DeactivateSchedules(ctx context.Context, tripID string) error

	// WithTx returns a ScheduleStore bound to the provided transaction.
	WithTx(tx *sql.Tx) ScheduleStore
}
