package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wanderplan/wanderplan-api/internal/domain"
	"github.com/wanderplan/wanderplan-api/internal/platform/logger"
	"github.com/wanderplan/wanderplan-api/internal/store"
)

// jobColumns is the column list shared by every job SELECT.
const jobColumns = `request_id, job_type, trip_id, ai_model, status, progress,
	current_step, request_payload, result_payload, error_message,
	retry_count, max_retry, estimated_remaining_seconds,
	started_at, completed_at, created_at`

// PostgresJobStore implements the store.JobStore interface using PostgreSQL.
type PostgresJobStore struct {
	db store.DBTX
}

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	return &PostgresJobStore{
		db: db,
	}
}

// WithTx returns a JobStore bound to the provided transaction.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{db: tx}
}

// CreateJob persists a freshly created job.
func (s *PostgresJobStore) CreateJob(ctx context.Context, job domain.Job) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := s.db.ExecContext(ctx, query,
		job.RequestID,
		job.JobType,
		job.TripID,
		job.AIModel,
		job.Status,
		job.Progress,
		job.CurrentStep,
		nullableJSON(job.RequestPayload),
		nullableJSON(job.ResultPayload),
		nullableString(job.ErrorMessage),
		job.RetryCount,
		job.MaxRetry,
		job.EstimatedRemainingSeconds,
		job.StartedAt,
		job.CompletedAt,
		job.CreatedAt,
	)

	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", store.ErrRequestIDExists, err)
		}
		log.Error("failed to create job",
			"request_id", job.RequestID,
			"job_type", job.JobType,
			"error", err)
		return fmt.Errorf("failed to create job: %w", MapError(err))
	}

	return nil
}

// GetJob retrieves a job snapshot by request ID.
func (s *PostgresJobStore) GetJob(ctx context.Context, requestID string) (domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE request_id = $1`

	row := s.db.QueryRowContext(ctx, query, requestID)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Job{}, fmt.Errorf("%w: %s", store.ErrJobNotFound, requestID)
		}
		return domain.Job{}, fmt.Errorf("failed to get job: %w", MapError(err))
	}

	return job, nil
}

// UpdateJob replaces the stored snapshot for the job's request ID.
func (s *PostgresJobStore) UpdateJob(ctx context.Context, job domain.Job) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE jobs
		SET status = $1, progress = $2, current_step = $3, result_payload = $4,
			error_message = $5, retry_count = $6,
			estimated_remaining_seconds = $7, started_at = $8, completed_at = $9
		WHERE request_id = $10
	`

	result, err := s.db.ExecContext(ctx, query,
		job.Status,
		job.Progress,
		job.CurrentStep,
		nullableJSON(job.ResultPayload),
		nullableString(job.ErrorMessage),
		job.RetryCount,
		job.EstimatedRemainingSeconds,
		job.StartedAt,
		job.CompletedAt,
		job.RequestID,
	)

	if err != nil {
		log.Error("failed to update job",
			"request_id", job.RequestID,
			"status", job.Status,
			"error", err)
		return fmt.Errorf("failed to update job: %w", MapError(err))
	}

	if err := CheckRowsAffected(result, "job"); err != nil {
		return fmt.Errorf("%w: %s", store.ErrJobNotFound, job.RequestID)
	}

	return nil
}

// ListInProgress returns jobs in the QUEUED or PROCESSING state.
func (s *PostgresJobStore) ListInProgress(ctx context.Context) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status IN ($1, $2)
		ORDER BY created_at ASC
	`

	return s.queryJobs(ctx, query, domain.JobStatusQueued, domain.JobStatusProcessing)
}

// ListRetryCandidates returns FAILED jobs whose failure is older than the
// backoff window and whose retry budget is not exhausted.
func (s *PostgresJobStore) ListRetryCandidates(
	ctx context.Context,
	backoffWindow time.Duration,
) ([]domain.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = $1
		  AND retry_count < max_retry
		  AND completed_at < $2
		ORDER BY completed_at ASC
	`

	cutoff := time.Now().UTC().Add(-backoffWindow)
	return s.queryJobs(ctx, query, domain.JobStatusFailed, cutoff)
}

// DeleteTerminalOlderThan removes terminal jobs whose completion is older
// than age.
func (s *PostgresJobStore) DeleteTerminalOlderThan(
	ctx context.Context,
	age time.Duration,
) (int64, error) {
	log := logger.FromContext(ctx)

	query := `
		DELETE FROM jobs
		WHERE status IN ($1, $2, $3)
		  AND completed_at IS NOT NULL
		  AND completed_at < $4
	`

	cutoff := time.Now().UTC().Add(-age)
	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusCompleted,
		domain.JobStatusFailed,
		domain.JobStatusCancelled,
		cutoff,
	)
	if err != nil {
		log.Error("failed to delete old terminal jobs", "error", err)
		return 0, fmt.Errorf("failed to delete old terminal jobs: %w", MapError(err))
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return removed, nil
}

// queryJobs runs a job SELECT and scans all rows.
func (s *PostgresJobStore) queryJobs(
	ctx context.Context,
	query string,
	args ...any,
) ([]domain.Job, error) {
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query jobs", "error", err)
		return nil, fmt.Errorf("failed to query jobs: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}

	return jobs, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanJob.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob scans one job row into a domain.Job.
func scanJob(row rowScanner) (domain.Job, error) {
	var (
		job            domain.Job
		tripID         uuid.UUID
		requestPayload []byte
		resultPayload  []byte
		errorMessage   sql.NullString
		estimate       sql.NullInt64
		startedAt      sql.NullTime
		completedAt    sql.NullTime
	)

	err := row.Scan(
		&job.RequestID,
		&job.JobType,
		&tripID,
		&job.AIModel,
		&job.Status,
		&job.Progress,
		&job.CurrentStep,
		&requestPayload,
		&resultPayload,
		&errorMessage,
		&job.RetryCount,
		&job.MaxRetry,
		&estimate,
		&startedAt,
		&completedAt,
		&job.CreatedAt,
	)
	if err != nil {
		return domain.Job{}, err
	}

	job.TripID = tripID
	job.RequestPayload = requestPayload
	job.ResultPayload = resultPayload
	job.ErrorMessage = errorMessage.String
	if estimate.Valid {
		job.EstimatedRemainingSeconds = &estimate.Int64
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}

	return job, nil
}

// nullableString maps an empty string to SQL NULL.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullableJSON maps an empty payload to SQL NULL.
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
