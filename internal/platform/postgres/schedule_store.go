package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wanderplan/wanderplan-api/internal/domain"
	"github.com/wanderplan/wanderplan-api/internal/platform/logger"
	"github.com/wanderplan/wanderplan-api/internal/store"
)

// PostgresScheduleStore implements the store.ScheduleStore interface using
// PostgreSQL.
type PostgresScheduleStore struct {
	db store.DBTX
}

// NewPostgresScheduleStore creates a new PostgresScheduleStore.
func NewPostgresScheduleStore(db store.DBTX) *PostgresScheduleStore {
	return &PostgresScheduleStore{
		db: db,
	}
}

// WithTx returns a ScheduleStore bound to the provided transaction.
func (s *PostgresScheduleStore) WithTx(tx *sql.Tx) store.ScheduleStore {
	return &PostgresScheduleStore{db: tx}
}

// CreateSchedule persists a new generated schedule artifact.
func (s *PostgresScheduleStore) CreateSchedule(
	ctx context.Context,
	schedule *domain.GeneratedSchedule,
) error {
	log := logger.FromContext(ctx)

	if err := schedule.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO generated_schedules
			(id, request_id, trip_id, ai_model, payload,
			 generation_time_seconds, generated_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.RequestID,
		schedule.TripID,
		schedule.AIModel,
		[]byte(schedule.Payload),
		schedule.GenerationTimeSeconds,
		schedule.GeneratedAt,
		schedule.IsActive,
	)
	if err != nil {
		log.Error("failed to create generated schedule",
			"request_id", schedule.RequestID,
			"trip_id", schedule.TripID,
			"error", err)
		return fmt.Errorf("failed to create generated schedule: %w", MapError(err))
	}

	return nil
}

// GetActiveSchedule retrieves the active schedule for a trip.
func (s *PostgresScheduleStore) GetActiveSchedule(
	ctx context.Context,
	tripID string,
) (*domain.GeneratedSchedule, error) {
	query := `
		SELECT id, request_id, trip_id, ai_model, payload,
		       generation_time_seconds, generated_at, is_active
		FROM generated_schedules
		WHERE trip_id = $1 AND is_active = TRUE
		ORDER BY generated_at DESC
		LIMIT 1
	`

	var (
		schedule domain.GeneratedSchedule
		payload  []byte
	)

	err := s.db.QueryRowContext(ctx, query, tripID).Scan(
		&schedule.ID,
		&schedule.RequestID,
		&schedule.TripID,
		&schedule.AIModel,
		&payload,
		&schedule.GenerationTimeSeconds,
		&schedule.GeneratedAt,
		&schedule.IsActive,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: trip %s", store.ErrScheduleNotFound, tripID)
		}
		return nil, fmt.Errorf("failed to get active schedule: %w", MapError(err))
	}

	schedule.Payload = payload
	return &schedule, nil
}

// DeactivateSchedules clears the active flag on all of a trip's schedules.
func (s *PostgresScheduleStore) DeactivateSchedules(ctx context.Context, tripID string) error {
	log := logger.FromContext(ctx)

	query := `UPDATE generated_schedules SET is_active = FALSE WHERE trip_id = $1`

	if _, err := s.db.ExecContext(ctx, query, tripID); err != nil {
		log.Error("failed to deactivate schedules",
			"trip_id", tripID,
			"error", err)
		return fmt.Errorf("failed to deactivate schedules: %w", MapError(err))
	}

	return nil
}
