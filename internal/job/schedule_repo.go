package job

import (
	"context"
	"database/sql"

	"github.com/wanderplan/wanderplan-api/internal/domain"
	"github.com/wanderplan/wanderplan-api/internal/store"
)

// ScheduleRepository is the pipeline's view of schedule persistence.
// ReplaceActiveSchedule must atomically deactivate the trip's current
// schedule and install the new one, so readers never observe zero or two
// active schedules.
type ScheduleRepository interface {
	GetActiveSchedule(ctx context.Context, tripID string) (*domain.GeneratedSchedule, error)
	ReplaceActiveSchedule(ctx context.Context, schedule *domain.GeneratedSchedule) error
}

// TxScheduleRepository implements ScheduleRepository over a SQL database,
// using a transaction for the deactivate-and-insert pair.
type TxScheduleRepository struct {
	db        *sql.DB
	schedules store.ScheduleStore
}

// NewTxScheduleRepository creates a TxScheduleRepository.
func NewTxScheduleRepository(db *sql.DB, schedules store.ScheduleStore) *TxScheduleRepository {
	return &TxScheduleRepository{db: db, schedules: schedules}
}

// GetActiveSchedule returns the trip's active schedule.
func (r *TxScheduleRepository) GetActiveSchedule(
	ctx context.Context,
	tripID string,
) (*domain.GeneratedSchedule, error) {
	return r.schedules.GetActiveSchedule(ctx, tripID)
}

// ReplaceActiveSchedule deactivates the trip's schedules and inserts the
// new active one in a single transaction.
func (r *TxScheduleRepository) ReplaceActiveSchedule(
	ctx context.Context,
	schedule *domain.GeneratedSchedule,
) error {
	return store.RunInTransaction(ctx, r.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := r.schedules.WithTx(tx)
		if err := txStore.DeactivateSchedules(ctx, schedule.TripID.String()); err != nil {
			return err
		}
		return txStore.CreateSchedule(ctx, schedule)
	})
}
