package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wanderplan/wanderplan-api/internal/domain"
	"github.com/wanderplan/wanderplan-api/internal/platform/logger"
	"github.com/wanderplan/wanderplan-api/internal/store"
)

// PostgresRecommendationStore implements the store.RecommendationStore
// interface using PostgreSQL. Entries are expired in place rather than
// deleted so access history survives invalidation.
type PostgresRecommendationStore struct {
	db store.DBTX
}

// NewPostgresRecommendationStore creates a new PostgresRecommendationStore.
func NewPostgresRecommendationStore(db store.DBTX) *PostgresRecommendationStore {
	return &PostgresRecommendationStore{
		db: db,
	}
}

// Get returns the valid (unexpired) entry for the key.
func (s *PostgresRecommendationStore) Get(
	ctx context.Context,
	placeID, fingerprint string,
) (*domain.RecommendationEntry, error) {
	query := `
		SELECT id, place_id, profile_fingerprint, payload, ai_model,
		       generated_at, expires_at, access_count
		FROM recommendation_cache
		WHERE place_id = $1 AND profile_fingerprint = $2 AND expires_at > $3
		ORDER BY generated_at DESC
		LIMIT 1
	`

	var (
		entry   domain.RecommendationEntry
		payload []byte
	)

	err := s.db.QueryRowContext(ctx, query, placeID, fingerprint, time.Now().UTC()).Scan(
		&entry.ID,
		&entry.PlaceID,
		&entry.ProfileFingerprint,
		&payload,
		&entry.AIModel,
		&entry.GeneratedAt,
		&entry.ExpiresAt,
		&entry.AccessCount,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: place %s", store.ErrCacheMiss, placeID)
		}
		return nil, fmt.Errorf("failed to get recommendation entry: %w", MapError(err))
	}

	entry.Payload = payload
	return &entry, nil
}

// Put inserts a new cache entry.
func (s *PostgresRecommendationStore) Put(
	ctx context.Context,
	entry *domain.RecommendationEntry,
) error {
	log := logger.FromContext(ctx)

	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO recommendation_cache
			(id, place_id, profile_fingerprint, payload, ai_model,
			 generated_at, expires_at, access_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.PlaceID,
		entry.ProfileFingerprint,
		[]byte(entry.Payload),
		entry.AIModel,
		entry.GeneratedAt,
		entry.ExpiresAt,
		entry.AccessCount,
	)
	if err != nil {
		log.Error("failed to put recommendation entry",
			"place_id", entry.PlaceID,
			"error", err)
		return fmt.Errorf("failed to put recommendation entry: %w", MapError(err))
	}

	return nil
}

// RecordAccess increments the access count on the currently valid entry.
// A missing entry is treated as a no-op; the caller's response must not
// depend on this bookkeeping.
func (s *PostgresRecommendationStore) RecordAccess(
	ctx context.Context,
	placeID, fingerprint string,
) error {
	query := `
		UPDATE recommendation_cache
		SET access_count = access_count + 1
		WHERE id = (
			SELECT id FROM recommendation_cache
			WHERE place_id = $1 AND profile_fingerprint = $2 AND expires_at > $3
			ORDER BY generated_at DESC
			LIMIT 1
		)
	`

	if _, err := s.db.ExecContext(ctx, query, placeID, fingerprint, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record cache access: %w", MapError(err))
	}

	return nil
}

// Invalidate expires every entry for the place without deleting them.
func (s *PostgresRecommendationStore) Invalidate(
	ctx context.Context,
	placeID string,
) (int64, error) {
	log := logger.FromContext(ctx)

	// Backdate by one second so freshly invalidated entries never race a
	// concurrent validity check using the same clock reading.
	query := `
		UPDATE recommendation_cache
		SET expires_at = $1
		WHERE place_id = $2 AND expires_at > $1
	`

	result, err := s.db.ExecContext(ctx, query, time.Now().UTC().Add(-time.Second), placeID)
	if err != nil {
		log.Error("failed to invalidate recommendation entries",
			"place_id", placeID,
			"error", err)
		return 0, fmt.Errorf("failed to invalidate recommendation entries: %w", MapError(err))
	}

	expired, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return expired, nil
}

// Cleanup deletes entries that expired before the cutoff and were accessed
// fewer than minAccessCount times.
func (s *PostgresRecommendationStore) Cleanup(
	ctx context.Context,
	cutoff time.Time,
	minAccessCount int,
) (int64, error) {
	log := logger.FromContext(ctx)

	query := `
		DELETE FROM recommendation_cache
		WHERE expires_at < $1 AND access_count < $2
	`

	result, err := s.db.ExecContext(ctx, query, cutoff, minAccessCount)
	if err != nil {
		log.Error("failed to clean up recommendation cache", "error", err)
		return 0, fmt.Errorf("failed to clean up recommendation cache: %w", MapError(err))
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return removed, nil
}
