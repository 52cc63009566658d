package store

import (
	"context"
	"time"

	"github.com/wanderplan/wanderplan-api/internal/domain"
)

// RecommendationStore is the content-addressed recommendation cache,
// keyed by (place ID, profile fingerprint).
type RecommendationStore interface {
	// Get returns the valid (unexpired) entry for the key.
	// Returns ErrCacheMiss if no entry exists or every entry has expired.
	Get(ctx context.Context, placeID, fingerprint string) (*domain.RecommendationEntry, error)

	// Put inserts a new cache entry.
	Put(ctx context.Context, entry *domain.RecommendationEntry) error

	// RecordAccess increments the access count on the currently valid entry
	// for the key. Recording is best-effort bookkeeping: callers treat a
	// failure here as non-fatal.
	RecordAccess(ctx context.Context, placeID, fingerprint string) error

	// Invalidate expires every entry for the place without deleting them,
	// preserving access history. Returns the number of entries expired.
	Invalidate(ctx context.Context, placeID string) (int64, error)

	// Cleanup deletes entries that expired before the cutoff and were
	// accessed fewer than minAccessCount times, bounding storage growth
	// while keeping popular entries' history. Returns the number deleted.
	Cleanup(ctx context.Context, cutoff time.Time, minAccessCount int) (int64, error)
}
