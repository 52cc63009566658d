package recommendation

import (
	"context"
	"sync"
	"time"

	"github.com/wanderplan/wanderplan-api/internal/domain"
	"github.com/wanderplan/wanderplan-api/internal/store"
)

// MemoryStore is an in-memory RecommendationStore used by tests and local
// experiments. It mirrors the Postgres implementation's semantics:
// expired entries survive until cleanup, and the newest valid entry wins.
type MemoryStore struct {
	mu      sync.Mutex
	entries []*domain.RecommendationEntry
}

var _ store.RecommendationStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns the newest valid entry for the key.
func (s *MemoryStore) Get(
	ctx context.Context,
	placeID, fingerprint string,
) (*domain.RecommendationEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var newest *domain.RecommendationEntry
	for _, entry := range s.entries {
		if entry.PlaceID != placeID || entry.ProfileFingerprint != fingerprint {
			continue
		}
		if !entry.IsValid(now) {
			continue
		}
		if newest == nil || entry.GeneratedAt.After(newest.GeneratedAt) {
			newest = entry
		}
	}

	if newest == nil {
		return nil, store.ErrCacheMiss
	}
	copied := *newest
	return &copied, nil
}

// Put inserts a new entry.
func (s *MemoryStore) Put(ctx context.Context, entry *domain.RecommendationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *entry
	s.entries = append(s.entries, &copied)
	return nil
}

// RecordAccess increments the access count on the newest valid entry.
func (s *MemoryStore) RecordAccess(ctx context.Context, placeID, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var newest *domain.RecommendationEntry
	for _, entry := range s.entries {
		if entry.PlaceID != placeID || entry.ProfileFingerprint != fingerprint {
			continue
		}
		if !entry.IsValid(now) {
			continue
		}
		if newest == nil || entry.GeneratedAt.After(newest.GeneratedAt) {
			newest = entry
		}
	}

	if newest == nil {
		return store.ErrCacheMiss
	}
	newest.AccessCount++
	return nil
}

// Invalidate expires every currently valid entry for the place.
func (s *MemoryStore) Invalidate(ctx context.Context, placeID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	expiry := now.Add(-time.Second)
	var expired int64
	for _, entry := range s.entries {
		if entry.PlaceID != placeID || !entry.IsValid(now) {
			continue
		}
		entry.ExpiresAt = expiry
		expired++
	}
	return expired, nil
}

// Cleanup deletes entries expired before the cutoff with fewer accesses
// than minAccessCount.
func (s *MemoryStore) Cleanup(
	ctx context.Context,
	cutoff time.Time,
	minAccessCount int,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*domain.RecommendationEntry
	var deleted int64
	for _, entry := range s.entries {
		if entry.ExpiresAt.Before(cutoff) && entry.AccessCount < minAccessCount {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	s.entries = kept
	return deleted, nil
}
