package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultRecommendationTTL is how long a cached recommendation stays valid
// unless a different TTL is configured.
const DefaultRecommendationTTL = 7 * 24 * time.Hour

// RecommendationEntry is a cached per-place recommendation, addressed by
// (PlaceID, ProfileFingerprint). Invalidation expires entries rather than
// deleting them so access history survives for analytics.
type RecommendationEntry struct {
	ID                 uuid.UUID       `json:"id"`
	PlaceID            string          `json:"place_id"`
	ProfileFingerprint string          `json:"profile_fingerprint"`
	Payload            json.RawMessage `json:"payload"`
	AIModel            string          `json:"ai_model"`
	GeneratedAt        time.Time       `json:"generated_at"`
	ExpiresAt          time.Time       `json:"expires_at"`
	AccessCount        int             `json:"access_count"`
}

// NewRecommendationEntry creates a fresh cache entry expiring ttl from now.
// Returns an error if validation fails.
func NewRecommendationEntry(
	placeID, fingerprint string,
	payload json.RawMessage,
	aiModel string,
	ttl time.Duration,
) (*RecommendationEntry, error) {
	now := time.Now().UTC()
	entry := &RecommendationEntry{
		ID:                 uuid.New(),
		PlaceID:            placeID,
		ProfileFingerprint: fingerprint,
		Payload:            payload,
		AIModel:            aiModel,
		GeneratedAt:        now,
		ExpiresAt:          now.Add(ttl),
		AccessCount:        0,
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}

	return entry, nil
}

// Validate checks if the RecommendationEntry has valid data.
func (e *RecommendationEntry) Validate() error {
	if e.PlaceID == "" {
		return fmt.Errorf("%w: place ID cannot be empty", ErrValidation)
	}

	if e.ProfileFingerprint == "" {
		return fmt.Errorf("%w: profile fingerprint cannot be empty", ErrValidation)
	}

	if len(e.Payload) == 0 {
		return fmt.Errorf("%w: recommendation payload cannot be empty", ErrValidation)
	}

	var js json.RawMessage
	if err := json.Unmarshal(e.Payload, &js); err != nil {
		return fmt.Errorf("%w: recommendation payload must be valid JSON", ErrValidation)
	}

	return nil
}

// IsValid reports whether the entry has not yet expired at the given time.
func (e *RecommendationEntry) IsValid(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}
