package recommendation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wanderplan/wanderplan-api/internal/domain"
	"github.com/wanderplan/wanderplan-api/internal/generation"
	"github.com/wanderplan/wanderplan-api/internal/store"
)

// Request asks for a recommendation for one place and one traveler
// profile.
type Request struct {
	PlaceID                string                 `json:"place_id"`
	PlaceName              string                 `json:"place_name"`
	Profile                domain.TravelerProfile `json:"profile"`
	RequireHighPerformance bool                   `json:"require_high_performance"`
}

// Validate checks the request identifies a place.
func (r Request) Validate() error {
	if strings.TrimSpace(r.PlaceID) == "" {
		return fmt.Errorf("%w: place ID cannot be empty", domain.ErrValidation)
	}
	if strings.TrimSpace(r.PlaceName) == "" {
		return fmt.Errorf("%w: place name cannot be empty", domain.ErrValidation)
	}
	return nil
}

// Result is a recommendation plus its cache provenance.
type Result struct {
	Entry     *domain.RecommendationEntry `json:"entry"`
	FromCache bool                        `json:"from_cache"`
}

// Service serves per-place recommendations through a cache-aside strategy:
// a valid cached entry is returned immediately; otherwise the backend is
// invoked and the validated result cached.
//
// Concurrent misses for the same key each invoke the backend and each
// insert their own entry; the store returns the latest valid one. Cache
// write failures degrade to generate-only service, never to an error.
type Service struct {
	cache    store.RecommendationStore
	backend  generation.Backend
	selector *generation.ModelSelector
	ttl      time.Duration
	logger   *slog.Logger
}

// NewService creates a recommendation Service. ttl falls back to the
// domain default when zero.
func NewService(
	cache store.RecommendationStore,
	backend generation.Backend,
	selector *generation.ModelSelector,
	ttl time.Duration,
	logger *slog.Logger,
) *Service {
	if ttl <= 0 {
		ttl = domain.DefaultRecommendationTTL
	}
	return &Service{
		cache:    cache,
		backend:  backend,
		selector: selector,
		ttl:      ttl,
		logger:   logger.With("component", "recommendation"),
	}
}

// Get returns the recommendation for a place and profile, generating and
// caching it on a miss.
func (s *Service) Get(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	fingerprint := req.Profile.Fingerprint()

	entry, err := s.cache.Get(ctx, req.PlaceID, fingerprint)
	switch {
	case err == nil:
		// Access bookkeeping must never fail a read.
		if accessErr := s.cache.RecordAccess(ctx, req.PlaceID, fingerprint); accessErr != nil {
			s.logger.WarnContext(ctx, "could not record cache access",
				"place_id", req.PlaceID,
				"error", accessErr)
		}
		return Result{Entry: entry, FromCache: true}, nil

	case errors.Is(err, store.ErrCacheMiss):
		// Fall through to generation.

	default:
		// A broken cache degrades to generate-only service.
		s.logger.WarnContext(ctx, "cache read failed, generating without cache",
			"place_id", req.PlaceID,
			"error", err)
	}

	return s.generate(ctx, req, fingerprint)
}

// Invalidate expires every cached entry for a place, for example after its
// upstream data changed. Entries are kept with their access history.
func (s *Service) Invalidate(ctx context.Context, placeID string) (int64, error) {
	if strings.TrimSpace(placeID) == "" {
		return 0, fmt.Errorf("%w: place ID cannot be empty", domain.ErrValidation)
	}

	expired, err := s.cache.Invalidate(ctx, placeID)
	if err != nil {
		return 0, fmt.Errorf("failed to invalidate recommendations: %w", err)
	}

	s.logger.InfoContext(ctx, "recommendations invalidated",
		"place_id", placeID,
		"expired", expired)
	return expired, nil
}

// generate invokes the backend, validates the payload and caches it.
func (s *Service) generate(ctx context.Context, req Request, fingerprint string) (Result, error) {
	prompt, err := buildPrompt(req.PlaceName, req.Profile)
	if err != nil {
		return Result{}, err
	}

	model := s.selector.Select(req.RequireHighPerformance)
	raw, err := s.backend.GenerateRecommendation(ctx, model, prompt, nil)
	if err != nil {
		return Result{}, fmt.Errorf("recommendation generation failed: %w", err)
	}

	payload := []byte(stripCodeFences(raw))
	if err := validatePayload(payload); err != nil {
		return Result{}, err
	}

	entry, err := domain.NewRecommendationEntry(req.PlaceID, fingerprint, payload, model, s.ttl)
	if err != nil {
		return Result{}, err
	}

	// A failed insert only costs the next caller a regeneration.
	if err := s.cache.Put(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "could not cache recommendation",
			"place_id", req.PlaceID,
			"error", err)
	}

	return Result{Entry: entry, FromCache: false}, nil
}

// stripCodeFences removes a surrounding markdown code fence from a model
// response.
func stripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return strings.TrimSpace(trimmed)
}
