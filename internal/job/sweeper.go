package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wanderplan/wanderplan-api/internal/domain"
	"github.com/wanderplan/wanderplan-api/internal/store"
)

// SweeperConfig holds the schedules and thresholds for the background
// sweeps.
type SweeperConfig struct {
	// SweepSchedule is the cron expression for the retry sweep.
	SweepSchedule string
	// RetryBackoff is how long a job must sit FAILED before the sweep
	// picks it up.
	RetryBackoff time.Duration
	// CleanupAge is how old a terminal job must be before the cleanup
	// sweep deletes it.
	CleanupAge time.Duration
	// CacheCleanupSchedule is the cron expression for the recommendation
	// cache cleanup.
	CacheCleanupSchedule string
	// CacheTTL mirrors the cache entry TTL; the cleanup deletes entries
	// expired longer than one full TTL ago.
	CacheTTL time.Duration
	// CacheLowAccessThreshold is the access count below which expired
	// entries are deleted.
	CacheLowAccessThreshold int
}

// Sweeper runs the periodic maintenance passes: retrying failed jobs with
// remaining attempts, deleting old terminal jobs, and pruning the
// recommendation cache.
type Sweeper struct {
	lifecycle       *LifecycleManager
	runner          *Runner
	recommendations store.RecommendationStore
	cfg             SweeperConfig
	cron            *cron.Cron
	logger          *slog.Logger
}

// NewSweeper creates a Sweeper. The cron scheduler is not started until
// Start is called.
func NewSweeper(
	lifecycle *LifecycleManager,
	runner *Runner,
	recommendations store.RecommendationStore,
	cfg SweeperConfig,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		lifecycle:       lifecycle,
		runner:          runner,
		recommendations: recommendations,
		cfg:             cfg,
		cron:            cron.New(),
		logger:          logger.With("component", "sweeper"),
	}
}

// Start registers the sweeps with the cron scheduler and starts it.
func (s *Sweeper) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, func() {
		if err := s.RunRetrySweep(ctx); err != nil {
			s.logger.ErrorContext(ctx, "retry sweep failed", "error", err)
		}
		if err := s.RunJobCleanup(ctx); err != nil {
			s.logger.ErrorContext(ctx, "job cleanup failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.cfg.SweepSchedule, err)
	}

	if _, err := s.cron.AddFunc(s.cfg.CacheCleanupSchedule, func() {
		if err := s.RunCacheCleanup(ctx); err != nil {
			s.logger.ErrorContext(ctx, "cache cleanup failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid cache cleanup schedule %q: %w", s.cfg.CacheCleanupSchedule, err)
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "sweeper started",
		"sweep_schedule", s.cfg.SweepSchedule,
		"cache_cleanup_schedule", s.cfg.CacheCleanupSchedule)
	return nil
}

// Stop stops the scheduler and waits for any running sweep to finish.
func (s *Sweeper) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("sweeper stopped")
}

// RunRetrySweep finds FAILED jobs with remaining attempts whose backoff
// window has elapsed, transitions them back to QUEUED and re-submits them.
// Each job is handled independently; one bad job never aborts the sweep.
func (s *Sweeper) RunRetrySweep(ctx context.Context) error {
	candidates, err := s.lifecycle.ListRetryCandidates(ctx, s.cfg.RetryBackoff)
	if err != nil {
		return fmt.Errorf("failed to list retry candidates: %w", err)
	}

	var retried int
	for _, j := range candidates {
		if _, err := s.lifecycle.Retry(ctx, j.RequestID); err != nil {
			// Lost the race with a cancel or a concurrent sweep.
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			s.logger.WarnContext(ctx, "could not retry job",
				"request_id", j.RequestID,
				"error", err)
			continue
		}

		if err := s.runner.Submit(j.RequestID); err != nil {
			// The job stays QUEUED; the recovery path or a later sweep of
			// the queue picks it up.
			s.logger.WarnContext(ctx, "could not enqueue retried job",
				"request_id", j.RequestID,
				"error", err)
			continue
		}
		retried++
	}

	if retried > 0 {
		s.logger.InfoContext(ctx, "retry sweep finished",
			"candidates", len(candidates),
			"retried", retried)
	}
	return nil
}

// RunJobCleanup deletes terminal jobs older than the configured age.
func (s *Sweeper) RunJobCleanup(ctx context.Context) error {
	deleted, err := s.lifecycle.CleanupOlderThan(ctx, s.cfg.CleanupAge)
	if err != nil {
		return fmt.Errorf("failed to clean up terminal jobs: %w", err)
	}

	if deleted > 0 {
		s.logger.InfoContext(ctx, "job cleanup finished", "deleted", deleted)
	}
	return nil
}

// RunCacheCleanup deletes recommendation entries that expired at least one
// TTL ago and never accumulated meaningful access. Recently expired or
// well-used entries are kept as history.
func (s *Sweeper) RunCacheCleanup(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.cfg.CacheTTL)
	deleted, err := s.recommendations.Cleanup(ctx, cutoff, s.cfg.CacheLowAccessThreshold)
	if err != nil {
		return fmt.Errorf("failed to clean up recommendation cache: %w", err)
	}

	if deleted > 0 {
		s.logger.InfoContext(ctx, "cache cleanup finished", "deleted", deleted)
	}
	return nil
}
