package job

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/wanderplan/wanderplan-api/internal/domain"
	"github.com/wanderplan/wanderplan-api/internal/store"
)

// MemoryJobStore is an in-memory JobStore used by tests and local
// experiments. It mirrors the persistence semantics of the Postgres
// implementation, including the sentinel errors.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.Job
}

var _ store.JobStore = (*MemoryJobStore)(nil)

// NewMemoryJobStore creates an empty MemoryJobStore.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]domain.Job)}
}

// CreateJob stores a new job, rejecting duplicate request IDs.
func (s *MemoryJobStore) CreateJob(ctx context.Context, job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.RequestID]; exists {
		return store.ErrRequestIDExists
	}
	s.jobs[job.RequestID] = job
	return nil
}

// GetJob returns the stored snapshot for a request ID.
func (s *MemoryJobStore) GetJob(ctx context.Context, requestID string) (domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[requestID]
	if !ok {
		return domain.Job{}, store.ErrJobNotFound
	}
	return job, nil
}

// UpdateJob replaces the stored snapshot for an existing job.
func (s *MemoryJobStore) UpdateJob(ctx context.Context, job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.RequestID]; !ok {
		return store.ErrJobNotFound
	}
	s.jobs[job.RequestID] = job
	return nil
}

// ListInProgress returns jobs in QUEUED or PROCESSING state.
func (s *MemoryJobStore) ListInProgress(ctx context.Context) ([]domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Job
	for _, job := range s.jobs {
		if job.Status == domain.JobStatusQueued || job.Status == domain.JobStatusProcessing {
			out = append(out, job)
		}
	}
	return out, nil
}

// ListRetryCandidates returns FAILED jobs with remaining attempts whose
// backoff window has elapsed.
func (s *MemoryJobStore) ListRetryCandidates(
	ctx context.Context,
	backoffWindow time.Duration,
) ([]domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-backoffWindow)
	var out []domain.Job
	for _, job := range s.jobs {
		if job.Status != domain.JobStatusFailed || job.RetryCount >= job.MaxRetry {
			continue
		}
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			out = append(out, job)
		}
	}
	return out, nil
}

// DeleteTerminalOlderThan deletes terminal jobs whose completion is older
// than the cutoff.
func (s *MemoryJobStore) DeleteTerminalOlderThan(
	ctx context.Context,
	age time.Duration,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-age)
	var deleted int64
	for id, job := range s.jobs {
		if !job.IsTerminal() {
			continue
		}
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

// WithTx returns the store itself; the in-memory store has no
// transactions.
func (s *MemoryJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return s
}
