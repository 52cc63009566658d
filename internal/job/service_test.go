package job

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderplan/wanderplan-api/internal/domain"
	"github.com/wanderplan/wanderplan-api/internal/generation"
)

// fakeStatusCache is an in-memory StatusCache for service tests.
type fakeStatusCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	failing bool
	sets    int
	hits    int
}

func newFakeStatusCache() *fakeStatusCache {
	return &fakeStatusCache{entries: make(map[string][]byte)}
}

func (c *fakeStatusCache) GetStatus(ctx context.Context, requestID string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return nil, false, errors.New("redis down")
	}
	snapshot, ok := c.entries[requestID]
	if ok {
		c.hits++
	}
	return snapshot, ok, nil
}

func (c *fakeStatusCache) SetStatus(ctx context.Context, requestID string, snapshot []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("redis down")
	}
	c.entries[requestID] = snapshot
	c.sets++
	return nil
}

func (c *fakeStatusCache) DeleteStatus(ctx context.Context, requestID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, requestID)
	return nil
}

func (c *fakeStatusCache) Ping(ctx context.Context) error { return nil }

type serviceFixture struct {
	*pipelineFixture
	runner  *Runner
	cache   *fakeStatusCache
	service *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f, runner := newRunnerFixture(t, RunnerConfig{WorkerCount: 1, QueueSize: 8})
	cache := newFakeStatusCache()
	selector := generation.NewModelSelector("gemini-2.0-flash", "gemini-2.0-pro")
	service := NewService(f.lifecycle, runner, selector, cache, 2*time.Second, testLogger())
	return &serviceFixture{pipelineFixture: f, runner: runner, cache: cache, service: service}
}

func TestService_EnqueueScheduleGeneration(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	job, err := f.service.EnqueueScheduleGeneration(ctx, scheduleRequestFixture())
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusQueued, job.Status)
	assert.Equal(t, "gemini-2.0-flash", job.AIModel)
	assert.Len(t, f.runner.queue, 1)
}

func TestService_EnqueueSelectsHighPerformanceModel(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	req := scheduleRequestFixture()
	req.RequireHighPerformance = true
	job, err := f.service.EnqueueScheduleGeneration(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.0-pro", job.AIModel)
}

func TestService_EnqueueRejectsInvalidRequest(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	_, err := f.service.EnqueueScheduleGeneration(ctx, domain.ScheduleRequest{})
	assert.ErrorIs(t, err, domain.ErrEmptyTripID)
	assert.Empty(t, f.runner.queue)

	_, err = f.service.EnqueueDayRegeneration(ctx, domain.RegenerateDayRequest{
		TripID: uuid.New(),
		Day:    0,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestService_DuplicateSubmissionsEachGetAJob(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	req := scheduleRequestFixture()

	first, err := f.service.EnqueueScheduleGeneration(ctx, req)
	require.NoError(t, err)
	second, err := f.service.EnqueueScheduleGeneration(ctx, req)
	require.NoError(t, err)

	assert.NotEqual(t, first.RequestID, second.RequestID)
	assert.Len(t, f.runner.queue, 2)
}

func TestService_GetStatusCachesSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	job, err := f.service.EnqueueScheduleGeneration(ctx, scheduleRequestFixture())
	require.NoError(t, err)

	first, err := f.service.GetStatus(ctx, job.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, first.Status)
	assert.Equal(t, 1, f.cache.sets)

	// Second read is served from the snapshot cache.
	second, err := f.service.GetStatus(ctx, job.RequestID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.cache.hits)

	// Stage classification rides along.
	require.Len(t, first.Stages, len(scheduleStages))
	assert.False(t, first.Stages[0].Completed)
}

func TestService_GetStatusSurvivesCacheOutage(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	f.cache.failing = true

	job, err := f.service.EnqueueScheduleGeneration(ctx, scheduleRequestFixture())
	require.NoError(t, err)

	snapshot, err := f.service.GetStatus(ctx, job.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, snapshot.Status)
}

func TestService_GetStatusClassifiesCompletedStages(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	job, err := f.service.EnqueueScheduleGeneration(ctx, scheduleRequestFixture())
	require.NoError(t, err)
	_, err = f.lifecycle.Start(ctx, job.RequestID)
	require.NoError(t, err)
	_, err = f.lifecycle.UpdateProgress(ctx, job.RequestID, 60, "Invoking generation backend")
	require.NoError(t, err)

	snapshot, err := f.service.GetStatus(ctx, job.RequestID)
	require.NoError(t, err)

	completed := 0
	for _, stage := range snapshot.Stages {
		if stage.Completed {
			completed++
		}
	}
	assert.Equal(t, 3, completed, "checkpoints 20, 40 and 60 are reached at progress 60")
}

func TestService_GetResultOnlyWhenCompleted(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	job, err := f.service.EnqueueScheduleGeneration(ctx, scheduleRequestFixture())
	require.NoError(t, err)

	_, err = f.service.GetResult(ctx, job.RequestID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.lifecycle.Start(ctx, job.RequestID)
	require.NoError(t, err)
	result := json.RawMessage(`{"days":[{}]}`)
	_, err = f.lifecycle.Complete(ctx, job.RequestID, result)
	require.NoError(t, err)

	got, err := f.service.GetResult(ctx, job.RequestID)
	require.NoError(t, err)
	assert.JSONEq(t, string(result), string(got))
}

func TestService_CancelDropsCachedSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	job, err := f.service.EnqueueScheduleGeneration(ctx, scheduleRequestFixture())
	require.NoError(t, err)

	_, err = f.service.GetStatus(ctx, job.RequestID)
	require.NoError(t, err)
	require.Contains(t, f.cache.entries, job.RequestID)

	cancelled, err := f.service.Cancel(ctx, job.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, cancelled.Status)
	assert.NotContains(t, f.cache.entries, job.RequestID)

	// The next status read reflects the cancellation immediately.
	snapshot, err := f.service.GetStatus(ctx, job.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, snapshot.Status)
}

func TestService_RetryRequeuesFailedJob(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	job, err := f.service.EnqueueScheduleGeneration(ctx, scheduleRequestFixture())
	require.NoError(t, err)
	<-f.runner.queue

	_, err = f.lifecycle.Start(ctx, job.RequestID)
	require.NoError(t, err)
	_, err = f.lifecycle.Fail(ctx, job.RequestID, "transient")
	require.NoError(t, err)

	retried, err := f.service.Retry(ctx, job.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, retried.Status)
	assert.Equal(t, 1, retried.RetryCount)
	assert.Len(t, f.runner.queue, 1)
}
