package job

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderplan/wanderplan-api/internal/domain"
	"github.com/wanderplan/wanderplan-api/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPayload(t *testing.T) json.RawMessage {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"trip_id": uuid.New().String()})
	require.NoError(t, err)
	return payload
}

func TestLifecycleManager_CreateJob(t *testing.T) {
	ctx := context.Background()
	jobs := NewMemoryJobStore()
	manager := NewLifecycleManager(jobs, 5, testLogger())

	created, err := manager.CreateJob(ctx, uuid.New(), domain.JobTypeScheduleGeneration,
		"gemini-2.0-flash", testPayload(t))
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusQueued, created.Status)
	assert.Equal(t, 5, created.MaxRetry, "configured retry budget should override the default")
	assert.Equal(t, 0, created.Progress)

	stored, err := jobs.GetJob(ctx, created.RequestID)
	require.NoError(t, err)
	assert.Equal(t, created.RequestID, stored.RequestID)
}

func TestLifecycleManager_FullTransitionFlow(t *testing.T) {
	ctx := context.Background()
	manager := NewLifecycleManager(NewMemoryJobStore(), 0, testLogger())

	created, err := manager.CreateJob(ctx, uuid.New(), domain.JobTypeScheduleGeneration,
		"gemini-2.0-flash", testPayload(t))
	require.NoError(t, err)

	started, err := manager.Start(ctx, created.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, started.Status)
	require.NotNil(t, started.StartedAt)

	progressed, err := manager.UpdateProgress(ctx, created.RequestID, 40, "Collecting weather data")
	require.NoError(t, err)
	assert.Equal(t, 40, progressed.Progress)
	assert.Equal(t, "Collecting weather data", progressed.CurrentStep)

	result := json.RawMessage(`{"days":[{}]}`)
	completed, err := manager.Complete(ctx, created.RequestID, result)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, completed.Status)
	assert.Equal(t, 100, completed.Progress)
	assert.JSONEq(t, string(result), string(completed.ResultPayload))
	require.NotNil(t, completed.CompletedAt)
}

func TestLifecycleManager_FailAndRetry(t *testing.T) {
	ctx := context.Background()
	manager := NewLifecycleManager(NewMemoryJobStore(), 0, testLogger())

	created, err := manager.CreateJob(ctx, uuid.New(), domain.JobTypeScheduleGeneration,
		"gemini-2.0-flash", testPayload(t))
	require.NoError(t, err)

	_, err = manager.Start(ctx, created.RequestID)
	require.NoError(t, err)

	failed, err := manager.Fail(ctx, created.RequestID, "backend exploded")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, failed.Status)
	assert.Equal(t, "backend exploded", failed.ErrorMessage)

	retried, err := manager.Retry(ctx, created.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, retried.Status)
	assert.Equal(t, 1, retried.RetryCount)
	assert.Empty(t, retried.ErrorMessage)
	assert.Equal(t, 0, retried.Progress)
}

func TestLifecycleManager_InvalidTransitionLeavesJobUnchanged(t *testing.T) {
	ctx := context.Background()
	jobs := NewMemoryJobStore()
	manager := NewLifecycleManager(jobs, 0, testLogger())

	created, err := manager.CreateJob(ctx, uuid.New(), domain.JobTypeScheduleGeneration,
		"gemini-2.0-flash", testPayload(t))
	require.NoError(t, err)

	_, err = manager.Start(ctx, created.RequestID)
	require.NoError(t, err)
	_, err = manager.Complete(ctx, created.RequestID, json.RawMessage(`{"days":[{}]}`))
	require.NoError(t, err)

	before, err := jobs.GetJob(ctx, created.RequestID)
	require.NoError(t, err)

	_, err = manager.Cancel(ctx, created.RequestID)
	require.ErrorIs(t, err, domain.ErrConflict)

	after, err := jobs.GetJob(ctx, created.RequestID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLifecycleManager_GetJobNotFound(t *testing.T) {
	manager := NewLifecycleManager(NewMemoryJobStore(), 0, testLogger())

	_, err := manager.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestMemoryJobStore_ListRetryCandidates(t *testing.T) {
	ctx := context.Background()
	jobs := NewMemoryJobStore()
	manager := NewLifecycleManager(jobs, 0, testLogger())

	created, err := manager.CreateJob(ctx, uuid.New(), domain.JobTypeScheduleGeneration,
		"gemini-2.0-flash", testPayload(t))
	require.NoError(t, err)
	_, err = manager.Start(ctx, created.RequestID)
	require.NoError(t, err)
	_, err = manager.Fail(ctx, created.RequestID, "transient")
	require.NoError(t, err)

	// Failure is fresh, so a one-minute backoff hides it.
	fresh, err := jobs.ListRetryCandidates(ctx, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, fresh)

	// A zero backoff exposes it immediately.
	due, err := jobs.ListRetryCandidates(ctx, -time.Second)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, created.RequestID, due[0].RequestID)
}
