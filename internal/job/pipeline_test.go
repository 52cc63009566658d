package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderplan/wanderplan-api/internal/domain"
	"github.com/wanderplan/wanderplan-api/internal/generation"
	"github.com/wanderplan/wanderplan-api/internal/store"
)

// memoryScheduleRepo is an in-memory ScheduleRepository for pipeline tests.
type memoryScheduleRepo struct {
	mu     sync.Mutex
	active map[string]*domain.GeneratedSchedule
	writes int
}

func newMemoryScheduleRepo() *memoryScheduleRepo {
	return &memoryScheduleRepo{active: make(map[string]*domain.GeneratedSchedule)}
}

func (r *memoryScheduleRepo) GetActiveSchedule(
	ctx context.Context,
	tripID string,
) (*domain.GeneratedSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	schedule, ok := r.active[tripID]
	if !ok {
		return nil, store.ErrScheduleNotFound
	}
	return schedule, nil
}

func (r *memoryScheduleRepo) ReplaceActiveSchedule(
	ctx context.Context,
	schedule *domain.GeneratedSchedule,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active[schedule.TripID.String()] = schedule
	r.writes++
	return nil
}

// fakeLocation serves canned candidates and can fail specific names.
type fakeLocation struct {
	candidates map[string]generation.PlaceCandidate
	failNames  map[string]bool
	onSearch   func()
}

func (f *fakeLocation) Search(
	ctx context.Context,
	name string,
	limit int,
) ([]generation.PlaceCandidate, error) {
	if f.onSearch != nil {
		f.onSearch()
	}
	if f.failNames[name] {
		return nil, errors.New("geocoder unavailable")
	}
	if candidate, ok := f.candidates[name]; ok {
		return []generation.PlaceCandidate{candidate}, nil
	}
	return nil, nil
}

// fakeWeather serves one canned forecast for any coordinates.
type fakeWeather struct {
	forecast *generation.WeatherForecast
	err      error
	calls    int
}

func (f *fakeWeather) Forecast(
	ctx context.Context,
	lat, lon float64,
	startDate, endDate string,
) (*generation.WeatherForecast, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.forecast, nil
}

// fakeBackend returns a canned response and records what it was asked.
type fakeBackend struct {
	response      string
	err           error
	calls         int
	lastModel     string
	lastPrompt    string
	lastContext   map[string]any
	beforeRespond func()
}

func (f *fakeBackend) GenerateSchedule(
	ctx context.Context,
	model, prompt string,
	promptContext map[string]any,
) (string, error) {
	if f.beforeRespond != nil {
		f.beforeRespond()
	}
	f.calls++
	f.lastModel = model
	f.lastPrompt = prompt
	f.lastContext = promptContext
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeBackend) GenerateRecommendation(
	ctx context.Context,
	model, prompt string,
	promptContext map[string]any,
) (string, error) {
	return f.GenerateSchedule(ctx, model, prompt, promptContext)
}

// recordingPublisher captures outcome notifications.
type recordingPublisher struct {
	mu        sync.Mutex
	completed []string
	failed    []string
}

func (p *recordingPublisher) NotifyComplete(ctx context.Context, requestID string, payload json.RawMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, requestID)
}

func (p *recordingPublisher) NotifyFailed(ctx context.Context, requestID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, requestID)
}

type pipelineFixture struct {
	lifecycle *LifecycleManager
	schedules *memoryScheduleRepo
	location  *fakeLocation
	weather   *fakeWeather
	backend   *fakeBackend
	publisher *recordingPublisher
	pipeline  *PipelineOrchestrator
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	f := &pipelineFixture{
		lifecycle: NewLifecycleManager(NewMemoryJobStore(), 0, testLogger()),
		schedules: newMemoryScheduleRepo(),
		location: &fakeLocation{
			candidates: map[string]generation.PlaceCandidate{
				"Kyoto": {Name: "Kyoto", Latitude: 35.0116, Longitude: 135.7681},
			},
			failNames: map[string]bool{},
		},
		weather: &fakeWeather{
			forecast: &generation.WeatherForecast{
				Daily: []generation.DailyForecast{
					{Date: "2026-04-01", TempMinC: 8, TempMaxC: 18, Conditions: "Clear sky"},
				},
			},
		},
		backend:   &fakeBackend{response: `{"days":[{"activities":[]}]}`},
		publisher: &recordingPublisher{},
	}

	f.pipeline = NewPipelineOrchestrator(
		f.lifecycle, f.schedules, f.location, f.weather, f.backend, f.publisher,
		0, testLogger())
	return f
}

func (f *pipelineFixture) createScheduleJob(t *testing.T, req domain.ScheduleRequest) domain.Job {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	job, err := f.lifecycle.CreateJob(context.Background(), req.TripID,
		domain.JobTypeScheduleGeneration, "gemini-2.0-flash", payload)
	require.NoError(t, err)
	return job
}

func scheduleRequestFixture() domain.ScheduleRequest {
	return domain.ScheduleRequest{
		TripID: uuid.New(),
		Destinations: []domain.Destination{
			{Name: "Kyoto", StartDate: "2026-04-01", EndDate: "2026-04-03"},
		},
		Profile: domain.TravelerProfile{
			GroupComposition: "couple",
			TransportMode:    "public_transport",
			Preferences:      []string{"food", "temples"},
		},
	}
}

func TestPipeline_ScheduleGenerationCompletes(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	req := scheduleRequestFixture()
	created := f.createScheduleJob(t, req)

	require.NoError(t, f.pipeline.Run(ctx, created.RequestID))

	job, err := f.lifecycle.GetJob(ctx, created.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.JSONEq(t, f.backend.response, string(job.ResultPayload))

	// The schedule artifact was persisted and is active.
	schedule, err := f.schedules.GetActiveSchedule(ctx, req.TripID.String())
	require.NoError(t, err)
	assert.True(t, schedule.IsActive)
	assert.Equal(t, created.RequestID, schedule.RequestID)

	// Auxiliary facts reached the backend.
	assert.Equal(t, "gemini-2.0-flash", f.backend.lastModel)
	assert.Contains(t, f.backend.lastContext, "locations")
	assert.Contains(t, f.backend.lastContext, "weather")

	assert.Equal(t, []string{created.RequestID}, f.publisher.completed)
	assert.Empty(t, f.publisher.failed)
}

func TestPipeline_LocationFailureDegradesButCompletes(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	f.location.failNames["Kyoto"] = true
	req := scheduleRequestFixture()
	created := f.createScheduleJob(t, req)

	require.NoError(t, f.pipeline.Run(ctx, created.RequestID))

	job, err := f.lifecycle.GetJob(ctx, created.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)

	// No coordinates resolved, so no weather either; the backend was still
	// invoked with an empty context.
	assert.Equal(t, 0, f.weather.calls)
	assert.Equal(t, 1, f.backend.calls)
	assert.NotContains(t, f.backend.lastContext, "locations")
}

func TestPipeline_ProvidedCoordinatesSkipLookupDependency(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	f.location.failNames["Kyoto"] = true

	req := scheduleRequestFixture()
	lat, lon := 35.0116, 135.7681
	req.Destinations[0].Latitude = &lat
	req.Destinations[0].Longitude = &lon
	created := f.createScheduleJob(t, req)

	require.NoError(t, f.pipeline.Run(ctx, created.RequestID))

	// Weather still ran off the caller-provided coordinates.
	assert.Equal(t, 1, f.weather.calls)
	assert.Contains(t, f.backend.lastContext, "weather")
}

func TestPipeline_BackendFailureFailsJob(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	f.backend.err = errors.New("model invocation failed after 3 attempts")
	req := scheduleRequestFixture()
	created := f.createScheduleJob(t, req)

	require.NoError(t, f.pipeline.Run(ctx, created.RequestID))

	job, err := f.lifecycle.GetJob(ctx, created.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "model invocation failed")

	// Nothing was persisted and the failure was announced.
	assert.Equal(t, 0, f.schedules.writes)
	assert.Equal(t, []string{created.RequestID}, f.publisher.failed)
	assert.Empty(t, f.publisher.completed)
}

func TestPipeline_UnparseableResponseFailsJob(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	f.backend.response = "I cannot plan this trip, sorry."
	req := scheduleRequestFixture()
	created := f.createScheduleJob(t, req)

	require.NoError(t, f.pipeline.Run(ctx, created.RequestID))

	job, err := f.lifecycle.GetJob(ctx, created.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "expected schema")
	assert.Equal(t, 0, f.schedules.writes)
}

func TestPipeline_FencedResponseIsAccepted(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	f.backend.response = "```json\n{\"days\":[{\"activities\":[]}]}\n```"
	req := scheduleRequestFixture()
	created := f.createScheduleJob(t, req)

	require.NoError(t, f.pipeline.Run(ctx, created.RequestID))

	job, err := f.lifecycle.GetJob(ctx, created.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.False(t, strings.Contains(string(job.ResultPayload), "```"))
}

func TestPipeline_CancellationStopsBeforeBackend(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	req := scheduleRequestFixture()
	created := f.createScheduleJob(t, req)

	// Cancel while stage 1 is in flight; the boundary check after the
	// stage must observe it.
	f.location.onSearch = func() {
		_, err := f.lifecycle.Cancel(ctx, created.RequestID)
		require.NoError(t, err)
	}

	require.NoError(t, f.pipeline.Run(ctx, created.RequestID))

	job, err := f.lifecycle.GetJob(ctx, created.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, job.Status)
	assert.Equal(t, 0, f.backend.calls)
	assert.Equal(t, 0, f.schedules.writes)
	assert.Empty(t, f.publisher.completed)
	assert.Empty(t, f.publisher.failed)
}

func TestPipeline_CancelledBeforeStartNeverRuns(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	created := f.createScheduleJob(t, scheduleRequestFixture())

	_, err := f.lifecycle.Cancel(ctx, created.RequestID)
	require.NoError(t, err)

	require.NoError(t, f.pipeline.Run(ctx, created.RequestID))

	assert.Equal(t, 0, f.backend.calls)
	job, err := f.lifecycle.GetJob(ctx, created.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, job.Status)
}

func TestPipeline_DayRegenerationReplacesDay(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	tripID := uuid.New()

	existing, err := domain.NewGeneratedSchedule("prior-request", tripID, "gemini-2.0-flash",
		json.RawMessage(`{"days":[{"day":1},{"day":2,"theme":"old"},{"day":3}]}`), 0)
	require.NoError(t, err)
	require.NoError(t, f.schedules.ReplaceActiveSchedule(ctx, existing))

	req := domain.RegenerateDayRequest{
		TripID:   tripID,
		Day:      2,
		Feedback: "too many museums",
		Profile:  domain.TravelerProfile{GroupComposition: "family_with_kids"},
	}
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	created, err := f.lifecycle.CreateJob(ctx, tripID,
		domain.JobTypeDayScheduleRegeneration, "gemini-2.0-flash", payload)
	require.NoError(t, err)

	f.backend.response = `{"day":2,"theme":"new"}`
	require.NoError(t, f.pipeline.Run(ctx, created.RequestID))

	job, err := f.lifecycle.GetJob(ctx, created.RequestID)
	require.NoError(t, err)
	require.Equal(t, domain.JobStatusCompleted, job.Status)

	// The active schedule now carries the regenerated day, other days
	// untouched.
	active, err := f.schedules.GetActiveSchedule(ctx, tripID.String())
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"days":[{"day":1},{"day":2,"theme":"new"},{"day":3}]}`,
		string(active.Payload))
	assert.Equal(t, created.RequestID, active.RequestID)

	// The prompt carried the previous day and the feedback.
	assert.Contains(t, f.backend.lastPrompt, "too many museums")
	assert.Contains(t, f.backend.lastPrompt, `"theme":"old"`)
}

func TestPipeline_DayRegenerationWithoutActiveScheduleFails(t *testing.T) {
	ctx := context.Background()
	f := newPipelineFixture(t)
	tripID := uuid.New()

	req := domain.RegenerateDayRequest{TripID: tripID, Day: 1}
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	created, err := f.lifecycle.CreateJob(ctx, tripID,
		domain.JobTypeDayScheduleRegeneration, "gemini-2.0-flash", payload)
	require.NoError(t, err)

	require.NoError(t, f.pipeline.Run(ctx, created.RequestID))

	job, err := f.lifecycle.GetJob(ctx, created.RequestID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "no active schedule")
	assert.Equal(t, 0, f.backend.calls)
}

func TestPipeline_DayRegenerationDayOutOfRangeFails(t *testing.T) {
	// Day numbers below 1 must fail the same way as ones past the end of
	// the schedule, never index into the days array.
	for _, day := range []int{-1, 0, 5} {
		t.Run(fmt.Sprintf("day_%d", day), func(t *testing.T) {
			ctx := context.Background()
			f := newPipelineFixture(t)
			tripID := uuid.New()

			existing, err := domain.NewGeneratedSchedule("prior-request", tripID, "gemini-2.0-flash",
				json.RawMessage(`{"days":[{"day":1}]}`), 0)
			require.NoError(t, err)
			require.NoError(t, f.schedules.ReplaceActiveSchedule(ctx, existing))

			req := domain.RegenerateDayRequest{TripID: tripID, Day: day}
			payload, err := json.Marshal(req)
			require.NoError(t, err)
			created, err := f.lifecycle.CreateJob(ctx, tripID,
				domain.JobTypeDayScheduleRegeneration, "gemini-2.0-flash", payload)
			require.NoError(t, err)

			require.NoError(t, f.pipeline.Run(ctx, created.RequestID))

			job, err := f.lifecycle.GetJob(ctx, created.RequestID)
			require.NoError(t, err)
			assert.Equal(t, domain.JobStatusFailed, job.Status)
			assert.Contains(t, job.ErrorMessage, "out of range")
			assert.Equal(t, 0, f.backend.calls)
		})
	}
}
