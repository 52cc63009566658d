package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wanderplan/wanderplan-api/internal/domain"
	"github.com/wanderplan/wanderplan-api/internal/events"
	"github.com/wanderplan/wanderplan-api/internal/generation"
)

// ErrUnparseableResponse is returned when the backend payload does not
// match the expected schema. Jobs failed with it stay retry-eligible like
// any other failure: the model is nondeterministic, so a later attempt may
// well produce parseable output.
var ErrUnparseableResponse = errors.New("backend response does not match expected schema")

// PipelineOrchestrator runs the ordered generation stages for a job,
// driving lifecycle transitions and calling the external collaborators.
//
// Stages within one job run strictly sequentially. Cancellation is
// cooperative: the orchestrator re-checks job status at every stage
// boundary and stops without further side effects once it observes
// CANCELLED. Stage 1 and 2 sub-failures are absorbed per destination;
// any stage 3 or 4 failure is fatal to the job.
type PipelineOrchestrator struct {
	lifecycle    *LifecycleManager
	schedules    ScheduleRepository
	location     generation.LocationLookup
	weather      generation.WeatherLookup
	backend      generation.Backend
	publisher    events.Publisher
	stageTimeout time.Duration
	logger       *slog.Logger
}

// NewPipelineOrchestrator creates a PipelineOrchestrator. stageTimeout
// bounds each external call; zero disables the bound.
func NewPipelineOrchestrator(
	lifecycle *LifecycleManager,
	schedules ScheduleRepository,
	location generation.LocationLookup,
	weather generation.WeatherLookup,
	backend generation.Backend,
	publisher events.Publisher,
	stageTimeout time.Duration,
	logger *slog.Logger,
) *PipelineOrchestrator {
	return &PipelineOrchestrator{
		lifecycle:    lifecycle,
		schedules:    schedules,
		location:     location,
		weather:      weather,
		backend:      backend,
		publisher:    publisher,
		stageTimeout: stageTimeout,
		logger:       logger.With("component", "pipeline"),
	}
}

// Run executes the pipeline for the given job. It returns an error only
// for infrastructure failures; job-level failures are recorded on the job
// itself and reported through the notification publisher.
func (p *PipelineOrchestrator) Run(ctx context.Context, requestID string) error {
	job, err := p.lifecycle.GetJob(ctx, requestID)
	if err != nil {
		return fmt.Errorf("failed to load job for pipeline: %w", err)
	}

	switch job.JobType {
	case domain.JobTypeDayScheduleRegeneration:
		return p.runDayRegeneration(ctx, job)
	default:
		return p.runScheduleGeneration(ctx, job)
	}
}

// runScheduleGeneration drives the five-stage full generation pipeline.
func (p *PipelineOrchestrator) runScheduleGeneration(ctx context.Context, job domain.Job) error {
	logger := p.logger.With("request_id", job.RequestID, "trip_id", job.TripID)
	startedAt := time.Now()

	job, err := p.lifecycle.Start(ctx, job.RequestID)
	if err != nil {
		// A cancel that landed between enqueue and start is not a failure.
		if errors.Is(err, domain.ErrConflict) {
			logger.InfoContext(ctx, "pipeline not started", "error", err)
			return nil
		}
		return err
	}

	var req domain.ScheduleRequest
	if err := json.Unmarshal(job.RequestPayload, &req); err != nil {
		return p.failJob(ctx, job.RequestID, fmt.Sprintf("invalid request payload: %v", err))
	}

	stages := scheduleStages

	// Stage 1: collect location data. Per-destination failures degrade the
	// context but never fail the job.
	locations := p.collectLocations(ctx, logger, req.Destinations)
	if stop, err := p.advance(ctx, job.RequestID, stages[0], logger); stop || err != nil {
		return err
	}

	// Stage 2: collect weather data. Failures are logged and omitted.
	forecasts := p.collectForecasts(ctx, logger, req.Destinations, locations)
	if stop, err := p.advance(ctx, job.RequestID, stages[1], logger); stop || err != nil {
		return err
	}

	// Stage 3: invoke the generation backend. Fatal on error.
	prompt, err := buildSchedulePrompt(req)
	if err != nil {
		return p.failJob(ctx, job.RequestID, err.Error())
	}

	stageCtx, cancel := p.stageContext(ctx)
	raw, err := p.backend.GenerateSchedule(stageCtx, job.AIModel, prompt, buildPromptContext(locations, forecasts))
	cancel()
	if err != nil {
		return p.failJob(ctx, job.RequestID, err.Error())
	}
	if stop, err := p.advance(ctx, job.RequestID, stages[2], logger); stop || err != nil {
		return err
	}

	// Stage 4: parse, validate and persist the result. Fatal on error.
	payload, err := parseSchedulePayload(raw)
	if err != nil {
		return p.failJob(ctx, job.RequestID, err.Error())
	}

	if err := p.persistSchedule(ctx, job, payload, time.Since(startedAt)); err != nil {
		return p.failJob(ctx, job.RequestID, err.Error())
	}
	if stop, err := p.advance(ctx, job.RequestID, stages[3], logger); stop || err != nil {
		return err
	}

	// Stage 5: finalize.
	if _, err := p.lifecycle.Complete(ctx, job.RequestID, payload); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil
		}
		return err
	}
	p.publisher.NotifyComplete(ctx, job.RequestID, payload)

	logger.InfoContext(ctx, "schedule generation completed",
		"generation_seconds", time.Since(startedAt).Seconds())
	return nil
}

// runDayRegeneration drives the shorter single-day pipeline: analyze the
// existing day, invoke the backend, persist the superseding schedule.
func (p *PipelineOrchestrator) runDayRegeneration(ctx context.Context, job domain.Job) error {
	logger := p.logger.With("request_id", job.RequestID, "trip_id", job.TripID)
	startedAt := time.Now()

	job, err := p.lifecycle.Start(ctx, job.RequestID)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			logger.InfoContext(ctx, "pipeline not started", "error", err)
			return nil
		}
		return err
	}

	var req domain.RegenerateDayRequest
	if err := json.Unmarshal(job.RequestPayload, &req); err != nil {
		return p.failJob(ctx, job.RequestID, fmt.Sprintf("invalid request payload: %v", err))
	}

	stages := regenerationStages

	// Stage 1: analyze the existing day.
	active, err := p.schedules.GetActiveSchedule(ctx, job.TripID.String())
	if err != nil {
		return p.failJob(ctx, job.RequestID, fmt.Sprintf("no active schedule to regenerate: %v", err))
	}

	days, err := decodeScheduleDays(active.Payload)
	if err != nil {
		return p.failJob(ctx, job.RequestID, err.Error())
	}
	if req.Day < 1 || req.Day > len(days) {
		return p.failJob(ctx, job.RequestID,
			fmt.Sprintf("day %d out of range, schedule has %d days", req.Day, len(days)))
	}

	if stop, err := p.advance(ctx, job.RequestID, stages[0], logger); stop || err != nil {
		return err
	}

	// Stage 2: invoke the generation backend.
	prompt, err := buildRegeneratePrompt(req, string(days[req.Day-1]))
	if err != nil {
		return p.failJob(ctx, job.RequestID, err.Error())
	}

	stageCtx, cancel := p.stageContext(ctx)
	raw, err := p.backend.GenerateSchedule(stageCtx, job.AIModel, prompt, nil)
	cancel()
	if err != nil {
		return p.failJob(ctx, job.RequestID, err.Error())
	}
	if stop, err := p.advance(ctx, job.RequestID, stages[1], logger); stop || err != nil {
		return err
	}

	// Stage 3: splice the regenerated day in and persist the superseding
	// schedule.
	newDay := stripCodeFences(raw)
	if !json.Valid([]byte(newDay)) {
		return p.failJob(ctx, job.RequestID,
			fmt.Sprintf("%v: regenerated day is not valid JSON", ErrUnparseableResponse))
	}

	payload, err := spliceScheduleDay(active.Payload, req.Day-1, json.RawMessage(newDay))
	if err != nil {
		return p.failJob(ctx, job.RequestID, err.Error())
	}

	if err := p.persistSchedule(ctx, job, payload, time.Since(startedAt)); err != nil {
		return p.failJob(ctx, job.RequestID, err.Error())
	}
	if stop, err := p.advance(ctx, job.RequestID, stages[2], logger); stop || err != nil {
		return err
	}

	if _, err := p.lifecycle.Complete(ctx, job.RequestID, payload); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil
		}
		return err
	}
	p.publisher.NotifyComplete(ctx, job.RequestID, payload)

	logger.InfoContext(ctx, "day regeneration completed", "day", req.Day)
	return nil
}

// collectLocations resolves each destination to a place candidate,
// recording a degraded (absent) result for destinations that fail.
func (p *PipelineOrchestrator) collectLocations(
	ctx context.Context,
	logger *slog.Logger,
	destinations []domain.Destination,
) map[string]generation.PlaceCandidate {
	locations := make(map[string]generation.PlaceCandidate)

	for _, dest := range destinations {
		stageCtx, cancel := p.stageContext(ctx)
		candidates, err := p.location.Search(stageCtx, dest.Name, 1)
		cancel()

		if err != nil || len(candidates) == 0 {
			logger.WarnContext(ctx, "location lookup degraded for destination",
				"destination", dest.Name,
				"error", err)
			continue
		}
		locations[dest.Name] = candidates[0]
	}

	return locations
}

// collectForecasts fetches weather for each destination with known
// coordinates. Lookup failures are logged and omitted.
func (p *PipelineOrchestrator) collectForecasts(
	ctx context.Context,
	logger *slog.Logger,
	destinations []domain.Destination,
	locations map[string]generation.PlaceCandidate,
) map[string]*generation.WeatherForecast {
	forecasts := make(map[string]*generation.WeatherForecast)

	for _, dest := range destinations {
		lat, lon, ok := destinationCoordinates(dest, locations)
		if !ok {
			logger.WarnContext(ctx, "no coordinates for destination, skipping forecast",
				"destination", dest.Name)
			continue
		}

		stageCtx, cancel := p.stageContext(ctx)
		forecast, err := p.weather.Forecast(stageCtx, lat, lon, dest.StartDate, dest.EndDate)
		cancel()

		if err != nil {
			logger.WarnContext(ctx, "weather lookup failed for destination",
				"destination", dest.Name,
				"error", err)
			continue
		}
		forecasts[dest.Name] = forecast
	}

	return forecasts
}

// destinationCoordinates prefers caller-provided coordinates, falling back
// to the resolved place candidate.
func destinationCoordinates(
	dest domain.Destination,
	locations map[string]generation.PlaceCandidate,
) (float64, float64, bool) {
	if dest.Latitude != nil && dest.Longitude != nil {
		return *dest.Latitude, *dest.Longitude, true
	}
	if candidate, ok := locations[dest.Name]; ok {
		return candidate.Latitude, candidate.Longitude, true
	}
	return 0, 0, false
}

// persistSchedule writes the new schedule artifact and deactivates any
// schedule it supersedes, atomically.
func (p *PipelineOrchestrator) persistSchedule(
	ctx context.Context,
	job domain.Job,
	payload json.RawMessage,
	generationTime time.Duration,
) error {
	schedule, err := domain.NewGeneratedSchedule(
		job.RequestID, job.TripID, job.AIModel, payload, generationTime)
	if err != nil {
		return err
	}

	return p.schedules.ReplaceActiveSchedule(ctx, schedule)
}

// failJob records a fatal stage failure on the job and publishes the
// outcome. The failure reason is captured verbatim as the job's error
// message.
func (p *PipelineOrchestrator) failJob(ctx context.Context, requestID, reason string) error {
	if _, err := p.lifecycle.Fail(ctx, requestID, reason); err != nil {
		// A cancel that raced the failure wins; nothing further to record.
		if errors.Is(err, domain.ErrConflict) {
			return nil
		}
		return err
	}

	p.publisher.NotifyFailed(ctx, requestID)
	p.logger.ErrorContext(ctx, "pipeline stage failed",
		"request_id", requestID,
		"reason", reason)
	return nil
}

// advance records stage completion at a boundary and reports whether the
// pipeline should stop. A Conflict on the progress update means a cancel
// won the race; the status re-check below confirms it.
func (p *PipelineOrchestrator) advance(
	ctx context.Context,
	requestID string,
	stage Stage,
	logger *slog.Logger,
) (bool, error) {
	if _, err := p.lifecycle.UpdateProgress(ctx, requestID, stage.Checkpoint, stage.Label); err != nil {
		if !errors.Is(err, domain.ErrConflict) {
			return false, err
		}
	}
	return p.stopIfCancelled(ctx, requestID, logger)
}

// stopIfCancelled re-checks job status at a stage boundary and reports
// whether the pipeline should stop without further side effects.
func (p *PipelineOrchestrator) stopIfCancelled(
	ctx context.Context,
	requestID string,
	logger *slog.Logger,
) (bool, error) {
	job, err := p.lifecycle.GetJob(ctx, requestID)
	if err != nil {
		return false, err
	}

	if job.Status == domain.JobStatusCancelled {
		logger.InfoContext(ctx, "pipeline observed cancellation, stopping")
		return true, nil
	}

	return false, nil
}

// stageContext bounds one external call with the configured stage timeout.
func (p *PipelineOrchestrator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.stageTimeout > 0 {
		return context.WithTimeout(ctx, p.stageTimeout)
	}
	return context.WithCancel(ctx)
}

// parseSchedulePayload validates the backend response and returns the
// canonical schedule JSON.
func parseSchedulePayload(raw string) (json.RawMessage, error) {
	cleaned := stripCodeFences(raw)

	var parsed struct {
		Days []json.RawMessage `json:"days"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableResponse, err)
	}
	if len(parsed.Days) == 0 {
		return nil, fmt.Errorf("%w: no days in schedule", ErrUnparseableResponse)
	}

	return json.RawMessage(cleaned), nil
}

// decodeScheduleDays extracts the days array from a schedule payload.
func decodeScheduleDays(payload json.RawMessage) ([]json.RawMessage, error) {
	var parsed struct {
		Days []json.RawMessage `json:"days"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableResponse, err)
	}
	return parsed.Days, nil
}

// spliceScheduleDay replaces one entry of the payload's days array,
// leaving every other top-level field intact.
func spliceScheduleDay(payload json.RawMessage, index int, newDay json.RawMessage) (json.RawMessage, error) {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(payload, &object); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableResponse, err)
	}

	var days []json.RawMessage
	if err := json.Unmarshal(object["days"], &days); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseableResponse, err)
	}
	days[index] = newDay

	encodedDays, err := json.Marshal(days)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schedule days: %w", err)
	}
	object["days"] = encodedDays

	merged, err := json.Marshal(object)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schedule payload: %w", err)
	}
	return merged, nil
}

// stripCodeFences removes a surrounding markdown code fence, which some
// models emit despite being told not to.
func stripCodeFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return strings.TrimSpace(trimmed)
}
