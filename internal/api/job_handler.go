package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wanderplan/wanderplan-api/internal/api/shared"
	"github.com/wanderplan/wanderplan-api/internal/domain"
	"github.com/wanderplan/wanderplan-api/internal/job"
)

// JobHandler exposes job submission and lifecycle operations.
type JobHandler struct {
	service *job.Service
	logger  *slog.Logger
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(service *job.Service, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		service: service,
		logger:  logger.With("component", "job_handler"),
	}
}

// GenerateScheduleRequest is the body of a schedule generation submission.
// The trip ID comes from the URL.
type GenerateScheduleRequest struct {
	Destinations           []domain.Destination   `json:"destinations"`
	Profile                domain.TravelerProfile `json:"profile"`
	RequireHighPerformance bool                   `json:"require_high_performance"`
}

// RegenerateDayBody is the body of a day regeneration submission.
type RegenerateDayBody struct {
	Feedback               string                 `json:"feedback"`
	Profile                domain.TravelerProfile `json:"profile"`
	RequireHighPerformance bool                   `json:"require_high_performance"`
}

// JobResponse is the envelope returned on job creation and lifecycle
// operations.
type JobResponse struct {
	RequestID string           `json:"request_id"`
	JobType   domain.JobType   `json:"job_type"`
	TripID    string           `json:"trip_id"`
	Status    domain.JobStatus `json:"status"`
	AIModel   string           `json:"ai_model"`
}

func jobResponse(j domain.Job) JobResponse {
	return JobResponse{
		RequestID: j.RequestID,
		JobType:   j.JobType,
		TripID:    j.TripID.String(),
		Status:    j.Status,
		AIModel:   j.AIModel,
	}
}

// GenerateSchedule handles POST /trips/{tripID}/schedule.
func (h *JobHandler) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid trip ID")
		return
	}

	var body GenerateScheduleRequest
	if err := shared.DecodeJSON(r, &body); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.service.EnqueueScheduleGeneration(r.Context(), domain.ScheduleRequest{
		TripID:                 tripID,
		Destinations:           body.Destinations,
		Profile:                body.Profile,
		RequireHighPerformance: body.RequireHighPerformance,
	})
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, jobResponse(created))
}

// RegenerateDay handles POST /trips/{tripID}/schedule/days/{day}/regenerate.
func (h *JobHandler) RegenerateDay(w http.ResponseWriter, r *http.Request) {
	tripID, err := uuid.Parse(chi.URLParam(r, "tripID"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid trip ID")
		return
	}

	day, err := parsePositiveInt(chi.URLParam(r, "day"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid day number")
		return
	}

	var body RegenerateDayBody
	if err := shared.DecodeJSON(r, &body); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.service.EnqueueDayRegeneration(r.Context(), domain.RegenerateDayRequest{
		TripID:                 tripID,
		Day:                    day,
		Feedback:               body.Feedback,
		Profile:                body.Profile,
		RequireHighPerformance: body.RequireHighPerformance,
	})
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, jobResponse(created))
}

// GetStatus handles GET /jobs/{requestID}.
func (h *JobHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	snapshot, err := h.service.GetStatus(r.Context(), requestID)
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, snapshot)
}

// GetResult handles GET /jobs/{requestID}/result.
func (h *JobHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	result, err := h.service.GetResult(r.Context(), requestID)
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result); err != nil {
		h.logger.Error("failed to write result payload", "error", err)
	}
}

// Cancel handles POST /jobs/{requestID}/cancel.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	cancelled, err := h.service.Cancel(r.Context(), requestID)
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobResponse(cancelled))
}

// Retry handles POST /jobs/{requestID}/retry.
func (h *JobHandler) Retry(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	retried, err := h.service.Retry(r.Context(), requestID)
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, jobResponse(retried))
}
