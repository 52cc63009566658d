package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wanderplan/wanderplan-api/internal/api/shared"
	"github.com/wanderplan/wanderplan-api/internal/recommendation"
)

// RecommendationHandler exposes the recommendation cache operations.
type RecommendationHandler struct {
	service *recommendation.Service
	logger  *slog.Logger
}

// NewRecommendationHandler creates a RecommendationHandler.
func NewRecommendationHandler(service *recommendation.Service, logger *slog.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		service: service,
		logger:  logger.With("component", "recommendation_handler"),
	}
}

// RecommendationResponse wraps a recommendation with its provenance.
type RecommendationResponse struct {
	PlaceID     string          `json:"place_id"`
	AIModel     string          `json:"ai_model"`
	FromCache   bool            `json:"from_cache"`
	GeneratedAt time.Time       `json:"generated_at"`
	Payload     json.RawMessage `json:"payload"`
}

// Get handles POST /recommendations. POST rather than GET because the
// traveler profile does not fit in a URL.
func (h *RecommendationHandler) Get(w http.ResponseWriter, r *http.Request) {
	var req recommendation.Request
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.service.Get(r.Context(), req)
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, RecommendationResponse{
		PlaceID:     result.Entry.PlaceID,
		AIModel:     result.Entry.AIModel,
		FromCache:   result.FromCache,
		GeneratedAt: result.Entry.GeneratedAt,
		Payload:     result.Entry.Payload,
	})
}

// Invalidate handles DELETE /recommendations/places/{placeID}.
func (h *RecommendationHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "placeID")

	expired, err := h.service.Invalidate(r.Context(), placeID)
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, map[string]any{
		"place_id": placeID,
		"expired":  expired,
	})
}

// parsePositiveInt parses a URL parameter that must be a positive integer.
func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("value must be positive, got %d", n)
	}
	return n, nil
}
