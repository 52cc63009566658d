package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GeneratedSchedule is the artifact produced by a successful schedule
// generation pipeline run. It is written once and never mutated, except
// that IsActive may be cleared when a regeneration supersedes it.
type GeneratedSchedule struct {
	ID                    uuid.UUID       `json:"id"`
	RequestID             string          `json:"request_id"`
	TripID                uuid.UUID       `json:"trip_id"`
	AIModel               string          `json:"ai_model"`
	Payload               json.RawMessage `json:"payload"`
	GenerationTimeSeconds float64         `json:"generation_time_seconds"`
	GeneratedAt           time.Time       `json:"generated_at"`
	IsActive              bool            `json:"is_active"`
}

// NewGeneratedSchedule creates a new active GeneratedSchedule.
// Returns an error if validation fails.
func NewGeneratedSchedule(
	requestID string,
	tripID uuid.UUID,
	aiModel string,
	payload json.RawMessage,
	generationTime time.Duration,
) (*GeneratedSchedule, error) {
	schedule := &GeneratedSchedule{
		ID:                    uuid.New(),
		RequestID:             requestID,
		TripID:                tripID,
		AIModel:               aiModel,
		Payload:               payload,
		GenerationTimeSeconds: generationTime.Seconds(),
		GeneratedAt:           time.Now().UTC(),
		IsActive:              true,
	}

	if err := schedule.Validate(); err != nil {
		return nil, err
	}

	return schedule, nil
}

// Validate checks if the GeneratedSchedule has valid data.
func (s *GeneratedSchedule) Validate() error {
	if s.RequestID == "" {
		return fmt.Errorf("%w: request ID cannot be empty", ErrValidation)
	}

	if s.TripID == uuid.Nil {
		return ErrEmptyTripID
	}

	if len(s.Payload) == 0 {
		return fmt.Errorf("%w: schedule payload cannot be empty", ErrValidation)
	}

	var js json.RawMessage
	if err := json.Unmarshal(s.Payload, &js); err != nil {
		return fmt.Errorf("%w: schedule payload must be valid JSON", ErrValidation)
	}

	return nil
}
