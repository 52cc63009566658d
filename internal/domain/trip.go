package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Destination is one stop on a trip, with the date window the travelers
// spend there. Coordinates are optional; when absent the pipeline resolves
// them through the location lookup.
type Destination struct {
	Name      string   `json:"name"`
	StartDate string   `json:"start_date"` // YYYY-MM-DD
	EndDate   string   `json:"end_date"`   // YYYY-MM-DD
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Validate checks the destination name and date window.
func (d Destination) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: destination name cannot be empty", ErrValidation)
	}

	start, err := time.Parse("2006-01-02", d.StartDate)
	if err != nil {
		return fmt.Errorf("%w: invalid start date %q", ErrValidation, d.StartDate)
	}

	end, err := time.Parse("2006-01-02", d.EndDate)
	if err != nil {
		return fmt.Errorf("%w: invalid end date %q", ErrValidation, d.EndDate)
	}

	if start.After(end) {
		return fmt.Errorf("%w: destination %q", ErrInvalidDateRange, d.Name)
	}

	return nil
}

// ScheduleRequest is the validated input for a schedule generation job.
// It is serialized into the job's request payload.
type ScheduleRequest struct {
	TripID                 uuid.UUID       `json:"trip_id"`
	Destinations           []Destination   `json:"destinations"`
	Profile                TravelerProfile `json:"profile"`
	RequireHighPerformance bool            `json:"require_high_performance"`
}

// Validate checks the request's trip ID and every destination. A request
// that fails here is rejected before any job is created.
func (r ScheduleRequest) Validate() error {
	if r.TripID == uuid.Nil {
		return ErrEmptyTripID
	}

	if len(r.Destinations) == 0 {
		return fmt.Errorf("%w: at least one destination is required", ErrValidation)
	}

	for _, d := range r.Destinations {
		if err := d.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// RegenerateDayRequest is the validated input for a single-day schedule
// regeneration job.
type RegenerateDayRequest struct {
	TripID                 uuid.UUID       `json:"trip_id"`
	Day                    int             `json:"day"`
	Feedback               string          `json:"feedback,omitempty"`
	Profile                TravelerProfile `json:"profile"`
	RequireHighPerformance bool            `json:"require_high_performance"`
}

// Validate checks the request's trip ID and day number.
func (r RegenerateDayRequest) Validate() error {
	if r.TripID == uuid.Nil {
		return ErrEmptyTripID
	}

	if r.Day < 1 {
		return fmt.Errorf("%w: day must be positive, got %d", ErrValidation, r.Day)
	}

	return nil
}
