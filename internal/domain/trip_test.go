package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestScheduleRequestValidate(t *testing.T) {
	valid := ScheduleRequest{
		TripID: uuid.New(),
		Destinations: []Destination{
			{Name: "Lisbon", StartDate: "2026-09-01", EndDate: "2026-09-04"},
			{Name: "Porto", StartDate: "2026-09-04", EndDate: "2026-09-07"},
		},
	}
	assert.NoError(t, valid.Validate())
}

func TestScheduleRequestRejectsInvertedDates(t *testing.T) {
	req := ScheduleRequest{
		TripID: uuid.New(),
		Destinations: []Destination{
			{Name: "Lisbon", StartDate: "2026-09-04", EndDate: "2026-09-01"},
		},
	}
	assert.ErrorIs(t, req.Validate(), ErrInvalidDateRange)
}

func TestScheduleRequestRejectsMissingFields(t *testing.T) {
	req := ScheduleRequest{
		Destinations: []Destination{{Name: "Lisbon", StartDate: "2026-09-01", EndDate: "2026-09-02"}},
	}
	assert.ErrorIs(t, req.Validate(), ErrEmptyTripID)

	req = ScheduleRequest{TripID: uuid.New()}
	assert.ErrorIs(t, req.Validate(), ErrValidation)

	req = ScheduleRequest{
		TripID:       uuid.New(),
		Destinations: []Destination{{Name: "", StartDate: "2026-09-01", EndDate: "2026-09-02"}},
	}
	assert.ErrorIs(t, req.Validate(), ErrValidation)
}

func TestRegenerateDayRequestValidate(t *testing.T) {
	req := RegenerateDayRequest{TripID: uuid.New(), Day: 2}
	assert.NoError(t, req.Validate())

	req.Day = 0
	assert.ErrorIs(t, req.Validate(), ErrValidation)

	req = RegenerateDayRequest{Day: 1}
	assert.ErrorIs(t, req.Validate(), ErrEmptyTripID)
}
