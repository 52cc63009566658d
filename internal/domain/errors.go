// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when an operation is not valid for the
	// entity's current state, e.g. starting a job that is not queued.
	ErrConflict = errors.New("operation conflicts with current state")

	// ErrInvalidProgress is returned when a progress value falls outside
	// the inclusive [0,100] range.
	ErrInvalidProgress = errors.New("progress must be between 0 and 100")

	// ErrInvalidJobStatus is returned when a job status is not one of the
	// recognized lifecycle states.
	ErrInvalidJobStatus = errors.New("invalid job status")

	// ErrInvalidJobType is returned when a job type is not recognized.
	ErrInvalidJobType = errors.New("invalid job type")

	// ErrEmptyTripID is returned when a trip ID is missing.
	ErrEmptyTripID = errors.New("trip ID cannot be empty")

	// ErrInvalidDateRange is returned when a destination's start date falls
	// after its end date.
	ErrInvalidDateRange = errors.New("start date must not be after end date")
)
