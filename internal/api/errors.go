// Package api exposes the job orchestration and recommendation services
// over HTTP.
package api

import (
	"errors"
	"net/http"

	"github.com/wanderplan/wanderplan-api/internal/domain"
	"github.com/wanderplan/wanderplan-api/internal/job"
	"github.com/wanderplan/wanderplan-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrEmptyTripID),
		errors.Is(err, domain.ErrInvalidDateRange),
		errors.Is(err, domain.ErrInvalidProgress):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrJobNotFound),
		errors.Is(err, store.ErrScheduleNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, store.ErrRequestIDExists):
		return http.StatusConflict

	case errors.Is(err, job.ErrQueueFull):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-safe message for an error. Known
// error classes keep their message; everything else is replaced with a
// generic one so internals never leak.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrEmptyTripID),
		errors.Is(err, domain.ErrInvalidDateRange),
		errors.Is(err, domain.ErrInvalidProgress),
		errors.Is(err, domain.ErrConflict):
		return err.Error()

	case errors.Is(err, store.ErrJobNotFound):
		return "Job not found"

	case errors.Is(err, store.ErrScheduleNotFound):
		return "No active schedule for this trip"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, job.ErrQueueFull):
		return "Service is at capacity, try again shortly"

	default:
		return "An unexpected error occurred"
	}
}
