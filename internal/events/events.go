// Package events decouples the orchestration core from push-notification
// transport. The core publishes job outcomes; subscribers (WebSocket
// sessions, webhooks) register handlers and own their connection
// lifecycle entirely outside the core.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// JobEventType classifies a job outcome notification.
type JobEventType string

// Possible job event types
const (
	JobEventCompleted JobEventType = "job_completed"
	JobEventFailed    JobEventType = "job_failed"
)

// JobEvent is a push notification about a job reaching a terminal state.
type JobEvent struct {
	// RequestID identifies the job the event belongs to
	RequestID string `json:"request_id"`

	// Type indicates the outcome being announced
	Type JobEventType `json:"type"`

	// Payload carries the result payload on completion, empty on failure
	Payload json.RawMessage `json:"payload,omitempty"`

	// OccurredAt is the timestamp when the event was published
	OccurredAt time.Time `json:"occurred_at"`
}

// Handler processes published job events. Implementations must not block
// the publisher for long; slow consumers should buffer internally.
type Handler interface {
	// HandleJobEvent processes the given event within the provided context.
	HandleJobEvent(ctx context.Context, event *JobEvent)
}

// Publisher is the notification sink the orchestration core writes to.
// Publishing is fire-and-forget: the absence of any subscriber is not an
// error and publish failures never affect job state.
type Publisher interface {
	// NotifyComplete announces a successfully completed job and its result.
	NotifyComplete(ctx context.Context, requestID string, payload json.RawMessage)

	// NotifyFailed announces a failed job.
	NotifyFailed(ctx context.Context, requestID string)
}
