package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// InMemoryPublisher is a simple implementation of the Publisher interface
// that fans events out to in-process handlers.
type InMemoryPublisher struct {
	handlers []Handler
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewInMemoryPublisher creates a new InMemoryPublisher.
func NewInMemoryPublisher(logger *slog.Logger) *InMemoryPublisher {
	return &InMemoryPublisher{
		handlers: make([]Handler, 0),
		logger:   logger.With("component", "in_memory_publisher"),
	}
}

// RegisterHandler adds a new handler to receive job events.
func (p *InMemoryPublisher) RegisterHandler(handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, handler)
	p.logger.Debug("registered job event handler", "handler_count", len(p.handlers))
}

// NotifyComplete announces a successfully completed job and its result.
func (p *InMemoryPublisher) NotifyComplete(
	ctx context.Context,
	requestID string,
	payload json.RawMessage,
) {
	p.publish(ctx, &JobEvent{
		RequestID:  requestID,
		Type:       JobEventCompleted,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	})
}

// NotifyFailed announces a failed job.
func (p *InMemoryPublisher) NotifyFailed(ctx context.Context, requestID string) {
	p.publish(ctx, &JobEvent{
		RequestID:  requestID,
		Type:       JobEventFailed,
		OccurredAt: time.Now().UTC(),
	})
}

// publish fans the event out to every registered handler. No handlers is
// not an error; there is simply no one listening.
func (p *InMemoryPublisher) publish(ctx context.Context, event *JobEvent) {
	p.mu.RLock()
	handlers := make([]Handler, len(p.handlers))
	copy(handlers, p.handlers)
	p.mu.RUnlock()

	if len(handlers) == 0 {
		p.logger.Debug("no handlers registered for job event",
			"request_id", event.RequestID,
			"event_type", event.Type)
		return
	}

	for _, handler := range handlers {
		handler.HandleJobEvent(ctx, event)
	}
}
