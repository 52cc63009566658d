package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []*JobEvent
}

func (h *recordingHandler) HandleJobEvent(_ context.Context, event *JobEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func newTestPublisher() *InMemoryPublisher {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewInMemoryPublisher(logger)
}

func TestNotifyCompleteReachesAllHandlers(t *testing.T) {
	publisher := newTestPublisher()
	first := &recordingHandler{}
	second := &recordingHandler{}
	publisher.RegisterHandler(first)
	publisher.RegisterHandler(second)

	payload := json.RawMessage(`{"days":[]}`)
	publisher.NotifyComplete(context.Background(), "req-1", payload)

	for _, h := range []*recordingHandler{first, second} {
		require.Len(t, h.events, 1)
		assert.Equal(t, "req-1", h.events[0].RequestID)
		assert.Equal(t, JobEventCompleted, h.events[0].Type)
		assert.Equal(t, payload, h.events[0].Payload)
	}
}

func TestNotifyFailed(t *testing.T) {
	publisher := newTestPublisher()
	handler := &recordingHandler{}
	publisher.RegisterHandler(handler)

	publisher.NotifyFailed(context.Background(), "req-2")

	require.Len(t, handler.events, 1)
	assert.Equal(t, JobEventFailed, handler.events[0].Type)
	assert.Empty(t, handler.events[0].Payload)
}

func TestPublishWithoutHandlersIsNotAnError(t *testing.T) {
	publisher := newTestPublisher()

	// Must not panic or block.
	publisher.NotifyComplete(context.Background(), "req-3", nil)
	publisher.NotifyFailed(context.Background(), "req-3")
}
