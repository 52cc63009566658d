package gemini

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wanderplan/wanderplan-api/internal/config"
	"github.com/wanderplan/wanderplan-api/internal/generation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNewGeminiBackendRequiresLogger(t *testing.T) {
	_, err := NewGeminiBackend(context.Background(), nil, config.LLMConfig{GeminiAPIKey: "key"})
	assert.Error(t, err)
}

func TestNewGeminiBackendRequiresAPIKey(t *testing.T) {
	_, err := NewGeminiBackend(context.Background(), testLogger(), config.LLMConfig{})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestGenerateRejectsEmptyInputs(t *testing.T) {
	backend := &GeminiBackend{logger: testLogger()}

	_, err := backend.generate(context.Background(), "", "prompt", nil, "schedule")
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = backend.generate(context.Background(), "gemini-2.0-flash", "", nil, "schedule")
	assert.ErrorIs(t, err, generation.ErrGenerationFailed)
}

func TestAppendContext(t *testing.T) {
	assert.Equal(t, "prompt", appendContext("prompt", nil))
	assert.Equal(t, "prompt", appendContext("prompt", map[string]any{}))

	withContext := appendContext("prompt", map[string]any{"weather": "sunny"})
	assert.Contains(t, withContext, "prompt")
	assert.Contains(t, withContext, `"weather":"sunny"`)
}
