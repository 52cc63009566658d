package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/wanderplan/wanderplan-api/internal/config"
	"github.com/wanderplan/wanderplan-api/internal/generation"
	"google.golang.org/genai"
)

// GeminiBackend implements the generation.Backend interface using Google's
// Gemini API.
type GeminiBackend struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains LLM-specific configuration
	config config.LLMConfig

	// client is the Gemini API client for making requests
	client *genai.Client
}

// NewGeminiBackend creates a new GeminiBackend from the LLM configuration.
// Returns an error if the configuration is invalid or the client cannot
// be constructed.
func NewGeminiBackend(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiBackend, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &GeminiBackend{
		logger: logger.With("component", "gemini_backend"),
		config: cfg,
		client: client,
	}, nil
}

// GenerateSchedule invokes the model with a schedule prompt and returns the
// raw response payload.
func (b *GeminiBackend) GenerateSchedule(
	ctx context.Context,
	model, prompt string,
	promptContext map[string]any,
) (string, error) {
	return b.generate(ctx, model, prompt, promptContext, "schedule")
}

// GenerateRecommendation invokes the model with a per-place recommendation
// prompt and returns the raw response payload.
func (b *GeminiBackend) GenerateRecommendation(
	ctx context.Context,
	model, prompt string,
	promptContext map[string]any,
) (string, error) {
	return b.generate(ctx, model, prompt, promptContext, "recommendation")
}

// generate calls the Gemini API with exponential backoff retry logic.
// Transient errors (network, rate limiting) are retried up to the
// configured budget with jittered backoff; permanent errors (safety
// blocks, empty responses) are returned immediately.
func (b *GeminiBackend) generate(
	ctx context.Context,
	model, prompt string,
	promptContext map[string]any,
	kind string,
) (string, error) {
	if model == "" {
		return "", fmt.Errorf("%w: model cannot be empty", generation.ErrInvalidConfig)
	}
	if prompt == "" {
		return "", fmt.Errorf("%w: prompt cannot be empty", generation.ErrGenerationFailed)
	}

	fullPrompt := appendContext(prompt, promptContext)

	maxRetries := b.config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 3
	}
	baseDelaySeconds := b.config.RetryDelaySeconds
	if baseDelaySeconds < 1 {
		baseDelaySeconds = 2
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; ; attempt++ {
		b.logger.InfoContext(ctx, "calling Gemini API",
			"kind", kind,
			"model", model,
			"attempt", attempt+1,
			"max_attempts", maxRetries+1)

		text, err := b.callOnce(ctx, model, fullPrompt)
		if err == nil {
			return text, nil
		}

		b.logger.ErrorContext(ctx, "Gemini API call failed",
			"kind", kind,
			"model", model,
			"attempt", attempt+1,
			"error", err)

		// Permanent failures are not worth retrying against the same model.
		if errors.Is(err, generation.ErrContentBlocked) ||
			errors.Is(err, generation.ErrInvalidResponse) {
			return "", err
		}

		if attempt >= maxRetries {
			return "", fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, maxRetries, err)
		}

		// delay = baseDelay * 2^attempt * jitter in [0.5, 1.0)
		backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		jitter := 0.5 + rng.Float64()*0.5
		delay := time.Duration(backoffSeconds * jitter * float64(time.Second))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

// callOnce performs a single API call and classifies its outcome.
func (b *GeminiBackend) callOnce(ctx context.Context, model, prompt string) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		// API-level errors are assumed transient; the retry loop decides.
		return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: response finish reason %s",
			generation.ErrContentBlocked, candidate.FinishReason)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	return text, nil
}

// appendContext attaches the auxiliary context map to the prompt as a JSON
// block so the model sees collected facts alongside the instructions.
func appendContext(prompt string, promptContext map[string]any) string {
	if len(promptContext) == 0 {
		return prompt
	}

	contextJSON, err := json.Marshal(promptContext)
	if err != nil {
		return prompt
	}

	return prompt + "\n\nContext:\n" + string(contextJSON)
}
