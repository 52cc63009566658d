package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("WANDERPLAN_DATABASE_URL", "postgres://localhost:5432/wanderplan")
	t.Setenv("WANDERPLAN_LLM_GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost:5432/wanderplan", cfg.Database.URL)
	assert.Equal(t, "test-key", cfg.LLM.GeminiAPIKey)
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("WANDERPLAN_DATABASE_URL", "postgres://localhost:5432/wanderplan")
	t.Setenv("WANDERPLAN_LLM_GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.DefaultModel)
	assert.Equal(t, 3, cfg.Job.MaxRetry)
	assert.Equal(t, 30*time.Minute, cfg.Job.RetryBackoff)
	assert.Equal(t, 7*24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 3, cfg.Cache.LowAccessThreshold)
	assert.Equal(t, 5*time.Second, cfg.Redis.StatusTTL)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("WANDERPLAN_DATABASE_URL", "postgres://localhost:5432/wanderplan")
	t.Setenv("WANDERPLAN_LLM_GEMINI_API_KEY", "test-key")
	t.Setenv("WANDERPLAN_SERVER_PORT", "9090")
	t.Setenv("WANDERPLAN_JOB_RETRY_BACKOFF", "10m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Job.RetryBackoff)
}

func TestLoadRejectsMissingRequiredValues(t *testing.T) {
	t.Setenv("WANDERPLAN_DATABASE_URL", "")
	t.Setenv("WANDERPLAN_LLM_GEMINI_API_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	t.Setenv("WANDERPLAN_DATABASE_URL", "postgres://localhost:5432/wanderplan")
	t.Setenv("WANDERPLAN_LLM_GEMINI_API_KEY", "test-key")
	t.Setenv("WANDERPLAN_SERVER_LOG_LEVEL", "verbose")

	_, err := Load()
	assert.Error(t, err)
}
