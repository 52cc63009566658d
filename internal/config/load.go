package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional config.yaml in the working
// directory and from environment variables with the WANDERPLAN_ prefix.
// Environment variables take precedence over file values. Returns a
// populated, validated Config or an error.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("WANDERPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults carry it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for every tunable with a sensible
// out-of-the-box value.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("redis.status_ttl", 5*time.Second)

	v.SetDefault("llm.default_model", "gemini-2.0-flash")
	v.SetDefault("llm.high_performance_model", "gemini-2.0-pro")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)

	v.SetDefault("job.worker_count", 4)
	v.SetDefault("job.queue_size", 100)
	v.SetDefault("job.max_retry", 3)
	v.SetDefault("job.retry_backoff", 30*time.Minute)
	v.SetDefault("job.cleanup_age", 7*24*time.Hour)
	v.SetDefault("job.stage_timeout", 2*time.Minute)
	v.SetDefault("job.sweep_schedule", "*/5 * * * *")

	v.SetDefault("cache.ttl", 7*24*time.Hour)
	v.SetDefault("cache.low_access_threshold", 3)
	v.SetDefault("cache.cleanup_schedule", "0 3 * * *")

	v.SetDefault("location.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("location.timeout", 10*time.Second)

	v.SetDefault("weather.base_url", "https://api.open-meteo.com")
	v.SetDefault("weather.timeout", 10*time.Second)
}
