// Package config loads and validates application configuration.
package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Job      JobConfig      `mapstructure:"job"      validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache"    validate:"required"`
	Location LocationConfig `mapstructure:"location"`
	Weather  WeatherConfig  `mapstructure:"weather"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// RedisConfig contains the job-status snapshot cache settings. The URL is
// optional; when empty the status cache is disabled and every poll hits
// the job store directly.
type RedisConfig struct {
	URL       string        `mapstructure:"url"`
	StatusTTL time.Duration `mapstructure:"status_ttl"`
}

// LLMConfig contains all generation-backend related settings.
type LLMConfig struct {
	GeminiAPIKey         string `mapstructure:"gemini_api_key"         validate:"required"`
	DefaultModel         string `mapstructure:"default_model"          validate:"required"`
	HighPerformanceModel string `mapstructure:"high_performance_model" validate:"required"`
	MaxRetries           int    `mapstructure:"max_retries"            validate:"gte=0"`
	RetryDelaySeconds    int    `mapstructure:"retry_delay_seconds"    validate:"gte=0"`
}

// JobConfig tunes the job runner and its background sweeps.
type JobConfig struct {
	WorkerCount   int           `mapstructure:"worker_count"   validate:"required,gt=0"`
	QueueSize     int           `mapstructure:"queue_size"     validate:"required,gt=0"`
	MaxRetry      int           `mapstructure:"max_retry"      validate:"gte=0"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"  validate:"required"`
	CleanupAge    time.Duration `mapstructure:"cleanup_age"    validate:"required"`
	StageTimeout  time.Duration `mapstructure:"stage_timeout"`
	SweepSchedule string        `mapstructure:"sweep_schedule" validate:"required"`
}

// CacheConfig tunes the recommendation cache.
type CacheConfig struct {
	TTL                time.Duration `mapstructure:"ttl"                  validate:"required"`
	LowAccessThreshold int           `mapstructure:"low_access_threshold" validate:"gte=0"`
	CleanupSchedule    string        `mapstructure:"cleanup_schedule"     validate:"required"`
}

// LocationConfig points at the place lookup service.
type LocationConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WeatherConfig points at the weather forecast service.
type WeatherConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}
