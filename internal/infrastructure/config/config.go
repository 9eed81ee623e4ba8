package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Registry  RegistryConfig
	Providers ProvidersConfig
	Workspace WorkspaceConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"9700"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// RegistryConfig holds session registry backend configuration.
// An empty Address selects the embedded PTY registry instead of a
// remote backend.
type RegistryConfig struct {
	Address        string  `envconfig:"REGISTRY_ADDR" default:""`
	EventsURL      string  `envconfig:"REGISTRY_EVENTS_URL" default:""`
	TimeoutSeconds int     `envconfig:"REGISTRY_TIMEOUT" default:"30"`
	MaxRetries     int     `envconfig:"REGISTRY_MAX_RETRIES" default:"3"`
	RateLimitRPS   float64 `envconfig:"REGISTRY_RATE_LIMIT" default:"50"`
}

// ProvidersConfig holds provider-configuration source settings.
type ProvidersConfig struct {
	File string `envconfig:"PROVIDERS_FILE" default:"providers.yaml"`
}

// WorkspaceConfig holds terminal workspace tuning.
type WorkspaceConfig struct {
	HistoryLimit   int    `envconfig:"HISTORY_LIMIT" default:"100"`
	DefaultGroupID string `envconfig:"DEFAULT_GROUP_ID" default:"default"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "9700",
			Host: "127.0.0.1",
		},
		Registry: RegistryConfig{
			TimeoutSeconds: 30,
			MaxRetries:     3,
			RateLimitRPS:   50,
		},
		Providers: ProvidersConfig{
			File: "providers.yaml",
		},
		Workspace: WorkspaceConfig{
			HistoryLimit:   100,
			DefaultGroupID: "default",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
