package config

import (
	"time"

	"github.com/vuminh/resumebase/internal/infra/backend"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server       ServerConfig        `yaml:"server"`
	Backend      BackendConfig       `yaml:"backend"`
	Pool         PoolConfig          `yaml:"pool"`
	Retry        backend.RetryConfig `yaml:"retry"`
	Reachability ReachabilityConfig  `yaml:"reachability"`
	Logging      LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP status server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// BackendConfig holds settings for the remote backend. Kind selects the
// handle implementation: "rest" (PostgREST-style HTTPS) or "postgres"
// (direct database access).
type BackendConfig struct {
	Kind        string        `yaml:"kind"`
	URL         string        `yaml:"url"`
	APIKey      string        `yaml:"api_key"`
	Timeout     time.Duration `yaml:"timeout"`
	DatabaseURL string        `yaml:"database_url"`
	MaxConns    int           `yaml:"max_conns"`
}

// PoolConfig holds handle pool settings.
type PoolConfig struct {
	Size                int           `yaml:"size"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
}

// ReachabilityConfig holds reachability monitor settings.
type ReachabilityConfig struct {
	ProbeInterval time.Duration `yaml:"probe_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
