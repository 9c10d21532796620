package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vuminh/resumebase/internal/infra/backend"
	"github.com/vuminh/resumebase/internal/reachability"
)

// Load reads configuration from a YAML file. Environment variables in the
// file are expanded, and BACKEND_URL / BACKEND_API_KEY / DATABASE_URL
// override the file values when set.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

// Default returns a configuration built purely from defaults and
// environment variables, for running without a config file.
func Default() *AppConfig {
	var cfg AppConfig
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg
}

func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("BACKEND_API_KEY"); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Backend.DatabaseURL = v
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Backend.Kind == "" {
		cfg.Backend.Kind = "rest"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 30 * time.Second
	}
	if cfg.Pool.Size == 0 {
		cfg.Pool.Size = backend.DefaultPoolSize
	}
	if cfg.Pool.HealthCheckInterval == 0 {
		cfg.Pool.HealthCheckInterval = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = backend.DefaultRetryConfig
	}
	if cfg.Reachability.ProbeInterval == 0 {
		cfg.Reachability.ProbeInterval = reachability.DefaultProbeInterval
	}
}
