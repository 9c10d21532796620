// Package control wires the backend pool, executor, repository, and
// reachability monitor into a single application lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vuminh/resumebase/internal/core/config"
	"github.com/vuminh/resumebase/internal/infra/backend"
	"github.com/vuminh/resumebase/internal/reachability"
	"github.com/vuminh/resumebase/internal/store"
)

// App owns every long-lived component and tears them down exactly once.
type App struct {
	cfg     *config.AppConfig
	pool    *backend.Pool
	repo    *store.Repo
	monitor *reachability.Monitor
	server  *reachability.Server
	log     *slog.Logger
}

// NewApp builds the component graph from configuration. Missing backend
// credentials are a warning, not a failure: operations fail per-call
// until the environment is fixed.
func NewApp(cfg *config.AppConfig) (*App, error) {
	factory, err := NewFactory(cfg.Backend)
	if err != nil {
		return nil, err
	}

	pool, err := backend.NewPool(factory, cfg.Pool.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to build handle pool: %w", err)
	}

	exec := backend.NewExecutor(pool, cfg.Retry)
	probeExec := backend.NewExecutor(pool, backend.ProbeRetryConfig)

	monitor := reachability.NewMonitor(probeExec, cfg.Reachability.ProbeInterval)

	return &App{
		cfg:     cfg,
		pool:    pool,
		repo:    store.NewRepo(exec),
		monitor: monitor,
		server:  reachability.NewServer(monitor, cfg.Server.Port),
		log:     slog.Default().With("component", "control"),
	}, nil
}

// NewFactory selects the handle implementation for the configured
// backend kind.
func NewFactory(cfg config.BackendConfig) (backend.Factory, error) {
	switch cfg.Kind {
	case "rest", "":
		if cfg.URL == "" {
			slog.Warn("backend URL not configured, calls will fail until BACKEND_URL is set")
		}
		if cfg.APIKey == "" {
			slog.Warn("backend API key not configured, calls may be rejected")
		}
		return &backend.RESTFactory{
			Endpoint: cfg.URL,
			APIKey:   cfg.APIKey,
			Timeout:  cfg.Timeout,
		}, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			slog.Warn("database URL not configured, calls will fail until DATABASE_URL is set")
		}
		return &backend.SQLFactory{
			DSN:      cfg.DatabaseURL,
			MaxConns: cfg.MaxConns,
		}, nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}

// Repository returns the resume repository.
func (a *App) Repository() store.ResumeRepository {
	return a.repo
}

// Monitor returns the reachability monitor.
func (a *App) Monitor() *reachability.Monitor {
	return a.monitor
}

// Start launches the pool health check, the reachability monitor, and the
// status server.
func (a *App) Start(ctx context.Context) error {
	a.pool.StartHealthCheck(a.cfg.Pool.HealthCheckInterval)
	a.monitor.Start(ctx)

	go func() {
		a.log.Info("status server listening", "port", a.cfg.Server.Port)
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("status server failed", "error", err)
		}
	}()

	return nil
}

// Stop tears everything down. Each component's shutdown is idempotent.
func (a *App) Stop(ctx context.Context) error {
	var firstErr error

	if err := a.server.Stop(ctx); err != nil {
		firstErr = err
	}
	a.monitor.Stop()
	a.pool.Stop()

	return firstErr
}
