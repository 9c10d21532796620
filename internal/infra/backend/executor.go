package backend

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/vuminh/resumebase/internal/infra/metrics"
)

// RetryConfig defines retry behavior for the executor.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	BackoffMultiple float64       `yaml:"backoff_multiple"`
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     4,
	InitialDelay:    200 * time.Millisecond,
	MaxDelay:        5 * time.Second,
	BackoffMultiple: 2.0,
}

// ProbeRetryConfig is a small attempt budget for reachability probes so a
// probe never hangs through a full backoff schedule.
var ProbeRetryConfig = RetryConfig{
	MaxAttempts:     2,
	InitialDelay:    100 * time.Millisecond,
	MaxDelay:        500 * time.Millisecond,
	BackoffMultiple: 2.0,
}

// Executor wraps a single backend operation with classification-driven
// retry and exponential backoff, acquiring a fresh handle per attempt.
type Executor struct {
	pool *Pool
	cfg  RetryConfig
	log  *slog.Logger
}

// NewExecutor creates an executor over the given pool.
func NewExecutor(pool *Pool, cfg RetryConfig) *Executor {
	if cfg.MaxAttempts < 1 {
		cfg = DefaultRetryConfig
	}
	return &Executor{
		pool: pool,
		cfg:  cfg,
		log:  slog.Default().With("component", "executor"),
	}
}

// Do runs fn against a freshly acquired handle, retrying transient
// failures with exponential backoff. The outcome is always exactly one
// of: nil, the first permanent error observed, or the last transient
// error after attempts are exhausted.
func (e *Executor) Do(ctx context.Context, name string, fn func(ctx context.Context, h Handle) error) error {
	var lastErr error

	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		h := e.pool.Acquire()

		start := time.Now()
		err := fn(ctx, h)
		metrics.BackendCallLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())

		if err == nil {
			metrics.BackendCallsTotal.WithLabelValues(name, "success").Inc()
			return nil
		}

		lastErr = err
		class := Classify(err)
		if class == ClassPermanent {
			metrics.BackendCallsTotal.WithLabelValues(name, "permanent_error").Inc()
			return err
		}

		if attempt == e.cfg.MaxAttempts-1 {
			break
		}

		delay := Backoff(attempt, e.cfg)
		e.log.Debug("retrying backend call",
			"operation", name,
			"attempt", attempt+1,
			"delay", delay,
			"error", err)
		metrics.BackendRetriesTotal.WithLabelValues(name).Inc()

		select {
		case <-ctx.Done():
			metrics.BackendCallsTotal.WithLabelValues(name, "canceled").Inc()
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	metrics.BackendCallsTotal.WithLabelValues(name, "exhausted").Inc()
	return fmt.Errorf("%s: failed after %d attempts: %w", name, e.cfg.MaxAttempts, lastErr)
}

// Call is the generic variant of Do for operations that produce a value.
func Call[T any](ctx context.Context, e *Executor, name string, fn func(ctx context.Context, h Handle) (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, name, func(ctx context.Context, h Handle) error {
		v, err := fn(ctx, h)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Backoff returns the delay before the retry following the given
// zero-indexed attempt: min(initial * multiple^attempt, max).
func Backoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiple, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}
