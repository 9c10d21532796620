// Package reachability tracks whether the backend is reachable and
// exposes the current state to status consumers.
package reachability

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vuminh/resumebase/internal/infra/backend"
	"github.com/vuminh/resumebase/internal/infra/metrics"
)

// State is the reachability state of the backend.
type State string

const (
	StateUnknown State = "unknown"
	StateActive  State = "active"
	StateLost    State = "lost"
)

// DefaultProbeInterval is the default fixed-interval probe period.
const DefaultProbeInterval = 15 * time.Second

const probeTimeout = 10 * time.Second

// Monitor probes the backend on a fixed interval and on external wake
// signals, applying results last-write-wins by issue sequence so a stale
// slow probe cannot overwrite a newer result.
type Monitor struct {
	exec     *backend.Executor
	interval time.Duration
	log      *slog.Logger

	seq atomic.Uint64

	mu          sync.Mutex
	state       State
	lastChecked time.Time
	applied     uint64
	subs        []func(State)

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a monitor probing through exec. The executor should
// carry a small attempt budget (ProbeRetryConfig) so a probe cannot hang
// through a full backoff schedule.
func NewMonitor(exec *backend.Executor, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Monitor{
		exec:     exec,
		interval: interval,
		state:    StateUnknown,
		log:      slog.Default().With("component", "reachability"),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Start begins the probe loop. An immediate probe resolves the initial
// unknown state without waiting a full interval.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		m.ProbeNow(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.ProbeNow(ctx)
			case <-m.wake:
				m.ProbeNow(ctx)
			case <-m.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the probe loop. Idempotent.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
}

// Status returns the current state and when it was last determined.
func (m *Monitor) Status() (State, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.lastChecked
}

// Subscribe registers a callback invoked on every state transition.
// Callbacks must be quick; they run on the probing goroutine.
func (m *Monitor) Subscribe(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// Wake requests an immediate out-of-cycle probe. Non-blocking; coalesces
// with an already-pending wake.
func (m *Monitor) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// ProbeNow runs a probe synchronously and reports whether the backend is
// reachable. Safe to call concurrently with the interval loop.
func (m *Monitor) ProbeNow(ctx context.Context) bool {
	seq := m.seq.Add(1)

	err := m.exec.Do(ctx, "reachability.probe", func(ctx context.Context, h backend.Handle) error {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		return h.Ping(probeCtx)
	})

	m.apply(seq, err == nil)
	return err == nil
}

// apply records a probe outcome. Outcomes from probes issued before an
// already-applied one are dropped.
func (m *Monitor) apply(seq uint64, reachable bool) {
	next := StateLost
	if reachable {
		next = StateActive
	}

	m.mu.Lock()
	if seq <= m.applied {
		m.mu.Unlock()
		return
	}
	m.applied = seq
	m.lastChecked = time.Now()

	changed := m.state != next
	m.state = next

	var subs []func(State)
	if changed {
		subs = make([]func(State), len(m.subs))
		copy(subs, m.subs)
	}
	m.mu.Unlock()

	if !changed {
		return
	}

	if reachable {
		metrics.BackendReachable.Set(1)
		m.log.Info("backend reachable")
	} else {
		metrics.BackendReachable.Set(0)
		m.log.Warn("backend unreachable")
	}

	for _, fn := range subs {
		fn(next)
	}
}
