package reachability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vuminh/resumebase/internal/infra/backend"
)

// probeHandle is a Handle whose ping outcome can be flipped at runtime.
type probeHandle struct {
	mu      sync.Mutex
	pingErr error
}

func (h *probeHandle) Select(ctx context.Context, table string, filter backend.Filter, orderBy string) ([]backend.Row, error) {
	return nil, nil
}
func (h *probeHandle) Upsert(ctx context.Context, table string, row backend.Row, conflictKey string) error {
	return nil
}
func (h *probeHandle) Insert(ctx context.Context, table string, rows []backend.Row) error {
	return nil
}
func (h *probeHandle) Delete(ctx context.Context, table string, filter backend.Filter) error {
	return nil
}

func (h *probeHandle) Ping(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pingErr
}

func (h *probeHandle) setPingErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pingErr = err
}

func (h *probeHandle) Close() error { return nil }

type probeFactory struct {
	h *probeHandle
}

func (f *probeFactory) New() (backend.Handle, error) { return f.h, nil }

func newTestMonitor(t *testing.T) (*Monitor, *probeHandle) {
	t.Helper()
	h := &probeHandle{}
	pool, err := backend.NewPool(&probeFactory{h: h}, 1)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	t.Cleanup(pool.Stop)

	exec := backend.NewExecutor(pool, backend.RetryConfig{
		MaxAttempts:     2,
		InitialDelay:    time.Millisecond,
		MaxDelay:        time.Millisecond,
		BackoffMultiple: 2.0,
	})

	m := NewMonitor(exec, time.Hour)
	t.Cleanup(m.Stop)
	return m, h
}

func TestMonitorInitialStateUnknown(t *testing.T) {
	m, _ := newTestMonitor(t)

	state, checked := m.Status()
	if state != StateUnknown {
		t.Errorf("initial state = %v, want %v", state, StateUnknown)
	}
	if !checked.IsZero() {
		t.Errorf("expected zero lastChecked before first probe")
	}
}

func TestMonitorProbeTransitions(t *testing.T) {
	m, h := newTestMonitor(t)
	ctx := context.Background()

	if !m.ProbeNow(ctx) {
		t.Fatal("expected successful probe")
	}
	if state, _ := m.Status(); state != StateActive {
		t.Errorf("state after successful probe = %v, want %v", state, StateActive)
	}

	h.setPingErr(errors.New("connection refused"))
	if m.ProbeNow(ctx) {
		t.Fatal("expected failed probe")
	}
	if state, _ := m.Status(); state != StateLost {
		t.Errorf("state after failed probe = %v, want %v", state, StateLost)
	}

	h.setPingErr(nil)
	m.ProbeNow(ctx)
	if state, _ := m.Status(); state != StateActive {
		t.Errorf("state after recovery = %v, want %v", state, StateActive)
	}
}

func TestMonitorUnknownToLostOnFirstFailure(t *testing.T) {
	m, h := newTestMonitor(t)

	h.setPingErr(errors.New("no such host"))
	m.ProbeNow(context.Background())

	if state, _ := m.Status(); state != StateLost {
		t.Errorf("state = %v, want %v", state, StateLost)
	}
}

func TestMonitorDropsStaleResult(t *testing.T) {
	m, _ := newTestMonitor(t)

	// A slow probe issued earlier must not overwrite a newer outcome.
	m.apply(2, true)
	m.apply(1, false)

	if state, _ := m.Status(); state != StateActive {
		t.Errorf("stale result applied: state = %v, want %v", state, StateActive)
	}

	// Equal sequence is also stale.
	m.apply(2, false)
	if state, _ := m.Status(); state != StateActive {
		t.Errorf("duplicate result applied: state = %v, want %v", state, StateActive)
	}

	// A newer result still applies.
	m.apply(3, false)
	if state, _ := m.Status(); state != StateLost {
		t.Errorf("fresh result dropped: state = %v, want %v", state, StateLost)
	}
}

func TestMonitorSubscribeOnTransitionsOnly(t *testing.T) {
	m, h := newTestMonitor(t)
	ctx := context.Background()

	var mu sync.Mutex
	var seen []State
	m.Subscribe(func(s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	m.ProbeNow(ctx) // unknown -> active
	m.ProbeNow(ctx) // active -> active, no notification
	h.setPingErr(errors.New("i/o timeout"))
	m.ProbeNow(ctx) // active -> lost

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != StateActive || seen[1] != StateLost {
		t.Errorf("notifications = %v, want [active lost]", seen)
	}
}

func TestMonitorWakeTriggersProbe(t *testing.T) {
	m, _ := newTestMonitor(t)

	m.Start(context.Background())

	// The startup probe resolves unknown shortly after Start.
	deadline := time.After(2 * time.Second)
	for {
		if state, _ := m.Status(); state == StateActive {
			break
		}
		select {
		case <-deadline:
			t.Fatal("startup probe did not run")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Interval is an hour; only a wake can move lastChecked forward.
	_, before := m.Status()
	m.Wake()

	deadline = time.After(2 * time.Second)
	for {
		if _, checked := m.Status(); checked.After(before) {
			return
		}
		select {
		case <-deadline:
			t.Fatal("wake did not trigger a probe")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestMonitorStopIdempotent(t *testing.T) {
	m, _ := newTestMonitor(t)

	m.Start(context.Background())
	m.Stop()
	m.Stop()
}

func TestMonitorDefaultInterval(t *testing.T) {
	h := &probeHandle{}
	pool, err := backend.NewPool(&probeFactory{h: h}, 1)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	t.Cleanup(pool.Stop)
	exec := backend.NewExecutor(pool, backend.DefaultRetryConfig)

	m := NewMonitor(exec, 0)
	t.Cleanup(m.Stop)
	if m.interval != DefaultProbeInterval {
		t.Errorf("interval = %v, want %v", m.interval, DefaultProbeInterval)
	}
}
