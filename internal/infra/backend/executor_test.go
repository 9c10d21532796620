package backend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubHandle is a minimal Handle for pool and executor tests.
type stubHandle struct {
	mu      sync.Mutex
	id      int
	pingErr error
	closed  bool
}

func (h *stubHandle) Select(ctx context.Context, table string, filter Filter, orderBy string) ([]Row, error) {
	return nil, nil
}
func (h *stubHandle) Upsert(ctx context.Context, table string, row Row, conflictKey string) error {
	return nil
}
func (h *stubHandle) Insert(ctx context.Context, table string, rows []Row) error { return nil }
func (h *stubHandle) Delete(ctx context.Context, table string, filter Filter) error {
	return nil
}

func (h *stubHandle) Ping(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pingErr
}

func (h *stubHandle) setPingErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pingErr = err
}

func (h *stubHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// stubFactory hands out stubHandles with increasing ids.
type stubFactory struct {
	mu      sync.Mutex
	built   int
	pingErr error
	handles []*stubHandle
}

func (f *stubFactory) New() (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := &stubHandle{id: f.built, pingErr: f.pingErr}
	f.built++
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *stubFactory) builtCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.built
}

func newTestExecutor(t *testing.T, cfg RetryConfig) *Executor {
	t.Helper()
	pool, err := NewPool(&stubFactory{}, 2)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	t.Cleanup(pool.Stop)
	return NewExecutor(pool, cfg)
}

var fastRetry = RetryConfig{
	MaxAttempts:     3,
	InitialDelay:    time.Millisecond,
	MaxDelay:        4 * time.Millisecond,
	BackoffMultiple: 2.0,
}

func TestExecutorSuccess(t *testing.T) {
	exec := newTestExecutor(t, fastRetry)

	attempts := 0
	err := exec.Do(context.Background(), "test.op", func(ctx context.Context, h Handle) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecutorRetriesTransientUntilExhausted(t *testing.T) {
	exec := newTestExecutor(t, fastRetry)

	transient := errors.New("dial tcp: connection refused")
	attempts := 0
	err := exec.Do(context.Background(), "test.op", func(ctx context.Context, h Handle) error {
		attempts++
		return transient
	})

	if attempts != fastRetry.MaxAttempts {
		t.Errorf("expected %d attempts, got %d", fastRetry.MaxAttempts, attempts)
	}
	if !errors.Is(err, transient) {
		t.Errorf("expected last error to surface, got %v", err)
	}
}

func TestExecutorRecoversAfterTransient(t *testing.T) {
	exec := newTestExecutor(t, fastRetry)

	attempts := 0
	err := exec.Do(context.Background(), "test.op", func(ctx context.Context, h Handle) error {
		attempts++
		if attempts < 3 {
			return &StatusError{Code: 503, Body: "unavailable"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecutorPermanentFailsFirstAttempt(t *testing.T) {
	exec := newTestExecutor(t, fastRetry)

	permanent := &StatusError{Code: 400, Body: "constraint violation"}
	attempts := 0
	err := exec.Do(context.Background(), "test.op", func(ctx context.Context, h Handle) error {
		attempts++
		return permanent
	})

	if attempts != 1 {
		t.Errorf("permanent error must not be retried, got %d attempts", attempts)
	}
	if !errors.Is(err, permanent) {
		t.Errorf("expected permanent error returned as-is, got %v", err)
	}
}

func TestExecutorFreshHandlePerAttempt(t *testing.T) {
	exec := newTestExecutor(t, fastRetry)

	var seen []int
	_ = exec.Do(context.Background(), "test.op", func(ctx context.Context, h Handle) error {
		seen = append(seen, h.(*stubHandle).id)
		return errors.New("timeout")
	})

	if len(seen) != fastRetry.MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", fastRetry.MaxAttempts, len(seen))
	}
	// Pool of size 2: round-robin must alternate handles across attempts.
	if seen[0] == seen[1] {
		t.Errorf("expected a fresh handle per attempt, got %v", seen)
	}
}

func TestExecutorContextCanceledDuringBackoff(t *testing.T) {
	pool, err := NewPool(&stubFactory{}, 1)
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	t.Cleanup(pool.Stop)

	exec := NewExecutor(pool, RetryConfig{
		MaxAttempts:     5,
		InitialDelay:    time.Hour,
		MaxDelay:        time.Hour,
		BackoffMultiple: 2.0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err = exec.Do(ctx, "test.op", func(ctx context.Context, h Handle) error {
		return errors.New("timeout")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCallReturnsValue(t *testing.T) {
	exec := newTestExecutor(t, fastRetry)

	got, err := Call(context.Background(), exec, "test.op", func(ctx context.Context, h Handle) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if got != 42 {
		t.Errorf("Call = %d, want 42", got)
	}
}

func TestBackoff(t *testing.T) {
	cfg := RetryConfig{
		InitialDelay:    100 * time.Millisecond,
		MaxDelay:        1 * time.Second,
		BackoffMultiple: 2.0,
	}

	tests := []struct {
		attempt int
		expect  time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, 1 * time.Second}, // capped
		{5, 1 * time.Second},
	}

	prev := time.Duration(0)
	for _, tt := range tests {
		got := Backoff(tt.attempt, cfg)
		if got != tt.expect {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.expect)
		}
		if got < prev {
			t.Errorf("Backoff(%d) = %v decreased below %v", tt.attempt, got, prev)
		}
		prev = got
	}
}
