package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vuminh/resumebase/internal/infra/metrics"
)

// DefaultPoolSize is the number of handles kept in a pool.
const DefaultPoolSize = 5

// Pool holds a fixed-size set of handles and hands them out round-robin.
// The handle set is only ever replaced wholesale: the background health
// check probes one handle per tick and rebuilds the entire set from the
// factory on failure. Callers must not hold a handle across attempts.
type Pool struct {
	factory Factory
	size    int
	log     *slog.Logger

	mu       sync.Mutex
	handles  []Handle
	next     int
	probeIdx int

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewPool builds the initial handle set. Construction fails if any handle
// cannot be built; afterwards Acquire never fails.
func NewPool(factory Factory, size int) (*Pool, error) {
	if size < 1 {
		size = DefaultPoolSize
	}

	p := &Pool{
		factory: factory,
		size:    size,
		log:     slog.Default().With("component", "pool"),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	handles, err := p.build()
	if err != nil {
		return nil, err
	}
	p.handles = handles

	return p, nil
}

// Acquire returns the next handle in round-robin order. It never blocks
// and never fails: the set is always non-empty after construction.
func (p *Pool) Acquire() Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := p.handles[p.next]
	p.next = (p.next + 1) % len(p.handles)
	return h
}

// Size returns the configured pool size.
func (p *Pool) Size() int {
	return p.size
}

// StartHealthCheck begins the background probe loop. Every interval one
// handle is pinged; on failure the whole set is rebuilt.
func (p *Pool) StartHealthCheck(interval time.Duration) {
	go func() {
		defer close(p.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.checkOnce(context.Background())
			case <-p.stop:
				return
			}
		}
	}()
}

// Stop halts the background probe and closes all handles. It is
// idempotent; repeated calls are no-ops.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)

		p.mu.Lock()
		handles := p.handles
		p.mu.Unlock()

		for _, h := range handles {
			if err := h.Close(); err != nil {
				p.log.Warn("failed to close handle", "error", err)
			}
		}
	})
}

// checkOnce pings one handle (rotating through the set) and rebuilds the
// pool on failure.
func (p *Pool) checkOnce(ctx context.Context) {
	p.mu.Lock()
	h := p.handles[p.probeIdx%len(p.handles)]
	p.probeIdx++
	p.mu.Unlock()

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := h.Ping(probeCtx); err != nil {
		p.log.Warn("health check failed, rebuilding handle pool", "error", err)
		p.rebuild()
	}
}

// rebuild replaces the entire handle set with a fresh one. The old set is
// kept when the factory cannot produce a full replacement, so Acquire
// stays infallible.
func (p *Pool) rebuild() {
	fresh, err := p.build()
	if err != nil {
		p.log.Error("pool rebuild failed, keeping current handles", "error", err)
		return
	}

	p.mu.Lock()
	old := p.handles
	p.handles = fresh
	p.next = 0
	p.mu.Unlock()

	for _, h := range old {
		_ = h.Close()
	}

	metrics.PoolRebuildsTotal.Inc()
	p.log.Info("handle pool rebuilt", "size", p.size)
}

func (p *Pool) build() ([]Handle, error) {
	handles := make([]Handle, 0, p.size)
	for i := 0; i < p.size; i++ {
		h, err := p.factory.New()
		if err != nil {
			for _, built := range handles {
				_ = built.Close()
			}
			return nil, fmt.Errorf("failed to build handle %d/%d: %w", i+1, p.size, err)
		}
		handles = append(handles, h)
	}
	return handles, nil
}
