// Package workerpool bounds the number of concurrent dependency-install
// operations (tree hardlinking, hashing large trees) the Dependency Cache
// will run at once, per spec §5 ("blocking work ... may be offloaded to a
// worker pool").
package workerpool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrPoolIsClosing is returned by Acquire once Shutdown has been called.
var ErrPoolIsClosing = errors.New("workerpool: pool is shutting down")

// Pool is a semaphore with stats: it bounds concurrent install "slots"
// rather than pooling reusable resources, since there is nothing here worth
// reusing across installs (unlike the teacher's pooled containers).
type Pool struct {
	slots       chan struct{}
	maxSize     int
	mu          sync.Mutex
	currentSize int
	closing     bool
}

// New creates a pool that permits up to maxSize concurrent installs.
func New(maxSize int) *Pool {
	return &Pool{
		slots:   make(chan struct{}, maxSize),
		maxSize: maxSize,
	}
}

// Acquire blocks until a slot is free or ctx is canceled. The returned
// release func must be called exactly once to free the slot.
func (p *Pool) Acquire(ctx context.Context) (release func(), err error) {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return nil, ErrPoolIsClosing
	}
	p.mu.Unlock()

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	p.currentSize++
	p.mu.Unlock()
	slog.DebugContext(ctx, "workerpool.Acquire", "in_use", p.currentSize, "max", p.maxSize)

	var once sync.Once
	release = func() {
		once.Do(func() {
			p.mu.Lock()
			p.currentSize--
			p.mu.Unlock()
			<-p.slots
		})
	}
	return release, nil
}

// Shutdown marks the pool closed; subsequent Acquire calls fail immediately.
// It does not wait for in-flight installs to finish — callers track those
// with their own WaitGroup, matching the teacher's fan-out pattern in
// cmd/sand's bulk operations.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closing = true
	slog.InfoContext(ctx, "workerpool.Shutdown", "in_use", p.currentSize)
	return nil
}

// InUse reports the current number of occupied slots, for diagnostics.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentSize
}
