// Package lifecycle sequences subsystem startup and shutdown around a shared
// context.
package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ReadinessChecker reports whether a subsystem can serve traffic.
type ReadinessChecker interface {
	Ready() bool
}

// Coordinator runs startup hooks, then on Shutdown runs drain hooks, cancels
// its context, and waits for shutdown hooks.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	starting sync.WaitGroup
	stopping sync.WaitGroup
	ready    atomic.Bool

	mu       sync.Mutex
	drainers []func(context.Context)
}

func New() *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{ctx: ctx, cancel: cancel}
}

// Context is cancelled once the drain phase of Shutdown finishes.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup runs fn in its own goroutine. WaitForStartup waits for it.
func (c *Coordinator) OnStartup(fn func()) {
	c.starting.Go(fn)
}

// OnShutdown runs fn in its own goroutine immediately. Hooks block on
// <-Context().Done() before releasing their resources; Shutdown waits for
// them to return.
func (c *Coordinator) OnShutdown(fn func()) {
	c.stopping.Go(fn)
}

// OnDrain registers fn to run while the context is still live. It receives
// a context that expires with the shutdown timeout.
func (c *Coordinator) OnDrain(fn func(ctx context.Context)) {
	c.mu.Lock()
	c.drainers = append(c.drainers, fn)
	c.mu.Unlock()
}

func (c *Coordinator) Ready() bool {
	return c.ready.Load()
}

// WaitForStartup blocks until every startup hook returns, then marks the
// coordinator ready.
func (c *Coordinator) WaitForStartup() {
	c.starting.Wait()
	c.ready.Store(true)
}

// Shutdown drains, cancels, and waits for shutdown hooks, all within timeout.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c.ready.Store(false)

	c.mu.Lock()
	drainers := c.drainers
	c.drainers = nil
	c.mu.Unlock()

	var draining sync.WaitGroup
	for _, fn := range drainers {
		draining.Go(func() { fn(ctx) })
	}
	drained := wait(ctx, &draining)

	c.cancel()

	stopped := wait(ctx, &c.stopping)
	if !drained || !stopped {
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
	return nil
}

// wait reports whether wg finished before ctx expired.
func wait(ctx context.Context, wg *sync.WaitGroup) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
