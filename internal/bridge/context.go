package bridge

import (
	"context"
	"sync"

	"github.com/dshills/langcore/internal/metrics"
)

// SyncCallContext is handed to blocking work. The work announces through it
// that it is about to wait on asynchronous sub-work (Pause) and that it is
// runnable again (Resume), so the bridge's slot accounting stays correct.
type SyncCallContext struct {
	ctx    context.Context
	bridge *Bridge

	mu       sync.Mutex
	paused   bool
	finished bool
}

// Context returns the context of the CallSync that started the work
func (c *SyncCallContext) Context() context.Context {
	return c.ctx
}

// Bridge returns the bridge running the work, for nested calls
func (c *SyncCallContext) Bridge() *Bridge {
	return c.bridge
}

// Pause gives up the worker slot. Calling Pause twice is a no-op.
func (c *SyncCallContext) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused || c.finished {
		return
	}
	c.paused = true
	c.bridge.active.Add(-1)
	c.bridge.paused.Add(1)
	metrics.BridgeActive.Dec()
	metrics.BridgePaused.Inc()
	c.bridge.slots.Release(1)
}

// Resume waits for a worker slot and marks the work runnable again
func (c *SyncCallContext) Resume() {
	c.mu.Lock()
	if !c.paused || c.finished {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	// Background: a paused call must get its slot back to run its after hook.
	_ = c.bridge.slots.Acquire(context.Background(), 1)

	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	c.bridge.paused.Add(-1)
	c.bridge.active.Add(1)
	metrics.BridgePaused.Dec()
	metrics.BridgeActive.Inc()
}

// Await runs fn with the slot released. fn may call CallSync again; with a
// single worker that nested call takes the slot this work gave up.
func (c *SyncCallContext) Await(fn func(ctx context.Context) error) error {
	c.Pause()
	defer c.Resume()
	return fn(c.ctx)
}

// finish marks the call done and reports whether it still held its slot
func (c *SyncCallContext) finish() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.finished = true
	if c.paused {
		c.paused = false
		c.bridge.paused.Add(-1)
		metrics.BridgePaused.Dec()
		return false
	}
	return true
}
