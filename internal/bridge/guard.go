package bridge

import (
	"context"
	"sync"

	"github.com/dshills/langcore/pkg/types"
)

// Guard grants exclusive use of a resource configured by a blocking call's
// hooks. It has lock semantics with a context-aware Acquire.
type Guard struct {
	name string
	ch   chan struct{}
}

// NewGuard creates an unlocked guard. The name is used in logs and metrics.
func NewGuard(name string) *Guard {
	return &Guard{name: name, ch: make(chan struct{}, 1)}
}

// Name returns the resource name
func (g *Guard) Name() string {
	return g.name
}

// Acquire blocks until the guard is held or ctx ends
func (g *Guard) Acquire(ctx context.Context) error {
	select {
	case g.ch <- struct{}{}:
		return nil
	default:
	}

	select {
	case g.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return types.Cancelled(ctx.Err())
	}
}

// TryAcquire attempts to acquire the guard without blocking.
// Returns true if the guard was acquired.
func (g *Guard) TryAcquire() bool {
	select {
	case g.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release releases the guard.
// Must only be called by the holder.
func (g *Guard) Release() {
	select {
	case <-g.ch:
	default:
		panic("bridge: release of unheld guard " + g.name)
	}
}

// InFlight tags work in progress per key, typically a normalized document
// URI, so duplicate work can be rejected instead of overlapping.
type InFlight struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewInFlight creates an empty tag set
func NewInFlight() *InFlight {
	return &InFlight{keys: make(map[string]struct{})}
}

// TryBegin tags key. It returns false if key is already in flight.
func (f *InFlight) TryBegin(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, busy := f.keys[key]; busy {
		return false
	}
	f.keys[key] = struct{}{}
	return true
}

// Done removes the tag for key
func (f *InFlight) Done(key string) {
	f.mu.Lock()
	delete(f.keys, key)
	f.mu.Unlock()
}

// Busy reports whether key is in flight
func (f *InFlight) Busy(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, busy := f.keys[key]
	return busy
}
