// Package event dispatches document and project lifecycle events to
// subscribers and waits for all of them to finish reacting.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/langcore/internal/metrics"
	"github.com/dshills/langcore/pkg/types"
)

// Kind identifies a lifecycle event
type Kind string

// Lifecycle event kinds
const (
	DocumentOpen   Kind = "document.open"
	DocumentChange Kind = "document.change"
	DocumentClose  Kind = "document.close"
	ProjectOpen    Kind = "project.open"
	ProjectClose   Kind = "project.close"
)

// Handler reacts to one event. A non-nil error is returned to the dispatcher's
// caller.
type Handler func(ctx context.Context, payload any) error

// Dispatcher fans events out to subscribers
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher without subscribers
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[Kind][]Handler),
		logger:   logger.With("component", "events"),
	}
}

// Subscribe registers h for events of kind
func (d *Dispatcher) Subscribe(kind Kind, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], h)
}

// Subscribers returns the number of handlers registered for kind
func (d *Dispatcher) Subscribers(kind Kind) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[kind])
}

// DispatchAndWait invokes every subscriber of kind concurrently and waits for
// all of them. It returns the first subscriber failure. If ctx ends before the
// subscribers finish, it returns an error matching types.ErrCancelled without
// waiting further.
func (d *Dispatcher) DispatchAndWait(ctx context.Context, kind Kind, payload any) error {
	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers[kind]))
	copy(handlers, d.handlers[kind])
	d.mu.RUnlock()

	if len(handlers) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handlers {
		g.Go(func() error {
			return safeInvoke(gctx, kind, h, payload)
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			metrics.EventDispatches.WithLabelValues(string(kind), metrics.OutcomeError).Inc()
			d.logger.Debug("subscriber failed", "kind", kind, "error", err)
			return err
		}
		metrics.EventDispatches.WithLabelValues(string(kind), metrics.OutcomeOK).Inc()
		return nil
	case <-ctx.Done():
		metrics.EventDispatches.WithLabelValues(string(kind), metrics.OutcomeCancelled).Inc()
		return types.Cancelled(ctx.Err())
	}
}

func safeInvoke(ctx context.Context, kind Kind, h Handler, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s subscriber panicked: %v", kind, r)
		}
	}()
	return h(ctx, payload)
}
