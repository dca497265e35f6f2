package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/dshills/langcore/internal/metrics"
	"github.com/dshills/langcore/pkg/types"
)

// DefaultWorkers is the number of blocking calls allowed to run at once
const DefaultWorkers = 1

// Bridge runs blocking work on worker goroutines while callers wait without
// holding anything but their own goroutine. Worker slots model the isolated
// blocking execution context: a call holds a slot while it runs and gives it
// up while paused.
type Bridge struct {
	slots   *semaphore.Weighted
	workers int
	logger  *slog.Logger

	active    atomic.Int64
	paused    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// Stats is a snapshot of the bridge's accounting of outstanding work
type Stats struct {
	Workers   int
	Active    int64
	Paused    int64
	Completed int64
	Failed    int64
}

// New creates a bridge with the given number of worker slots
func New(workers int, logger *slog.Logger) *Bridge {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		slots:   semaphore.NewWeighted(int64(workers)),
		workers: workers,
		logger:  logger.With("component", "bridge"),
	}
}

// Stats returns the current counters
func (b *Bridge) Stats() Stats {
	return Stats{
		Workers:   b.workers,
		Active:    b.active.Load(),
		Paused:    b.paused.Load(),
		Completed: b.completed.Load(),
		Failed:    b.failed.Load(),
	}
}

// CallOption configures a single CallSync
type CallOption func(*callOptions)

type callOptions struct {
	before func() error
	after  func() error
	guard  *Guard
}

// WithBefore installs a hook run on the caller's goroutine before the work
// starts. It sets up side-channel state the work needs.
func WithBefore(fn func() error) CallOption {
	return func(o *callOptions) { o.before = fn }
}

// WithAfter installs a hook that tears down what the before hook set up.
// It runs on every exit path once the work has stopped.
func WithAfter(fn func() error) CallOption {
	return func(o *callOptions) { o.after = fn }
}

// WithGuard holds g from before the before hook until after the after hook
func WithGuard(g *Guard) CallOption {
	return func(o *callOptions) { o.guard = g }
}

type result[T any] struct {
	value T
	err   error
}

// CallSync executes work to completion on a worker slot and returns its
// result. The caller only waits on a channel, so other goroutines keep
// making progress.
//
// If ctx ends first CallSync returns an error matching types.ErrCancelled
// right away. The work itself is not interrupted; its after hook, slot and
// guard are released when it returns.
func CallSync[T any](ctx context.Context, b *Bridge, work func(*SyncCallContext) (T, error), opts ...CallOption) (T, error) {
	var zero T
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.guard != nil {
		if err := o.guard.Acquire(ctx); err != nil {
			b.record(metrics.OutcomeCancelled)
			return zero, err
		}
	}
	releaseGuard := func() {
		if o.guard != nil {
			o.guard.Release()
		}
	}

	if err := b.slots.Acquire(ctx, 1); err != nil {
		releaseGuard()
		b.record(metrics.OutcomeCancelled)
		return zero, types.Cancelled(err)
	}
	sc := b.enter(ctx)

	if err := runHook(o.before); err != nil {
		err = fmt.Errorf("before hook: %w", err)
		if afterErr := runHook(o.after); afterErr != nil {
			err = errors.Join(err, fmt.Errorf("after hook: %w", afterErr))
		}
		b.leave(sc)
		releaseGuard()
		b.record(metrics.OutcomeError)
		return zero, err
	}

	done := make(chan result[T], 1)
	go func() {
		var res result[T]
		res.value, res.err = runWork(work, sc)
		if afterErr := runHook(o.after); afterErr != nil {
			afterErr = fmt.Errorf("after hook: %w", afterErr)
			if res.err != nil {
				res.err = errors.Join(res.err, afterErr)
			} else {
				res.err = afterErr
			}
		}
		b.leave(sc)
		releaseGuard()
		if res.err != nil {
			b.record(metrics.OutcomeError)
		} else {
			b.record(metrics.OutcomeOK)
		}
		done <- res
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		select {
		case res := <-done:
			return res.value, res.err
		default:
		}
		b.logger.Debug("caller abandoned blocking call", "error", ctx.Err())
		return zero, types.Cancelled(ctx.Err())
	}
}

// Call is CallSync for work without a result value
func Call(ctx context.Context, b *Bridge, work func(*SyncCallContext) error, opts ...CallOption) error {
	_, err := CallSync(ctx, b, func(sc *SyncCallContext) (struct{}, error) {
		return struct{}{}, work(sc)
	}, opts...)
	return err
}

func runWork[T any](work func(*SyncCallContext) (T, error), sc *SyncCallContext) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("blocking work panicked: %v", r)
		}
	}()
	return work(sc)
}

func runHook(hook func() error) (err error) {
	if hook == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return hook()
}

func (b *Bridge) enter(ctx context.Context) *SyncCallContext {
	b.active.Add(1)
	metrics.BridgeActive.Inc()
	return &SyncCallContext{ctx: ctx, bridge: b}
}

func (b *Bridge) leave(sc *SyncCallContext) {
	if sc.finish() {
		b.active.Add(-1)
		metrics.BridgeActive.Dec()
		b.slots.Release(1)
	}
}

func (b *Bridge) record(outcome string) {
	switch outcome {
	case metrics.OutcomeOK:
		b.completed.Add(1)
	case metrics.OutcomeError:
		b.failed.Add(1)
	}
	metrics.BridgeCalls.WithLabelValues(outcome).Inc()
}
