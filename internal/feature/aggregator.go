// Package feature resolves requests to syntax nodes and fans them out to
// the registered providers.
package feature

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/langcore/internal/metrics"
)

// Provider is the part every feature provider shares
type Provider interface {
	// Supports reports whether the provider handles documents in language
	Supports(language string) bool
}

// Aggregator holds the providers of one feature and runs them. Providers
// run concurrently; results keep registration order and are not
// de-duplicated. The first failing provider cancels the others and fails
// the whole call.
type Aggregator[P Provider, R any] struct {
	feature string

	mu        sync.RWMutex
	providers []P
}

// NewAggregator creates an aggregator for the named feature
func NewAggregator[P Provider, R any](feature string) *Aggregator[P, R] {
	return &Aggregator[P, R]{feature: feature}
}

// Register appends p
func (a *Aggregator[P, R]) Register(p P) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.providers = append(a.providers, p)
}

// HasProviders reports whether any provider is registered
func (a *Aggregator[P, R]) HasProviders() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.providers) > 0
}

// HasProvidersFor reports whether a provider supports language
func (a *Aggregator[P, R]) HasProvidersFor(language string) bool {
	return len(a.providersFor(language)) > 0
}

func (a *Aggregator[P, R]) providersFor(language string) []P {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []P
	for _, p := range a.providers {
		if p.Supports(language) {
			out = append(out, p)
		}
	}
	return out
}

// run invokes call for each provider and concatenates the results
func (a *Aggregator[P, R]) run(ctx context.Context, providers []P, call func(ctx context.Context, p P) ([]R, error)) ([]R, error) {
	results := make([][]R, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range providers {
		g.Go(func() error {
			res, err := call(gctx, p)
			if err != nil {
				metrics.ProviderCalls.WithLabelValues(a.feature, metrics.OutcomeError).Inc()
				return err
			}
			metrics.ProviderCalls.WithLabelValues(a.feature, metrics.OutcomeOK).Inc()
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []R
	for _, res := range results {
		out = append(out, res...)
	}
	return out, nil
}
