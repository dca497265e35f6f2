package feature

import (
	"context"

	"go.lsp.dev/protocol"

	"github.com/dshills/langcore/internal/document"
)

// Feature names used in metrics
const (
	FeatureDefinition  = "definition"
	FeatureHover       = "hover"
	FeatureDiagnostics = "diagnostics"
)

// DefinitionProvider finds the declarations of the symbol at a position
type DefinitionProvider interface {
	Provider
	GetLocations(ctx context.Context, req *Request) ([]protocol.Location, error)
}

// HoverProvider describes the symbol at a position
type HoverProvider interface {
	Provider
	GetHovers(ctx context.Context, req *Request) ([]protocol.Hover, error)
}

// DiagnosticsProvider reports problems in a whole document
type DiagnosticsProvider interface {
	Provider
	GetDiagnostics(ctx context.Context, doc *document.Document) ([]protocol.Diagnostic, error)
}

// DefinitionAggregator runs go-to-definition providers
type DefinitionAggregator struct {
	*Aggregator[DefinitionProvider, protocol.Location]
	locator *Locator
}

// NewDefinitionAggregator creates an aggregator without providers
func NewDefinitionAggregator(locator *Locator) *DefinitionAggregator {
	return &DefinitionAggregator{
		Aggregator: NewAggregator[DefinitionProvider, protocol.Location](FeatureDefinition),
		locator:    locator,
	}
}

// GetLocations returns every provider's locations for the symbol at pos.
// Without providers for the document's language nothing is parsed.
func (a *DefinitionAggregator) GetLocations(ctx context.Context, doc *document.Document, pos protocol.Position) ([]protocol.Location, error) {
	providers := a.providersFor(doc.Language())
	if len(providers) == 0 {
		return nil, nil
	}

	req, err := a.locator.Locate(ctx, doc, pos)
	if err != nil {
		return nil, err
	}
	return a.run(ctx, providers, func(ctx context.Context, p DefinitionProvider) ([]protocol.Location, error) {
		return p.GetLocations(ctx, req)
	})
}

// HoverAggregator runs hover providers
type HoverAggregator struct {
	*Aggregator[HoverProvider, protocol.Hover]
	locator *Locator
}

// NewHoverAggregator creates an aggregator without providers
func NewHoverAggregator(locator *Locator) *HoverAggregator {
	return &HoverAggregator{
		Aggregator: NewAggregator[HoverProvider, protocol.Hover](FeatureHover),
		locator:    locator,
	}
}

// GetHovers returns every provider's hovers for the symbol at pos
func (a *HoverAggregator) GetHovers(ctx context.Context, doc *document.Document, pos protocol.Position) ([]protocol.Hover, error) {
	providers := a.providersFor(doc.Language())
	if len(providers) == 0 {
		return nil, nil
	}

	req, err := a.locator.Locate(ctx, doc, pos)
	if err != nil {
		return nil, err
	}
	return a.run(ctx, providers, func(ctx context.Context, p HoverProvider) ([]protocol.Hover, error) {
		return p.GetHovers(ctx, req)
	})
}

// DiagnosticsAggregator runs diagnostics providers. Diagnostics cover the
// whole document, so no position is resolved.
type DiagnosticsAggregator struct {
	*Aggregator[DiagnosticsProvider, protocol.Diagnostic]
}

// NewDiagnosticsAggregator creates an aggregator without providers
func NewDiagnosticsAggregator() *DiagnosticsAggregator {
	return &DiagnosticsAggregator{
		Aggregator: NewAggregator[DiagnosticsProvider, protocol.Diagnostic](FeatureDiagnostics),
	}
}

// GetDiagnostics returns every provider's diagnostics for doc
func (a *DiagnosticsAggregator) GetDiagnostics(ctx context.Context, doc *document.Document) ([]protocol.Diagnostic, error) {
	providers := a.providersFor(doc.Language())
	if len(providers) == 0 {
		return nil, nil
	}
	return a.run(ctx, providers, func(ctx context.Context, p DiagnosticsProvider) ([]protocol.Diagnostic, error) {
		return p.GetDiagnostics(ctx, doc)
	})
}
