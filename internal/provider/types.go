package provider

import (
	"context"
	"go/ast"
	gotypes "go/types"

	"go.lsp.dev/protocol"

	"github.com/dshills/langcore/internal/analysis"
	"github.com/dshills/langcore/internal/document"
	"github.com/dshills/langcore/internal/feature"
	"github.com/dshills/langcore/internal/parser"
	"github.com/dshills/langcore/internal/syntax"
)

// TypesDefinitionProvider resolves identifiers with go/types. Only
// declarations in the same document are found; the index covers the rest.
type TypesDefinitionProvider struct {
	analyser *analysis.Analyser
}

// NewTypesDefinitionProvider creates a provider backed by analyser
func NewTypesDefinitionProvider(analyser *analysis.Analyser) *TypesDefinitionProvider {
	return &TypesDefinitionProvider{analyser: analyser}
}

// Supports implements feature.Provider
func (p *TypesDefinitionProvider) Supports(language string) bool {
	return language == parser.LanguageGo
}

// GetLocations implements feature.DefinitionProvider
func (p *TypesDefinitionProvider) GetLocations(ctx context.Context, req *feature.Request) ([]protocol.Location, error) {
	res, _, obj, err := resolve(ctx, p.analyser, req)
	if err != nil || obj == nil {
		return nil, err
	}
	if obj.Pkg() != res.Package || !obj.Pos().IsValid() {
		return nil, nil
	}

	start := res.Fset.Position(obj.Pos()).Offset
	return []protocol.Location{{
		URI:   req.Document.URI().LSP(),
		Range: syntax.RangeOf(res.Text, start, start+len(obj.Name())),
	}}, nil
}

// TypesHoverProvider describes identifiers with their go/types object
type TypesHoverProvider struct {
	analyser *analysis.Analyser
}

// NewTypesHoverProvider creates a provider backed by analyser
func NewTypesHoverProvider(analyser *analysis.Analyser) *TypesHoverProvider {
	return &TypesHoverProvider{analyser: analyser}
}

// Supports implements feature.Provider
func (p *TypesHoverProvider) Supports(language string) bool {
	return language == parser.LanguageGo
}

// GetHovers implements feature.HoverProvider
func (p *TypesHoverProvider) GetHovers(ctx context.Context, req *feature.Request) ([]protocol.Hover, error) {
	res, ident, obj, err := resolve(ctx, p.analyser, req)
	if err != nil || obj == nil {
		return nil, err
	}

	start := res.Fset.Position(ident.Pos()).Offset
	rng := syntax.RangeOf(res.Text, start, start+len(ident.Name))
	return []protocol.Hover{{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: markdown(parser.LanguageGo, gotypes.ObjectString(obj, gotypes.RelativeTo(res.Package)), ""),
		},
		Range: &rng,
	}}, nil
}

func resolve(ctx context.Context, a *analysis.Analyser, req *feature.Request) (*analysis.Result, *ast.Ident, gotypes.Object, error) {
	if req.InComment() {
		return nil, nil, nil, nil
	}
	res, err := a.Analyse(ctx, req.Document)
	if err != nil {
		return nil, nil, nil, err
	}
	ident, obj := res.ObjectAt(req.Offset)
	return res, ident, obj, nil
}

// TypesDiagnosticsProvider reports go/types errors
type TypesDiagnosticsProvider struct {
	analyser *analysis.Analyser
}

// NewTypesDiagnosticsProvider creates a provider backed by analyser
func NewTypesDiagnosticsProvider(analyser *analysis.Analyser) *TypesDiagnosticsProvider {
	return &TypesDiagnosticsProvider{analyser: analyser}
}

// Supports implements feature.Provider
func (p *TypesDiagnosticsProvider) Supports(language string) bool {
	return language == parser.LanguageGo
}

// GetDiagnostics implements feature.DiagnosticsProvider
func (p *TypesDiagnosticsProvider) GetDiagnostics(ctx context.Context, doc *document.Document) ([]protocol.Diagnostic, error) {
	res, err := p.analyser.Analyse(ctx, doc)
	if err != nil {
		return nil, err
	}

	diags := make([]protocol.Diagnostic, 0, len(res.Errors))
	for _, terr := range res.Errors {
		start, end := wordBounds(res.Text, res.Fset.Position(terr.Pos).Offset)
		severity := protocol.DiagnosticSeverityError
		if terr.Soft {
			severity = protocol.DiagnosticSeverityWarning
		}
		diags = append(diags, protocol.Diagnostic{
			Range:    syntax.RangeOf(res.Text, start, end),
			Severity: severity,
			Source:   "go/types",
			Message:  terr.Msg,
		})
	}
	return diags, nil
}
