package provider

import (
	"context"
	"fmt"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/dshills/langcore/internal/feature"
	"github.com/dshills/langcore/internal/index"
	"github.com/dshills/langcore/internal/syntax"
)

// IndexDefinitionProvider resolves the word at the cursor against the index
type IndexDefinitionProvider struct {
	languages
	storage index.Storage
}

// NewIndexDefinitionProvider creates a provider for the given languages,
// or for every language when none are given
func NewIndexDefinitionProvider(storage index.Storage, langs ...string) *IndexDefinitionProvider {
	return &IndexDefinitionProvider{languages: langs, storage: storage}
}

// GetLocations returns the declaration of every indexed entry keyed by the
// word at the cursor
func (p *IndexDefinitionProvider) GetLocations(ctx context.Context, req *feature.Request) ([]protocol.Location, error) {
	entries, err := lookup(ctx, p.storage, req)
	if err != nil {
		return nil, err
	}

	locations := make([]protocol.Location, 0, len(entries))
	for _, e := range entries {
		// an import binds its name in its own file only
		if e.Category == index.CategoryImport && !e.SourceURI.Equals(req.Document.URI()) {
			continue
		}
		locations = append(locations, protocol.Location{URI: e.SourceURI.LSP(), Range: e.Range})
	}
	return locations, nil
}

// IndexHoverProvider shows the signature and documentation of indexed
// declarations
type IndexHoverProvider struct {
	languages
	storage index.Storage
}

// NewIndexHoverProvider creates a provider for the given languages
func NewIndexHoverProvider(storage index.Storage, langs ...string) *IndexHoverProvider {
	return &IndexHoverProvider{languages: langs, storage: storage}
}

// GetHovers returns one hover per matching declaration
func (p *IndexHoverProvider) GetHovers(ctx context.Context, req *feature.Request) ([]protocol.Hover, error) {
	entries, err := lookup(ctx, p.storage, req)
	if err != nil {
		return nil, err
	}

	start, end := wordBounds(req.Text, req.Offset)
	rng := syntax.RangeOf(req.Text, start, end)

	hovers := make([]protocol.Hover, 0, len(entries))
	for _, e := range entries {
		if e.Category != index.CategoryDeclaration {
			continue
		}
		hovers = append(hovers, protocol.Hover{
			Contents: protocol.MarkupContent{
				Kind:  protocol.Markdown,
				Value: markdown(req.Document.Language(), e.Signature, e.Doc),
			},
			Range: &rng,
		})
	}
	return hovers, nil
}

func lookup(ctx context.Context, storage index.Storage, req *feature.Request) ([]index.Entry, error) {
	if req.InComment() {
		return nil, nil
	}
	name := wordAt(req.Text, req.Offset)
	if name == "" {
		return nil, nil
	}

	entries, err := storage.Search(ctx, index.Query{Key: name, Match: index.MatchExact})
	if err != nil {
		return nil, fmt.Errorf("index lookup %q: %w", name, err)
	}
	return entries, nil
}

func markdown(language, code, doc string) string {
	var b strings.Builder
	b.WriteString("```")
	b.WriteString(language)
	b.WriteString("\n")
	b.WriteString(code)
	b.WriteString("\n```")
	if doc != "" {
		b.WriteString("\n\n")
		b.WriteString(doc)
	}
	return b.String()
}
