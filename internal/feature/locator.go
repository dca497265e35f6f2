package feature

import (
	"context"
	"fmt"

	"go.lsp.dev/protocol"

	"github.com/dshills/langcore/internal/document"
	"github.com/dshills/langcore/internal/parser"
	"github.com/dshills/langcore/internal/syntax"
)

// Request is a feature request resolved against the document's syntax tree
type Request struct {
	Document *document.Document
	Text     string
	Position protocol.Position
	Offset   int
	Tree     *syntax.Tree

	// Nodes enclosing Offset, innermost first
	Nodes []syntax.Node
}

// Innermost returns the most specific node, or nil
func (r *Request) Innermost() syntax.Node {
	if len(r.Nodes) == 0 {
		return nil
	}
	return r.Nodes[0]
}

// InComment reports whether the position is inside a comment
func (r *Request) InComment() bool {
	_, ok := r.Innermost().(*syntax.Comment)
	return ok
}

// Locator parses documents and resolves positions to nodes
type Locator struct {
	parses *parser.Cache
}

// NewLocator creates a locator over a parse cache
func NewLocator(parses *parser.Cache) *Locator {
	return &Locator{parses: parses}
}

// Locate parses doc and finds the nodes enclosing pos
func (l *Locator) Locate(ctx context.Context, doc *document.Document, pos protocol.Position) (*Request, error) {
	text := doc.Text()
	tree, err := l.parses.ParseText(ctx, doc, text)
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", doc.URI(), err)
	}

	offset := syntax.OffsetAt(text, pos)

	return &Request{
		Document: doc,
		Text:     text,
		Position: pos,
		Offset:   offset,
		Tree:     tree,
		Nodes:    syntax.FindNodes(tree.Root, offset),
	}, nil
}
