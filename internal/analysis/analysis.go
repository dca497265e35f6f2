// Package analysis type-checks documents with go/types. Checking is
// blocking work and always runs through the bridge.
package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"go/ast"
	"go/importer"
	"go/token"
	gotypes "go/types"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/dshills/langcore/internal/bridge"
	"github.com/dshills/langcore/internal/document"
	"github.com/dshills/langcore/internal/metrics"
	"github.com/dshills/langcore/internal/parser"
	"github.com/dshills/langcore/internal/syntax"
	"github.com/dshills/langcore/pkg/types"
)

// Importer modes
const (
	ImporterSource = "source"
	ImporterNone   = "none"
)

// Result is the outcome of checking one document. Errors holds the type
// errors that were kept; Missing holds those dropped because a declaration
// was not visible from the single-file view.
type Result struct {
	URI     types.URI
	Text    string
	Fset    *token.FileSet
	File    *ast.File
	Package *gotypes.Package
	Info    *gotypes.Info
	Errors  []gotypes.Error
	Missing []error
}

// ObjectAt returns the object referenced or declared by the identifier at
// offset, or nil
func (r *Result) ObjectAt(offset int) (*ast.Ident, gotypes.Object) {
	if r == nil || r.File == nil {
		return nil, nil
	}

	var found *ast.Ident
	ast.Inspect(r.File, func(n ast.Node) bool {
		if found != nil || n == nil {
			return false
		}
		id, ok := n.(*ast.Ident)
		if !ok {
			return true
		}
		start := r.Fset.Position(id.Pos()).Offset
		if start <= offset && offset <= start+len(id.Name) {
			found = id
		}
		return false
	})
	if found == nil {
		return nil, nil
	}
	return found, r.Info.ObjectOf(found)
}

// overlay is the document under analysis, installed by the before hook
type overlay struct {
	doc  *document.Document
	text string
	tree *syntax.Tree
}

// Analyser checks one document at a time. The document being checked is
// shared state configured by bridge hooks, so calls hold a guard.
type Analyser struct {
	bridge   *bridge.Bridge
	guard    *bridge.Guard
	parses   *parser.Cache
	cache    *document.Cache
	importer gotypes.Importer
	logger   *slog.Logger

	current atomic.Pointer[overlay]
}

// New creates an analyser. mode selects how imports are resolved: "source"
// type-checks imported packages from source, "none" resolves nothing.
func New(b *bridge.Bridge, parses *parser.Cache, cache *document.Cache, mode string, logger *slog.Logger) (*Analyser, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &Analyser{
		bridge: b,
		guard:  bridge.NewGuard("analysis"),
		parses: parses,
		cache:  cache,
		logger: logger.With("component", "analysis"),
	}

	switch mode {
	case ImporterSource, "":
		a.importer = importer.ForCompiler(token.NewFileSet(), "source", nil)
	case ImporterNone:
		a.importer = noImporter{}
	default:
		return nil, fmt.Errorf("unknown importer mode %q", mode)
	}
	return a, nil
}

// Analyse type-checks doc. Results are memoized per document content in the
// registry cache.
func (a *Analyser) Analyse(ctx context.Context, doc *document.Document) (*Result, error) {
	text, _ := doc.Snapshot()
	sum := sha256.Sum256([]byte(text))
	key := "analysis:" + doc.URI().Normalized() + "#" + hex.EncodeToString(sum[:])

	return document.Memoize(a.cache, key, func() (*Result, error) {
		return a.check(ctx, doc, text)
	})
}

func (a *Analyser) check(ctx context.Context, doc *document.Document, text string) (*Result, error) {
	before := func() error {
		a.current.Store(&overlay{doc: doc, text: text})
		return nil
	}
	after := func() error {
		a.current.Store(nil)
		return nil
	}

	return bridge.CallSync(ctx, a.bridge, a.run,
		bridge.WithGuard(a.guard),
		bridge.WithBefore(before),
		bridge.WithAfter(after),
	)
}

// run is the blocking routine. It reads the document from the overlay.
func (a *Analyser) run(sc *bridge.SyncCallContext) (*Result, error) {
	cur := a.current.Load()
	if cur == nil {
		return nil, errors.New("no document under analysis")
	}

	// Parsing may share work with other requests, so it runs with the
	// slot released.
	err := sc.Await(func(ctx context.Context) error {
		tree, err := a.parses.ParseText(ctx, cur.doc, cur.text)
		cur.tree = tree
		return err
	})
	if err != nil {
		return nil, err
	}

	fset, file, ok := parser.GoAST(cur.tree)
	if !ok {
		return nil, fmt.Errorf("%s: not a Go syntax tree", cur.doc.URI())
	}

	result := &Result{
		URI:  cur.doc.URI(),
		Text: cur.text,
		Fset: fset,
		File: file,
		Info: &gotypes.Info{
			Types: make(map[ast.Expr]gotypes.TypeAndValue),
			Defs:  make(map[*ast.Ident]gotypes.Object),
			Uses:  make(map[*ast.Ident]gotypes.Object),
		},
	}

	conf := gotypes.Config{
		Importer: a.importer,
		Error: func(err error) {
			terr, ok := err.(gotypes.Error)
			if !ok {
				return
			}
			if missing := missingSymbol(terr); missing != nil {
				result.Missing = append(result.Missing, missing)
				metrics.MissingSymbols.Inc()
				return
			}
			result.Errors = append(result.Errors, terr)
		},
	}

	name := "main"
	if file.Name != nil && file.Name.Name != "" {
		name = file.Name.Name
	}
	// Check reports every error through conf.Error; its return value is the
	// first of them.
	result.Package, _ = conf.Check(name, fset, []*ast.File{file}, result.Info)

	if len(result.Missing) > 0 {
		a.logger.Debug("dropped errors for declarations not visible yet",
			"uri", result.URI.String(), "count", len(result.Missing))
	}
	return result, nil
}

// missingSymbol classifies errors caused by declarations outside the
// checked file. They are expected while the index lags behind edits.
func missingSymbol(err gotypes.Error) error {
	msg := err.Msg
	if strings.HasPrefix(msg, "undefined: ") ||
		strings.HasPrefix(msg, "undeclared name: ") ||
		strings.Contains(msg, "could not import ") {
		return fmt.Errorf("%w: %s", types.ErrMissingSymbol, msg)
	}
	return nil
}

type noImporter struct{}

func (noImporter) Import(path string) (*gotypes.Package, error) {
	return nil, fmt.Errorf("imports are not resolved: %s", path)
}
