package parser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/langcore/internal/document"
	"github.com/dshills/langcore/internal/metrics"
	"github.com/dshills/langcore/internal/syntax"
)

// DefaultCacheSize is the number of parsed trees kept by default
const DefaultCacheSize = 256

// ErrNoParser is returned for documents in a language without a parser
var ErrNoParser = errors.New("no parser for language")

// Cache parses documents through a Registry and keeps the trees keyed by
// document identity and content, so an edit never returns a stale tree.
// Concurrent parses of the same key share one call.
type Cache struct {
	registry *Registry
	trees    *lru.Cache[string, *syntax.Tree]
	group    singleflight.Group
}

// NewCache creates a parse cache holding at most size trees
func NewCache(registry *Registry, size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	trees, err := lru.New[string, *syntax.Tree](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create parse cache: %w", err)
	}
	return &Cache{registry: registry, trees: trees}, nil
}

// Registry returns the parsers used by the cache
func (c *Cache) Registry() *Registry {
	return c.registry
}

// Parse returns the syntax tree for the document's current text
func (c *Cache) Parse(ctx context.Context, doc *document.Document) (*syntax.Tree, error) {
	text, _ := doc.Snapshot()
	return c.ParseText(ctx, doc, text)
}

// ParseText returns the syntax tree for text, a snapshot of doc read by the
// caller
func (c *Cache) ParseText(ctx context.Context, doc *document.Document, text string) (*syntax.Tree, error) {
	p, ok := c.registry.Get(doc.Language())
	if !ok {
		return nil, fmt.Errorf("%s: %w: %q", doc.URI(), ErrNoParser, doc.Language())
	}

	key := cacheKey(doc, text)

	if tree, ok := c.trees.Get(key); ok {
		metrics.CacheLookups.WithLabelValues("parse", "hit").Inc()
		return tree, nil
	}
	metrics.CacheLookups.WithLabelValues("parse", "miss").Inc()

	v, err, _ := c.group.Do(key, func() (any, error) {
		tree, err := p.Parse(ctx, doc.URI(), text)
		if err != nil {
			return nil, err
		}
		c.trees.Add(key, tree)
		return tree, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*syntax.Tree), nil
}

// Len returns the number of cached trees
func (c *Cache) Len() int {
	return c.trees.Len()
}

func cacheKey(doc *document.Document, text string) string {
	sum := sha256.Sum256([]byte(text))
	return doc.URI().Normalized() + "#" + hex.EncodeToString(sum[:])
}
