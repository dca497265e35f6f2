// Package index defines indexed symbol knowledge and the storage tiers that
// answer searches over it.
//
// A tier reports, for every source file it knows, the time that file was
// indexed. ChainedStorage composes a small primary tier (open documents,
// unsaved edits) with a large secondary tier (the persisted index). A primary
// record for a file shadows every secondary entry from that file.
package index

import (
	"context"
	"strings"
	"time"

	"go.lsp.dev/protocol"

	"github.com/dshills/langcore/pkg/types"
)

// Entry categories
const (
	CategoryDeclaration = "declaration"
	CategoryPackage     = "package"
	CategoryImport      = "import"
)

// Entry is one unit of indexed knowledge derived from SourceURI
type Entry struct {
	SourceURI types.URI
	Category  string
	Key       string
	Name      string
	Kind      string
	Container string
	Signature string
	Doc       string
	Range     protocol.Range
}

// MatchMode selects how Query.Key is compared
type MatchMode int

const (
	// MatchExact requires Key equality
	MatchExact MatchMode = iota
	// MatchPrefix matches keys starting with Key; an empty Key matches all
	MatchPrefix
)

// Query selects entries. An empty Category matches every category.
type Query struct {
	Category string
	Key      string
	Match    MatchMode
}

// All matches every entry
func All() Query {
	return Query{Match: MatchPrefix}
}

// Matches reports whether e satisfies q
func (q Query) Matches(e Entry) bool {
	if q.Category != "" && q.Category != e.Category {
		return false
	}
	if q.Match == MatchPrefix {
		return strings.HasPrefix(e.Key, q.Key)
	}
	return e.Key == q.Key
}

// Storage is a searchable index tier
type Storage interface {
	// Search returns the entries matching q
	Search(ctx context.Context, q Query) ([]Entry, error)

	// FileTimestamps maps the normalized URI of every indexed file to its
	// indexing time. A non-nil filter restricts the map to that URI and the
	// files below it.
	FileTimestamps(ctx context.Context, filter *types.URI) (map[string]time.Time, error)
}

// WritableStorage is a tier that can be updated one file at a time
type WritableStorage interface {
	Storage

	// ReplaceFile swaps every entry from uri for entries
	ReplaceFile(ctx context.Context, uri types.URI, entries []Entry, indexedAt time.Time) error

	// RemoveFile drops every entry and the timestamp for uri
	RemoveFile(ctx context.Context, uri types.URI) error
}

// InFilter reports whether the normalized URI passes the timestamp filter
func InFilter(normalized string, filter *types.URI) bool {
	if filter == nil {
		return true
	}
	if normalized == filter.Normalized() {
		return true
	}
	prefix := filter.Normalized()
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return strings.HasPrefix(normalized, prefix)
}
