// Package types provides shared type definitions for langcore.
//
// # Identities
//
// URI is the identity of documents and projects. It wraps go.lsp.dev/uri and
// precomputes a normalized form that is used as map key everywhere:
//
//	u := types.MustParseURI("file:///work/app/../app/main.go")
//	u.Normalized() // "file:///work/app/main.go"
//
//	root := types.FileURI("/work")
//	root.IsParentOf(u) // true
//
// # Symbols
//
// Symbol represents a declaration extracted from source via AST parsing.
// The indexer turns symbols into index entries:
//
//	symbol := &types.Symbol{
//	    Name:      "ParseFile",
//	    Kind:      types.KindFunction,
//	    Package:   "parser",
//	    Signature: "func ParseFile(path string) (*ParseResult, error)",
//	}
//
// # Errors
//
// The error taxonomy is shared by every layer. NotOpenError unwraps to
// ErrDocumentNotOpen or ErrProjectNotOpen, so callers test with errors.Is:
//
//	if errors.Is(err, types.ErrDocumentNotOpen) {
//	    // report to the client, never retried
//	}
//
// ErrCancelled is returned by awaited operations whose context ended first.
// ErrMissingSymbol marks analysis that referenced a declaration the index has
// not caught up with yet; it is recovered locally.
package types
