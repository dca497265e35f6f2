// Package parser turns document text into syntax trees and index entries.
//
// GoParser is built on go/parser. Parse adapts the go/ast tree to the
// syntax.Node contract used by the node locator, with comments attached
// through ast.CommentMap:
//
//	tree, err := parser.New().Parse(ctx, uri, text)
//	nodes := syntax.FindNodesAt(tree, text, pos)
//
// Symbols extracts top-level declarations (functions, methods, types,
// struct fields, interface methods, constants and variables), and Entries
// converts them to index.Entry values ranged on the declared name.
//
// # Error Handling
//
// Syntax errors never fail a parse. They are reported in Tree.Errors or
// ParseResult.Errors next to the partial result, so that indexing and
// navigation keep working while a file is being edited.
//
// # Caching
//
// Cache keys trees by normalized URI and content hash. Identical concurrent
// requests share one parse.
package parser
