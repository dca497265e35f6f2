package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/dshills/langcore/internal/index"
	"github.com/dshills/langcore/internal/syntax"
	"github.com/dshills/langcore/pkg/types"
)

const treeSource = `package demo

// Greet says hello.
func Greet(name string) string {
	msg := "hi " + name
	return msg
}
`

func parseTree(t *testing.T, src string) *syntax.Tree {
	t.Helper()
	tree, err := New().Parse(context.Background(), types.FileURI("/src/demo/demo.go"), src)
	require.NoError(t, err)
	require.NotNil(t, tree)
	return tree
}

func TestParse_RootSpansWholeText(t *testing.T) {
	tree := parseTree(t, treeSource)

	assert.Equal(t, LanguageGo, tree.Language)
	assert.Empty(t, tree.Errors)
	assert.Equal(t, "File", tree.Root.Kind())
	assert.Equal(t, syntax.Span{Start: 0, End: len(treeSource)}, tree.Root.Span())

	kinds := make([]string, 0)
	for _, c := range tree.Root.Children() {
		kinds = append(kinds, c.Kind())
	}
	assert.Equal(t, []string{"Ident", "FuncDecl"}, kinds)
}

func TestParse_CommentIsInnermost(t *testing.T) {
	tree := parseTree(t, treeSource)
	offset := strings.Index(treeSource, "says")

	nodes := syntax.FindNodes(tree.Root, offset)

	require.NotEmpty(t, nodes)
	c, ok := nodes[0].(*syntax.Comment)
	require.True(t, ok, "innermost hit is %s", nodes[0].Kind())
	assert.Equal(t, "// Greet says hello.", c.Text)
	assert.Equal(t, "File", nodes[len(nodes)-1].Kind())
}

func TestParse_IdentifierIsInnermost(t *testing.T) {
	tree := parseTree(t, treeSource)
	offset := strings.Index(treeSource, "msg :=")

	nodes := syntax.FindNodes(tree.Root, offset)

	require.NotEmpty(t, nodes)
	ident, ok := nodes[0].(*GoNode)
	require.True(t, ok)
	assert.Equal(t, "Ident", ident.Kind())
	assert.Equal(t, offset, ident.Span().Start)

	var kinds []string
	for _, n := range nodes {
		kinds = append(kinds, n.Kind())
	}
	assert.Equal(t, []string{"Ident", "AssignStmt", "BlockStmt", "FuncDecl", "File"}, kinds)
}

func TestParse_SyntaxErrorsKeepPartialTree(t *testing.T) {
	tree := parseTree(t, "package demo\n\nfunc broken( {\n}\n")

	assert.NotEmpty(t, tree.Errors)
	assert.NotNil(t, tree.Root)
	assert.Positive(t, tree.Errors[0].Offset)
}

func TestParse_EmptyText(t *testing.T) {
	tree := parseTree(t, "")

	assert.NotEmpty(t, tree.Errors)
	assert.Equal(t, syntax.Span{Start: 0, End: 0}, tree.Root.Span())
}

func TestParse_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Parse(ctx, types.FileURI("/x.go"), "package x")
	assert.ErrorIs(t, err, types.ErrCancelled)
}

func TestGoAST(t *testing.T) {
	tree := parseTree(t, treeSource)

	fset, file, ok := GoAST(tree)
	require.True(t, ok)
	assert.NotNil(t, fset)
	assert.Equal(t, "demo", file.Name.Name)

	_, _, ok = GoAST(&syntax.Tree{Root: &syntax.Comment{}})
	assert.False(t, ok)
}

func TestEntries(t *testing.T) {
	uri := types.FileURI("/src/demo/demo.go")
	result := New().Symbols(uri, treeSource)

	entries := Entries(uri, treeSource, result)

	require.Len(t, entries, 2)
	assert.Equal(t, "demo", entries[0].Key)
	assert.Equal(t, uint32(0), entries[0].Range.Start.Line)
	assert.Equal(t, uint32(8), entries[0].Range.Start.Character)

	greet := entries[1]
	assert.Equal(t, "Greet", greet.Key)
	assert.Equal(t, "function", greet.Kind)
	assert.Equal(t, "Greet says hello.", greet.Doc)
	assert.True(t, greet.SourceURI.Equals(uri))
	assert.Equal(t, uint32(3), greet.Range.Start.Line)
	assert.Equal(t, uint32(5), greet.Range.Start.Character)
	assert.Equal(t, uint32(10), greet.Range.End.Character)
}

func TestEntries_ImportsAndInvalidSymbols(t *testing.T) {
	uri := types.FileURI("/src/demo/demo.go")
	src := "package demo\n\nimport (\n\t\"fmt\"\n\tpath \"path/filepath\"\n\t_ \"embed\"\n)\n\nfunc Run() {}\n"
	result := New().Symbols(uri, src)
	result.Symbols = append(result.Symbols, types.Symbol{Name: "Broken", Kind: "macro", Package: "demo"})

	entries := Entries(uri, src, result)

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"demo", "fmt", "path", "Run"}, keys)

	fmtEntry := entries[1]
	assert.Equal(t, index.CategoryImport, fmtEntry.Category)
	assert.Equal(t, "fmt", fmtEntry.Name)
	assert.Equal(t, `import "fmt"`, fmtEntry.Signature)
	assert.Equal(t, protocol.Range{
		Start: protocol.Position{Line: 3, Character: 1},
		End:   protocol.Position{Line: 3, Character: 6},
	}, fmtEntry.Range)

	assert.Equal(t, "path/filepath", entries[2].Name)
	assert.Equal(t, `import path "path/filepath"`, entries[2].Signature)
}
