package parser

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"os"
	"strings"

	"github.com/dshills/langcore/internal/syntax"
	"github.com/dshills/langcore/pkg/types"
)

// LanguageGo is the language tag handled by GoParser
const LanguageGo = "go"

// Parser turns document text into a syntax tree
type Parser interface {
	Language() string
	Parse(ctx context.Context, uri types.URI, text string) (*syntax.Tree, error)
}

// GoParser handles AST-based parsing of Go source files
type GoParser struct{}

// New creates a new GoParser instance
func New() *GoParser {
	return &GoParser{}
}

// Language implements Parser
func (p *GoParser) Language() string {
	return LanguageGo
}

// Parse implements Parser. Syntax errors are reported in Tree.Errors along
// with the partial tree go/parser recovered.
func (p *GoParser) Parse(ctx context.Context, uri types.URI, text string) (*syntax.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.Cancelled(err)
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename(uri), text, parser.ParseComments|parser.AllErrors)
	if file == nil {
		return nil, fmt.Errorf("failed to parse %s: %w", uri, err)
	}

	tree := &syntax.Tree{
		Language: LanguageGo,
		Root:     newGoRoot(fset, file, len(text)),
		Errors:   syntaxErrors(err),
	}
	return tree, nil
}

// ParseFile reads a Go source file from disk and extracts its declarations
func (p *GoParser) ParseFile(filePath string) (*types.ParseResult, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.ParseSource(filePath, content), nil
}

// ParseSource extracts declarations from Go source. Syntax errors are
// non-fatal: they are recorded and symbols come from the partial AST.
func (p *GoParser) ParseSource(filePath string, src []byte) *types.ParseResult {
	result := &types.ParseResult{}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filePath, src, parser.ParseComments)
	if err != nil {
		var list scanner.ErrorList
		if errors.As(err, &list) {
			for _, e := range list {
				result.AddError(filePath, e.Pos.Line, e.Pos.Column, "syntax error: "+e.Msg)
			}
		} else {
			result.AddError(filePath, 0, 0, fmt.Sprintf("syntax error: %v", err))
		}
	}

	if file == nil {
		return result
	}

	if file.Name != nil && file.Name.Name != "" {
		result.PackageName = file.Name.Name
		result.PackagePos = position(fset, file.Name.Pos())
	}
	result.Imports = extractImports(fset, file)

	extractor := &symbolExtractor{
		fset:        fset,
		packageName: result.PackageName,
		symbols:     make([]types.Symbol, 0),
	}
	ast.Inspect(file, extractor.visit)
	result.Symbols = extractor.symbols

	return result
}

// Symbols extracts declarations from document text
func (p *GoParser) Symbols(uri types.URI, text string) *types.ParseResult {
	return p.ParseSource(filename(uri), []byte(text))
}

func filename(uri types.URI) string {
	if path, err := uri.FilesystemPath(); err == nil {
		return path
	}
	return uri.String()
}

func syntaxErrors(err error) []syntax.Error {
	if err == nil {
		return nil
	}

	var list scanner.ErrorList
	if !errors.As(err, &list) {
		return []syntax.Error{{Message: err.Error()}}
	}

	out := make([]syntax.Error, 0, len(list))
	for _, e := range list {
		out = append(out, syntax.Error{Offset: e.Pos.Offset, Message: e.Msg})
	}
	return out
}

// extractImports extracts import statements from the AST
func extractImports(fset *token.FileSet, file *ast.File) []types.Import {
	imports := make([]types.Import, 0, len(file.Imports))

	for _, imp := range file.Imports {
		importSpec := types.Import{
			Path: strings.Trim(imp.Path.Value, "`\""),
			Pos:  position(fset, imp.Path.Pos()),
		}
		if imp.Name != nil {
			importSpec.Alias = imp.Name.Name
		}
		imports = append(imports, importSpec)
	}

	return imports
}

func position(fset *token.FileSet, pos token.Pos) types.Position {
	p := fset.Position(pos)
	return types.Position{Line: p.Line, Column: p.Column, Offset: p.Offset}
}
