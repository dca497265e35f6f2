package parser

import (
	"fmt"

	"github.com/dshills/langcore/internal/index"
	"github.com/dshills/langcore/internal/syntax"
	"github.com/dshills/langcore/pkg/types"
)

// Entries converts extracted declarations to index entries. Each entry's
// range covers the declared name, the target of go-to-definition. Symbols
// failing Validate are skipped. Imports are keyed by the name they bind
// and cover the quoted path.
func Entries(uri types.URI, text string, result *types.ParseResult) []index.Entry {
	entries := make([]index.Entry, 0, len(result.Symbols)+len(result.Imports)+1)

	if result.PackageName != "" {
		start := result.PackagePos.Offset
		entries = append(entries, index.Entry{
			SourceURI: uri,
			Category:  index.CategoryPackage,
			Key:       result.PackageName,
			Name:      result.PackageName,
			Kind:      "package",
			Signature: "package " + result.PackageName,
			Range:     syntax.RangeOf(text, start, start+len(result.PackageName)),
		})
	}

	for _, imp := range result.Imports {
		name := imp.LocalName()
		if name == "" {
			continue
		}
		signature := fmt.Sprintf("import %q", imp.Path)
		if imp.Alias != "" {
			signature = fmt.Sprintf("import %s %q", imp.Alias, imp.Path)
		}
		start := imp.Pos.Offset
		entries = append(entries, index.Entry{
			SourceURI: uri,
			Category:  index.CategoryImport,
			Key:       name,
			Name:      imp.Path,
			Kind:      "import",
			Signature: signature,
			Range:     syntax.RangeOf(text, start, start+len(imp.Path)+2),
		})
	}

	for _, sym := range result.Symbols {
		if sym.Validate() != nil {
			continue
		}
		start := sym.NamePos.Offset
		entries = append(entries, index.Entry{
			SourceURI: uri,
			Category:  index.CategoryDeclaration,
			Key:       sym.Name,
			Name:      sym.Name,
			Kind:      string(sym.Kind),
			Container: sym.Receiver,
			Signature: sym.Signature,
			Doc:       sym.DocComment,
			Range:     syntax.RangeOf(text, start, start+len(sym.Name)),
		})
	}
	return entries
}
