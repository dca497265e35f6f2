package types

import "path"

// ParseResult represents the declarations extracted from one source file
type ParseResult struct {
	// Extracted data
	Symbols     []Symbol
	Imports     []Import
	PackageName string
	PackagePos  Position

	// Errors encountered during parsing
	Errors []ParseError
}

// Import represents an import statement in a Go file
type Import struct {
	Path  string   // Import path (e.g., "github.com/pkg/errors")
	Alias string   // Import alias if present (e.g., ".")
	Pos   Position // Opening quote of the path
}

// LocalName is the identifier the import binds in the file: the alias, or
// the last path element. Blank and dot imports bind none.
func (i Import) LocalName() string {
	switch i.Alias {
	case "_", ".":
		return ""
	case "":
		return path.Base(i.Path)
	}
	return i.Alias
}

// ParseError represents an error that occurred during parsing
type ParseError struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	return pe.Message
}

// HasErrors returns true if any parsing errors occurred
func (pr *ParseResult) HasErrors() bool {
	return len(pr.Errors) > 0
}

// AddError adds a parsing error to the result
func (pr *ParseResult) AddError(file string, line, col int, msg string) {
	pr.Errors = append(pr.Errors, ParseError{
		File:    file,
		Line:    line,
		Column:  col,
		Message: msg,
	})
}
