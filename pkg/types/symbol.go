package types

import (
	"errors"
	"fmt"
	"go/token"
)

// SymbolKind represents the type of Go language symbol
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindStruct    SymbolKind = "struct"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
	KindConst     SymbolKind = "const"
	KindVar       SymbolKind = "var"
	KindField     SymbolKind = "field"
)

// SymbolScope represents the visibility scope of a symbol
type SymbolScope string

const (
	ScopeExported   SymbolScope = "exported"
	ScopeUnexported SymbolScope = "unexported"
)

// Position represents a location in source code.
// Lines and columns are 1-based, columns count bytes. Offset is the 0-based
// byte offset.
type Position struct {
	Line   int
	Column int
	Offset int
}

// Symbol represents a declaration extracted from a parsed document
type Symbol struct {
	// Identification
	Name    string
	Kind    SymbolKind
	Package string

	// Content
	Signature  string // Function signature or type definition
	DocComment string

	// Scope
	Scope    SymbolScope
	Receiver string // Methods: receiver type name, fields: struct name

	// Location
	Start   Position
	End     Position
	NamePos Position
}

// Valid reports whether k is a known kind
func (k SymbolKind) Valid() bool {
	switch k {
	case KindFunction, KindMethod, KindStruct, KindInterface, KindType, KindConst, KindVar, KindField:
		return true
	}
	return false
}

// Validate reports why a symbol cannot be indexed. The parser drops such
// symbols instead of failing the file.
func (s *Symbol) Validate() error {
	switch {
	case s.Name == "" || s.Name == "_":
		return errors.New("symbol has no usable name")
	case !s.Kind.Valid():
		return fmt.Errorf("%s: invalid symbol kind %q", s.Name, s.Kind)
	case s.Package == "":
		return fmt.Errorf("%s: package name is required", s.Name)
	case s.Scope != ScopeExported && s.Scope != ScopeUnexported:
		return fmt.Errorf("%s: invalid symbol scope %q", s.Name, s.Scope)
	case (s.Scope == ScopeExported) != token.IsExported(s.Name):
		return fmt.Errorf("%s: scope %s does not match the name", s.Name, s.Scope)
	case s.Kind == KindMethod && s.Receiver == "":
		return fmt.Errorf("%s: methods must have a receiver type", s.Name)
	case s.Kind != KindMethod && s.Kind != KindField && s.Receiver != "":
		return fmt.Errorf("%s: only methods and fields have a receiver", s.Name)
	case s.NamePos.Line <= 0 || s.Start.Line > s.End.Line:
		return fmt.Errorf("%s: invalid position", s.Name)
	}
	return nil
}
