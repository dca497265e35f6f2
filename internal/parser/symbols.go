package parser

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"

	"github.com/dshills/langcore/pkg/types"
)

// symbolExtractor is a visitor for AST traversal that extracts declarations
type symbolExtractor struct {
	fset        *token.FileSet
	packageName string
	symbols     []types.Symbol
}

// visit is called for each AST node during traversal. Only top-level
// declarations are collected, so function bodies are not entered.
func (e *symbolExtractor) visit(node ast.Node) bool {
	switch n := node.(type) {
	case nil:
		return false
	case *ast.File:
		return true
	case *ast.FuncDecl:
		e.extractFunction(n)
	case *ast.GenDecl:
		e.extractGenDecl(n)
	}
	return false
}

func (e *symbolExtractor) newSymbol(name *ast.Ident, kind types.SymbolKind, node ast.Node, doc *ast.CommentGroup) types.Symbol {
	return types.Symbol{
		Name:       name.Name,
		Kind:       kind,
		Package:    e.packageName,
		DocComment: docText(doc),
		Scope:      scopeOf(name.Name),
		Start:      position(e.fset, node.Pos()),
		End:        position(e.fset, node.End()),
		NamePos:    position(e.fset, name.Pos()),
	}
}

// extractFunction extracts function and method declarations
func (e *symbolExtractor) extractFunction(funcDecl *ast.FuncDecl) {
	kind := types.KindFunction
	if funcDecl.Recv != nil && len(funcDecl.Recv.List) > 0 {
		kind = types.KindMethod
	}

	sym := e.newSymbol(funcDecl.Name, kind, funcDecl, funcDecl.Doc)
	if kind == types.KindMethod {
		sym.Receiver = receiverTypeName(funcDecl.Recv.List[0].Type)
	}
	sym.Signature = functionSignature(funcDecl)

	e.symbols = append(e.symbols, sym)
}

// extractGenDecl extracts type, const, and var declarations
func (e *symbolExtractor) extractGenDecl(genDecl *ast.GenDecl) {
	for _, spec := range genDecl.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			doc := s.Doc
			if doc == nil {
				doc = genDecl.Doc
			}
			e.extractTypeSpec(s, doc)
		case *ast.ValueSpec:
			doc := s.Doc
			if doc == nil {
				doc = genDecl.Doc
			}
			e.extractValueSpec(s, doc, genDecl.Tok)
		}
	}
}

// extractTypeSpec extracts struct, interface, and named type declarations
func (e *symbolExtractor) extractTypeSpec(typeSpec *ast.TypeSpec, doc *ast.CommentGroup) {
	var sym types.Symbol

	switch t := typeSpec.Type.(type) {
	case *ast.StructType:
		sym = e.newSymbol(typeSpec.Name, types.KindStruct, typeSpec, doc)
		sym.Signature = fmt.Sprintf("type %s struct { ... } // %d fields", typeSpec.Name.Name, t.Fields.NumFields())
	case *ast.InterfaceType:
		sym = e.newSymbol(typeSpec.Name, types.KindInterface, typeSpec, doc)
		sym.Signature = fmt.Sprintf("type %s interface { ... } // %d methods", typeSpec.Name.Name, t.Methods.NumFields())
	default:
		sym = e.newSymbol(typeSpec.Name, types.KindType, typeSpec, doc)
		sym.Signature = fmt.Sprintf("type %s %s", typeSpec.Name.Name, exprString(typeSpec.Type))
	}
	e.symbols = append(e.symbols, sym)

	if structType, ok := typeSpec.Type.(*ast.StructType); ok {
		e.extractStructFields(typeSpec.Name.Name, structType)
	}
	if ifaceType, ok := typeSpec.Type.(*ast.InterfaceType); ok {
		e.extractInterfaceMethods(typeSpec.Name.Name, ifaceType)
	}
}

// extractStructFields extracts field symbols from a struct
func (e *symbolExtractor) extractStructFields(structName string, structType *ast.StructType) {
	if structType.Fields == nil {
		return
	}

	for _, field := range structType.Fields.List {
		for _, name := range field.Names {
			sym := e.newSymbol(name, types.KindField, field, field.Doc)
			sym.Receiver = structName
			sym.Signature = fmt.Sprintf("%s %s", name.Name, exprString(field.Type))
			e.symbols = append(e.symbols, sym)
		}
	}
}

// extractInterfaceMethods extracts the methods an interface declares
func (e *symbolExtractor) extractInterfaceMethods(ifaceName string, ifaceType *ast.InterfaceType) {
	if ifaceType.Methods == nil {
		return
	}

	for _, field := range ifaceType.Methods.List {
		ft, ok := field.Type.(*ast.FuncType)
		if !ok {
			continue
		}
		for _, name := range field.Names {
			sym := e.newSymbol(name, types.KindMethod, field, field.Doc)
			sym.Receiver = ifaceName
			sym.Signature = "func " + name.Name + funcTypeString(ft)
			e.symbols = append(e.symbols, sym)
		}
	}
}

// extractValueSpec extracts const and var declarations
func (e *symbolExtractor) extractValueSpec(valueSpec *ast.ValueSpec, doc *ast.CommentGroup, tok token.Token) {
	kind := types.KindVar
	if tok == token.CONST {
		kind = types.KindConst
	}

	for _, name := range valueSpec.Names {
		if name.Name == "_" {
			continue
		}
		sym := e.newSymbol(name, kind, valueSpec, doc)

		switch {
		case valueSpec.Type != nil:
			sym.Signature = fmt.Sprintf("%s %s %s", tok, name.Name, exprString(valueSpec.Type))
		case len(valueSpec.Values) > 0:
			sym.Signature = fmt.Sprintf("%s %s = ...", tok, name.Name)
		default:
			sym.Signature = fmt.Sprintf("%s %s", tok, name.Name)
		}

		e.symbols = append(e.symbols, sym)
	}
}

// receiverTypeName extracts the receiver type name from a method
func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	case *ast.Ident:
		return t.Name
	}
	return ""
}

// functionSignature builds a function signature string
func functionSignature(funcDecl *ast.FuncDecl) string {
	var sig strings.Builder

	sig.WriteString("func ")
	if funcDecl.Recv != nil && len(funcDecl.Recv.List) > 0 {
		sig.WriteString("(")
		sig.WriteString(exprString(funcDecl.Recv.List[0].Type))
		sig.WriteString(") ")
	}
	sig.WriteString(funcDecl.Name.Name)
	sig.WriteString(funcTypeString(funcDecl.Type))

	return sig.String()
}

func funcTypeString(ft *ast.FuncType) string {
	var sig strings.Builder

	sig.WriteString("(")
	sig.WriteString(fieldListString(ft.Params))
	sig.WriteString(")")

	if ft.Results != nil {
		results := fieldListString(ft.Results)
		if results != "" {
			if ft.Results.NumFields() > 1 || len(ft.Results.List[0].Names) > 0 {
				sig.WriteString(" (" + results + ")")
			} else {
				sig.WriteString(" " + results)
			}
		}
	}
	return sig.String()
}

// fieldListString converts a field list to a string representation
func fieldListString(fieldList *ast.FieldList) string {
	if fieldList == nil || len(fieldList.List) == 0 {
		return ""
	}

	var parts []string
	for _, field := range fieldList.List {
		typeStr := exprString(field.Type)
		if len(field.Names) > 0 {
			for _, name := range field.Names {
				parts = append(parts, name.Name+" "+typeStr)
			}
		} else {
			parts = append(parts, typeStr)
		}
	}

	return strings.Join(parts, ", ")
}

// exprString converts a type expression to a string representation
func exprString(expr ast.Expr) string {
	switch t := expr.(type) {
	case nil:
		return ""
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprString(t.X)
	case *ast.ArrayType:
		if t.Len != nil {
			return "[...]" + exprString(t.Elt)
		}
		return "[]" + exprString(t.Elt)
	case *ast.MapType:
		return fmt.Sprintf("map[%s]%s", exprString(t.Key), exprString(t.Value))
	case *ast.ChanType:
		return "chan " + exprString(t.Value)
	case *ast.FuncType:
		return "func" + funcTypeString(t)
	case *ast.InterfaceType:
		if t.Methods == nil || len(t.Methods.List) == 0 {
			return "interface{}"
		}
		return "interface{ ... }"
	case *ast.StructType:
		return "struct{ ... }"
	case *ast.SelectorExpr:
		return exprString(t.X) + "." + t.Sel.Name
	case *ast.Ellipsis:
		return "..." + exprString(t.Elt)
	case *ast.IndexExpr:
		return exprString(t.X) + "[" + exprString(t.Index) + "]"
	case *ast.IndexListExpr:
		args := make([]string, 0, len(t.Indices))
		for _, idx := range t.Indices {
			args = append(args, exprString(idx))
		}
		return exprString(t.X) + "[" + strings.Join(args, ", ") + "]"
	default:
		return "..."
	}
}

func docText(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}

func scopeOf(name string) types.SymbolScope {
	if token.IsExported(name) {
		return types.ScopeExported
	}
	return types.ScopeUnexported
}
