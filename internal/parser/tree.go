package parser

import (
	"fmt"
	"go/ast"
	"go/token"
	"strings"

	"github.com/dshills/langcore/internal/syntax"
)

// goTree is the state shared by every node of one parsed file
type goTree struct {
	fset  *token.FileSet
	tfile *token.File
	file  *ast.File
	cmap  ast.CommentMap
	size  int
}

// GoNode adapts a go/ast node to syntax.Node
type GoNode struct {
	tree *goTree
	node ast.Node
}

func newGoRoot(fset *token.FileSet, file *ast.File, size int) *GoNode {
	var tfile *token.File
	fset.Iterate(func(f *token.File) bool {
		tfile = f
		return false
	})

	tree := &goTree{
		fset:  fset,
		tfile: tfile,
		file:  file,
		cmap:  ast.NewCommentMap(fset, file, file.Comments),
		size:  size,
	}
	return &GoNode{tree: tree, node: file}
}

// GoAST returns the go/ast file behind a tree produced by GoParser
func GoAST(tree *syntax.Tree) (*token.FileSet, *ast.File, bool) {
	if tree == nil {
		return nil, nil, false
	}
	root, ok := tree.Root.(*GoNode)
	if !ok {
		return nil, nil, false
	}
	return root.tree.fset, root.tree.file, true
}

// AST returns the wrapped node
func (n *GoNode) AST() ast.Node {
	return n.node
}

// Kind returns the go/ast type name, e.g. "Ident" or "CallExpr"
func (n *GoNode) Kind() string {
	return strings.TrimPrefix(fmt.Sprintf("%T", n.node), "*ast.")
}

// Span implements syntax.Node. The file node covers the whole text so that
// leading comments and trailing whitespace resolve to it.
func (n *GoNode) Span() syntax.Span {
	if n.node == ast.Node(n.tree.file) {
		return syntax.Span{Start: 0, End: n.tree.size}
	}
	return syntax.Span{Start: n.tree.offset(n.node.Pos()), End: n.tree.offset(n.node.End())}
}

// Children implements syntax.Node. Comment groups are reported through
// Comments instead.
func (n *GoNode) Children() []syntax.Node {
	var children []syntax.Node
	ast.Inspect(n.node, func(c ast.Node) bool {
		switch c.(type) {
		case nil:
			return false
		case *ast.CommentGroup, *ast.Comment:
			return false
		}
		if c == n.node {
			return true
		}
		children = append(children, &GoNode{tree: n.tree, node: c})
		return false
	})
	return children
}

// Comments implements syntax.Node
func (n *GoNode) Comments() []*syntax.Comment {
	groups := n.tree.cmap[n.node]
	if len(groups) == 0 {
		return nil
	}

	var comments []*syntax.Comment
	for _, g := range groups {
		for _, c := range g.List {
			comments = append(comments, &syntax.Comment{Pos: n.tree.offset(c.Slash), Text: c.Text})
		}
	}
	return comments
}

func (t *goTree) offset(pos token.Pos) int {
	if !pos.IsValid() || t.tfile == nil {
		return 0
	}
	off := t.tfile.Offset(pos)
	if off > t.size {
		return t.size
	}
	return off
}
