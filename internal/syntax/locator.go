package syntax

import (
	"slices"

	"go.lsp.dev/protocol"
)

// FindNodes returns the nodes and comments enclosing offset, innermost
// first.
//
// The walk is depth-first from root. At each node the attached comments are
// checked first: a comment containing offset (start <= offset < start+len)
// is recorded and the node's children are skipped. Otherwise a node whose
// span contains offset (start <= offset <= end) is recorded and its
// children are visited; a node that does not is pruned with its subtree.
func FindNodes(root Node, offset int) []Node {
	if root == nil {
		return nil
	}

	var path []Node
	var visit func(n Node)
	visit = func(n Node) {
		for _, c := range n.Comments() {
			if c.Contains(offset) {
				path = append(path, c)
				return
			}
		}

		span := n.Span()
		if offset < span.Start || offset > span.End {
			return
		}
		path = append(path, n)

		for _, child := range n.Children() {
			visit(child)
		}
	}
	visit(root)

	slices.Reverse(path)
	return path
}

// FindNodesAt converts pos against text and calls FindNodes
func FindNodesAt(tree *Tree, text string, pos protocol.Position) []Node {
	if tree == nil {
		return nil
	}
	return FindNodes(tree.Root, OffsetAt(text, pos))
}
