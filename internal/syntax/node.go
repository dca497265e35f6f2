// Package syntax is the language-neutral view of a parsed document used to
// resolve cursor positions to syntax nodes.
package syntax

// Span is a byte range in a document. Both ends are inclusive for nodes;
// see FindNodes.
type Span struct {
	Start int
	End   int
}

// Node is a syntax tree node. Comments are those attached to the node by
// the parser, typically the ones preceding it.
type Node interface {
	Kind() string
	Span() Span
	Children() []Node
	Comments() []*Comment
}

// Comment is a comment attached to a node. Pos is the byte offset of its
// first character and Text its full source text.
type Comment struct {
	Pos  int
	Text string
}

// Kind implements Node
func (c *Comment) Kind() string { return "comment" }

// Span implements Node. End is exclusive for comments.
func (c *Comment) Span() Span { return Span{Start: c.Pos, End: c.Pos + len(c.Text)} }

// Children implements Node
func (c *Comment) Children() []Node { return nil }

// Comments implements Node
func (c *Comment) Comments() []*Comment { return nil }

// Contains reports whether offset lies inside the comment, end excluded
func (c *Comment) Contains(offset int) bool {
	return c.Pos <= offset && offset < c.Pos+len(c.Text)
}

// Error is a syntax error recovered by the parser
type Error struct {
	Offset  int
	Message string
}

func (e Error) Error() string {
	return e.Message
}

// Tree is a parsed document. A tree with Errors may still be usable.
type Tree struct {
	Language string
	Root     Node
	Errors   []Error
}
