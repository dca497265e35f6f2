package document

import "github.com/dshills/langcore/pkg/types"

// Project is a workspace root scoping a set of documents
type Project struct {
	root types.URI
}

// Root returns the project root URI
func (p *Project) Root() types.URI {
	return p.root
}

// IsDefault reports whether p is the fallback project
func (p *Project) IsDefault() bool {
	return p.root.Normalized() == types.DefaultProjectURI
}

// Contains reports whether uri is the root itself or lies below it
func (p *Project) Contains(uri types.URI) bool {
	return p.root.Equals(uri) || p.root.IsParentOf(uri)
}
