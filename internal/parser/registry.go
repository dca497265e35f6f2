package parser

import (
	"slices"
	"sync"
)

// Registry maps language tags to parsers
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry creates a registry holding the given parsers
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range parsers {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any parser for the same language
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[p.Language()] = p
}

// Get returns the parser for language
func (r *Registry) Get(language string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[language]
	return p, ok
}

// Languages returns the registered language tags, sorted
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	langs := make([]string, 0, len(r.parsers))
	for lang := range r.parsers {
		langs = append(langs, lang)
	}
	slices.Sort(langs)
	return langs
}
