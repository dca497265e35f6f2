package document

import (
	"sync"

	"github.com/dshills/langcore/pkg/types"
)

// NoVersion marks a document whose client never supplied a version
const NoVersion int32 = -1

// Document is the in-memory state of one source file
type Document struct {
	uri      types.URI
	language string

	mu      sync.RWMutex
	text    string
	version int32
	open    bool
}

func newDocument(uri types.URI, language, text string, version int32, open bool) *Document {
	return &Document{
		uri:      uri,
		language: language,
		text:     text,
		version:  version,
		open:     open,
	}
}

// URI returns the document identity
func (d *Document) URI() types.URI {
	return d.uri
}

// Language returns the language tag, e.g. "go"
func (d *Document) Language() string {
	return d.language
}

// Text returns the current content
func (d *Document) Text() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text
}

// Version returns the client version, or NoVersion
func (d *Document) Version() int32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Snapshot returns text and version read together
func (d *Document) Snapshot() (string, int32) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text, d.version
}

// IsOpen reports whether the document is registered with a Store.
// Transient documents from Load are never open.
func (d *Document) IsOpen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.open
}

func (d *Document) update(text string, version int32) {
	d.mu.Lock()
	d.text = text
	d.version = version
	d.mu.Unlock()
}

func (d *Document) markClosed() {
	d.mu.Lock()
	d.open = false
	d.mu.Unlock()
}
