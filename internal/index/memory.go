package index

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dshills/langcore/pkg/types"
)

type memoryFile struct {
	uri       types.URI
	indexedAt time.Time
	entries   []Entry
}

// MemoryStorage keeps entries in memory, grouped by source file. It serves
// as the primary tier overlaying open documents.
type MemoryStorage struct {
	mu    sync.RWMutex
	files map[string]*memoryFile
}

// NewMemoryStorage creates an empty tier
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{files: make(map[string]*memoryFile)}
}

// Search implements Storage. Results are ordered by source URI, then by
// position within the file.
func (m *MemoryStorage) Search(ctx context.Context, q Query) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.Cancelled(err)
	}

	m.mu.RLock()
	keys := make([]string, 0, len(m.files))
	for k := range m.files {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Entry
	for _, k := range keys {
		for _, e := range m.files[k].entries {
			if q.Matches(e) {
				out = append(out, e)
			}
		}
	}
	m.mu.RUnlock()
	return out, nil
}

// FileTimestamps implements Storage
func (m *MemoryStorage) FileTimestamps(ctx context.Context, filter *types.URI) (map[string]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.Cancelled(err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]time.Time, len(m.files))
	for k, f := range m.files {
		if InFilter(k, filter) {
			out[k] = f.indexedAt
		}
	}
	return out, nil
}

// ReplaceFile implements WritableStorage
func (m *MemoryStorage) ReplaceFile(ctx context.Context, uri types.URI, entries []Entry, indexedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return types.Cancelled(err)
	}

	copied := make([]Entry, len(entries))
	copy(copied, entries)

	m.mu.Lock()
	m.files[uri.Normalized()] = &memoryFile{uri: uri, indexedAt: indexedAt, entries: copied}
	m.mu.Unlock()
	return nil
}

// RemoveFile implements WritableStorage
func (m *MemoryStorage) RemoveFile(ctx context.Context, uri types.URI) error {
	m.mu.Lock()
	delete(m.files, uri.Normalized())
	m.mu.Unlock()
	return nil
}

// Files returns a copy of the timestamps of every file held
func (m *MemoryStorage) Files() map[string]time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]time.Time, len(m.files))
	for k, f := range m.files {
		out[k] = f.indexedAt
	}
	return out
}
