package storage

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"go.lsp.dev/protocol"

	"github.com/dshills/langcore/internal/index"
	"github.com/dshills/langcore/internal/metrics"
	"github.com/dshills/langcore/pkg/types"
)

// Tier exposes a Storage as the persisted secondary index tier
type Tier struct {
	store Storage
}

// NewTier wraps store
func NewTier(store Storage) *Tier {
	return &Tier{store: store}
}

// Search implements index.Storage
func (t *Tier) Search(ctx context.Context, q index.Query) ([]index.Entry, error) {
	rows, err := t.store.SearchEntries(ctx, EntryQuery{
		Category: q.Category,
		Key:      q.Key,
		Prefix:   q.Match == index.MatchPrefix,
	})
	if err != nil {
		return nil, err
	}
	return toIndexEntries(rows)
}

// SearchText runs a full-text query and returns index entries
func (t *Tier) SearchText(ctx context.Context, text string, limit int) ([]index.Entry, error) {
	rows, err := t.store.SearchText(ctx, text, limit)
	if err != nil {
		return nil, err
	}
	return toIndexEntries(rows)
}

// FileTimestamps implements index.Storage
func (t *Tier) FileTimestamps(ctx context.Context, filter *types.URI) (map[string]time.Time, error) {
	root := ""
	if filter != nil {
		root = filter.Normalized()
	}
	return t.store.FileModTimes(ctx, root)
}

// ReplaceFile implements index.WritableStorage. The stored content hash is
// zeroed, so a later BuildIndex re-parses the file.
func (t *Tier) ReplaceFile(ctx context.Context, uri types.URI, entries []index.Entry, indexedAt time.Time) error {
	return t.WriteFile(ctx, &File{URI: uri.Normalized(), ModTime: indexedAt}, entries)
}

// WriteFile upserts file and replaces its entries in one transaction
func (t *Tier) WriteFile(ctx context.Context, file *File, entries []index.Entry) error {
	tx, err := t.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := WriteFileTx(ctx, tx, file, entries); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	metrics.IndexedFiles.WithLabelValues("secondary").Inc()
	return nil
}

// WriteFileTx upserts file and replaces its entries using an open transaction
func WriteFileTx(ctx context.Context, tx Tx, file *File, entries []index.Entry) error {
	if err := tx.UpsertFile(ctx, file); err != nil {
		return err
	}
	rows := make([]*Entry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, fromIndexEntry(e))
	}
	return tx.ReplaceEntries(ctx, file.ID, rows)
}

// RemoveFile implements index.WritableStorage
func (t *Tier) RemoveFile(ctx context.Context, uri types.URI) error {
	return t.store.DeleteFile(ctx, uri.Normalized())
}

// ContentHash is the hash stored for incremental indexing
func ContentHash(content []byte) [32]byte {
	return sha256.Sum256(content)
}

func fromIndexEntry(e index.Entry) *Entry {
	return &Entry{
		Category:  e.Category,
		Key:       e.Key,
		Name:      e.Name,
		Kind:      e.Kind,
		Container: e.Container,
		Signature: e.Signature,
		Doc:       e.Doc,
		StartLine: int(e.Range.Start.Line),
		StartChar: int(e.Range.Start.Character),
		EndLine:   int(e.Range.End.Line),
		EndChar:   int(e.Range.End.Character),
	}
}

func toIndexEntries(rows []*Entry) ([]index.Entry, error) {
	out := make([]index.Entry, 0, len(rows))
	for _, r := range rows {
		uri, err := types.ParseURI(r.FileURI)
		if err != nil {
			return nil, fmt.Errorf("stored entry %d: %w", r.ID, err)
		}
		out = append(out, index.Entry{
			SourceURI: uri,
			Category:  r.Category,
			Key:       r.Key,
			Name:      r.Name,
			Kind:      r.Kind,
			Container: r.Container,
			Signature: r.Signature,
			Doc:       r.Doc,
			Range: protocol.Range{
				Start: protocol.Position{Line: uint32(r.StartLine), Character: uint32(r.StartChar)},
				End:   protocol.Position{Line: uint32(r.EndLine), Character: uint32(r.EndChar)},
			},
		})
	}
	return out, nil
}
