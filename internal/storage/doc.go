// Package storage persists the secondary symbol index in SQLite.
//
// The secondary tier is the large, authoritative baseline built from files on
// disk. It is reconciled lazily: open documents are overlaid by the in-memory
// primary tier, and a file is rewritten here when it is closed, changes on
// disk or a project index is rebuilt.
//
// # Database Schema
//
// Tables:
//   - projects: roots indexed with BuildIndex and their counters
//   - files: one row per source URI with content hash and mod time
//   - entries: index entries (declarations) per file
//   - entries_fts: FTS5 index over entry names, signatures and docs
//
// Timestamps are stored as unix nanoseconds so freshness comparisons are
// exact with either driver.
//
// # Tiers
//
// Tier adapts a Storage to index.WritableStorage:
//
//	store, err := storage.NewSQLiteStorage(dbPath)
//	if err != nil {
//	    return err
//	}
//	chain := index.NewChain(overlay, storage.NewTier(store))
//
// # Incremental Updates
//
// Compare content hashes before re-parsing a file:
//
//	existing, err := tx.GetFile(ctx, uri)
//	if err == nil && existing.ContentHash == storage.ContentHash(content) {
//	    // unchanged
//	}
//
// # Build Tags
//
// The default build uses modernc.org/sqlite and needs no C compiler. Building
// with the cgo_sqlite tag switches to github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags "cgo_sqlite sqlite_fts5" ./...
package storage
