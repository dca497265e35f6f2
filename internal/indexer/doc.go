// Package indexer keeps the symbol index tiers in sync with documents.
//
// Attach subscribes the indexer to registry lifecycle events. Opening or
// changing a document replaces its entries in the in-memory primary tier,
// so unsaved edits are searchable at once. Closing a document drops the
// overlay and reindexes the file from disk into the persisted secondary
// tier.
//
// # Building an Index
//
//	idx := indexer.New(store, primary, logger)
//	stats, err := idx.BuildIndex(ctx, "/path/to/project", nil)
//	fmt.Printf("Indexed %d files in %v\n", stats.FilesIndexed, stats.Duration)
//
// BuildIndex runs a batched pipeline:
//
//  1. Discovery: find all .go files, skipping hidden and vendor directories
//  2. Incremental decision: compare SHA-256 content hashes, skip unchanged files
//  3. Parse: extract declarations with a bounded number of workers
//  4. Store: write each batch in one transaction
//
// A file that fails to parse is recorded with its first syntax error and
// still indexed from the partial AST. A file that cannot be read is counted
// in Statistics.FilesFailed and does not stop the build.
//
// Only one build per root runs at a time; a second call returns
// ErrIndexingInProgress.
package indexer
