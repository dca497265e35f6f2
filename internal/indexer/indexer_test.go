package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/langcore/internal/document"
	"github.com/dshills/langcore/internal/event"
	"github.com/dshills/langcore/internal/index"
	"github.com/dshills/langcore/internal/storage"
	"github.com/dshills/langcore/pkg/types"
)

// setupTestStorage creates an in-memory SQLite database for testing
func setupTestStorage(t testing.TB) storage.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err, "Failed to create test storage")
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func setupIndexer(t testing.TB) (*Indexer, storage.Storage, *index.MemoryStorage) {
	t.Helper()
	store := setupTestStorage(t)
	primary := index.NewMemoryStorage()
	return New(store, primary, nil), store, primary
}

func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func searchKeys(t *testing.T, s index.Storage, key string) []index.Entry {
	t.Helper()
	entries, err := s.Search(context.Background(), index.Query{Key: key, Match: index.MatchExact})
	require.NoError(t, err)
	return entries
}

func TestDiscoverFiles(t *testing.T) {
	idx, _, _ := setupIndexer(t)
	dir := t.TempDir()
	createTestFile(t, dir, "main.go", "package main")
	createTestFile(t, dir, "main_test.go", "package main")
	createTestFile(t, dir, "README.md", "# readme")
	createTestFile(t, dir, "vendor/lib/lib.go", "package lib")
	createTestFile(t, dir, ".git/hook.go", "package hook")
	createTestFile(t, dir, "sub/sub.go", "package sub")

	tests := []struct {
		name   string
		config *Config
		want   []string
	}{
		{"defaults", DefaultConfig(), []string{"main.go", "main_test.go", "sub/sub.go"}},
		{"skip tests", &Config{IncludeTests: false}, []string{"main.go", "sub/sub.go"}},
		{"include vendor", &Config{IncludeTests: true, IncludeVendor: true}, []string{"main.go", "main_test.go", "sub/sub.go", "vendor/lib/lib.go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files, err := idx.discoverFiles(dir, tt.config)
			require.NoError(t, err)

			var rel []string
			for _, f := range files {
				r, err := filepath.Rel(dir, f)
				require.NoError(t, err)
				rel = append(rel, filepath.ToSlash(r))
			}
			assert.Equal(t, tt.want, rel)
		})
	}
}

func TestComputeFileHash(t *testing.T) {
	dir := t.TempDir()
	a := createTestFile(t, dir, "a.go", "package a")
	b := createTestFile(t, dir, "b.go", "package b")

	hashA, _, size, err := computeFileHash(a)
	require.NoError(t, err)
	assert.Equal(t, int64(9), size)
	assert.Equal(t, storage.ContentHash([]byte("package a")), hashA)

	hashB, _, _, err := computeFileHash(b)
	require.NoError(t, err)
	assert.NotEqual(t, hashA, hashB)

	_, _, _, err = computeFileHash(filepath.Join(dir, "missing.go"))
	assert.Error(t, err)
}

func TestBuildIndex_Success(t *testing.T) {
	idx, store, _ := setupIndexer(t)
	dir := t.TempDir()
	createTestFile(t, dir, "go.mod", "module example.com/demo\n\ngo 1.25\n")
	createTestFile(t, dir, "main.go", `package main

// Add sums two ints.
func Add(a, b int) int {
	return a + b
}

func main() {}
`)
	createTestFile(t, dir, "util/util.go", "package util\n\ntype Helper struct{ Name string }\n")

	stats, err := idx.BuildIndex(context.Background(), dir, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Zero(t, stats.FilesSkipped)
	assert.Zero(t, stats.FilesFailed)
	assert.Equal(t, 6, stats.EntriesExtracted) // 2 packages, Add, main, Helper, Name

	add := searchKeys(t, idx.Secondary(), "Add")
	require.Len(t, add, 1)
	assert.Equal(t, "func Add(a int, b int) int", add[0].Signature)
	assert.Equal(t, "Add sums two ints.", add[0].Doc)
	assert.True(t, add[0].SourceURI.Equals(types.FileURI(filepath.Join(dir, "main.go"))))
	assert.Equal(t, uint32(3), add[0].Range.Start.Line)

	project, err := store.GetProject(context.Background(), types.FileURI(dir).Normalized())
	require.NoError(t, err)
	assert.Equal(t, "example.com/demo", project.ModuleName)
	assert.Equal(t, "1.25", project.GoVersion)
	assert.Equal(t, 2, project.TotalFiles)
	assert.Equal(t, 6, project.TotalEntries)

	status, err := idx.Status(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, status.FilesCount)
}

func TestBuildIndex_IncrementalUpdate(t *testing.T) {
	idx, _, _ := setupIndexer(t)
	dir := t.TempDir()
	createTestFile(t, dir, "a.go", "package a\n\nfunc One() {}\n")
	b := createTestFile(t, dir, "b.go", "package a\n\nfunc Two() {}\n")

	_, err := idx.BuildIndex(context.Background(), dir, nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(b, []byte("package a\n\nfunc Three() {}\n"), 0644))
	stats, err := idx.BuildIndex(context.Background(), dir, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Empty(t, searchKeys(t, idx.Secondary(), "Two"))
	assert.Len(t, searchKeys(t, idx.Secondary(), "Three"), 1)
	assert.Len(t, searchKeys(t, idx.Secondary(), "One"), 1)
}

func TestBuildIndex_WithParseErrors(t *testing.T) {
	idx, store, _ := setupIndexer(t)
	dir := t.TempDir()
	path := createTestFile(t, dir, "broken.go", "package broken\n\nfunc Good() {}\n\nfunc bad( {\n")

	stats, err := idx.BuildIndex(context.Background(), dir, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesIndexed)
	file, err := store.GetFile(context.Background(), types.FileURI(path).Normalized())
	require.NoError(t, err)
	require.NotNil(t, file.ParseError)
	assert.Contains(t, *file.ParseError, "syntax error")
	assert.Len(t, searchKeys(t, idx.Secondary(), "Good"), 1)
}

func TestBuildIndex_EmptyProject(t *testing.T) {
	idx, _, _ := setupIndexer(t)

	stats, err := idx.BuildIndex(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats.FilesIndexed)
}

func TestBuildIndex_BatchProcessing(t *testing.T) {
	idx, _, _ := setupIndexer(t)
	dir := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		createTestFile(t, dir, name+".go", "package p\n\nfunc "+name+"Func() {}\n")
	}

	stats, err := idx.BuildIndex(context.Background(), dir, &Config{Workers: 2, BatchSize: 2, IncludeTests: true})
	require.NoError(t, err)

	assert.Equal(t, 5, stats.FilesIndexed)
	assert.Len(t, searchKeys(t, idx.Secondary(), "eFunc"), 1)
}

func TestBuildIndex_ContextCancellation(t *testing.T) {
	idx, _, _ := setupIndexer(t)
	dir := t.TempDir()
	createTestFile(t, dir, "a.go", "package a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.BuildIndex(ctx, dir, nil)
	assert.Error(t, err)
}

func TestBuildIndex_RejectsConcurrentBuildOfSameRoot(t *testing.T) {
	idx, _, _ := setupIndexer(t)
	dir := t.TempDir()
	createTestFile(t, dir, "a.go", "package a")

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	require.True(t, idx.building.TryBegin(types.FileURI(abs).Normalized()))
	assert.True(t, idx.Building(abs))

	_, err = idx.BuildIndex(context.Background(), dir, nil)
	assert.ErrorIs(t, err, ErrIndexingInProgress)

	idx.building.Done(types.FileURI(abs).Normalized())
	_, err = idx.BuildIndex(context.Background(), dir, nil)
	assert.NoError(t, err)
}

func TestParseGoMod(t *testing.T) {
	dir := t.TempDir()
	path := createTestFile(t, dir, "go.mod", "module github.com/x/y\n\ngo 1.22\n\nrequire foo v1.0.0\n")

	info, err := parseGoMod(path)
	require.NoError(t, err)
	assert.Equal(t, "github.com/x/y", info.Module)
	assert.Equal(t, "1.22", info.GoVersion)

	_, err = parseGoMod(filepath.Join(dir, "missing.mod"))
	assert.Error(t, err)
}

func TestIndexFile_AndRemoveFile(t *testing.T) {
	idx, _, _ := setupIndexer(t)
	dir := t.TempDir()
	path := createTestFile(t, dir, "a.go", "package a\n\nfunc Alpha() {}\n")
	uri := types.FileURI(path)

	require.NoError(t, idx.IndexFile(context.Background(), uri))
	assert.Len(t, searchKeys(t, idx.Secondary(), "Alpha"), 1)

	require.NoError(t, idx.RemoveFile(context.Background(), uri))
	assert.Empty(t, searchKeys(t, idx.Secondary(), "Alpha"))

	err := idx.IndexFile(context.Background(), types.FileURI(filepath.Join(dir, "gone.go")))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func setupRegistry(t testing.TB, idx *Indexer) *document.Store {
	t.Helper()
	d := event.NewDispatcher(nil)
	idx.Attach(d)
	cache, err := document.NewCache(0)
	require.NoError(t, err)
	return document.NewStore(d, cache, nil)
}

func TestAttach_PrimaryFollowsDocumentLifecycle(t *testing.T) {
	idx, _, primary := setupIndexer(t)
	reg := setupRegistry(t, idx)
	dir := t.TempDir()
	path := createTestFile(t, dir, "a.go", "package a\n\nfunc OnDisk() {}\n")
	uri := types.FileURI(path)
	ctx := context.Background()

	doc, err := reg.Open(ctx, uri, "go", "package a\n\nfunc Unsaved() {}\n", 1)
	require.NoError(t, err)
	assert.Len(t, searchKeys(t, primary, "Unsaved"), 1)

	require.NoError(t, reg.Update(ctx, doc, "package a\n\nfunc Edited() {}\n", 2))
	assert.Empty(t, searchKeys(t, primary, "Unsaved"))
	assert.Len(t, searchKeys(t, primary, "Edited"), 1)

	chain := index.NewChain(primary, idx.Secondary())
	assert.Empty(t, searchKeys(t, chain, "OnDisk"))

	require.NoError(t, reg.Close(ctx, doc))
	assert.Empty(t, primary.Files())
	assert.Len(t, searchKeys(t, chain, "OnDisk"), 1, "closed document is reindexed from disk")
	assert.Empty(t, searchKeys(t, chain, "Edited"))
}

func TestAttach_IgnoresOtherLanguages(t *testing.T) {
	idx, _, primary := setupIndexer(t)
	reg := setupRegistry(t, idx)

	doc, err := reg.Open(context.Background(), types.FileURI("/src/a.php"), "php", "<?php function f() {}", 1)
	require.NoError(t, err)
	assert.Empty(t, primary.Files())
	require.NoError(t, reg.Close(context.Background(), doc))
}

func TestAttach_CloseOfUnsavedFile(t *testing.T) {
	idx, _, primary := setupIndexer(t)
	reg := setupRegistry(t, idx)
	uri := types.FileURI(filepath.Join(t.TempDir(), "new.go"))

	doc, err := reg.Open(context.Background(), uri, "go", "package n\n", 1)
	require.NoError(t, err)
	require.NoError(t, reg.Close(context.Background(), doc))

	assert.Empty(t, primary.Files())
}

func TestAttach_ConcurrentUpdates(t *testing.T) {
	idx, _, primary := setupIndexer(t)
	reg := setupRegistry(t, idx)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uri := types.FileURI(filepath.Join("/src", string(rune('a'+i))+".go"))
			_, err := reg.Open(ctx, uri, "go", "package p\n\nfunc Shared() {}\n", 1)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, primary.Files(), 8)
	assert.Len(t, searchKeys(t, primary, "Shared"), 8)
}
