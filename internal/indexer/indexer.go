package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/langcore/internal/bridge"
	"github.com/dshills/langcore/internal/document"
	"github.com/dshills/langcore/internal/event"
	"github.com/dshills/langcore/internal/index"
	"github.com/dshills/langcore/internal/metrics"
	"github.com/dshills/langcore/internal/parser"
	"github.com/dshills/langcore/internal/storage"
	"github.com/dshills/langcore/pkg/types"
)

// ErrIndexingInProgress is returned when a build of the same root is running
var ErrIndexingInProgress = errors.New("indexing already in progress")

// Indexer keeps the index tiers in sync with documents. Open documents are
// indexed into the primary tier on every change; files on disk are indexed
// into the secondary tier.
type Indexer struct {
	parser   *parser.GoParser
	storage  storage.Storage
	tier     *storage.Tier
	primary  *index.MemoryStorage
	building *bridge.InFlight
	logger   *slog.Logger
}

// Config contains configuration for the indexer
type Config struct {
	Workers       int  // Number of concurrent parsers (default: runtime.NumCPU())
	BatchSize     int  // Number of files to commit per transaction (default: 20)
	IncludeTests  bool // Whether to index test files (default: true)
	IncludeVendor bool // Whether to index vendor directory (default: false)
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() *Config {
	return &Config{
		Workers:       runtime.NumCPU(),
		BatchSize:     20,
		IncludeTests:  true,
		IncludeVendor: false,
	}
}

// Statistics contains statistics about a build
type Statistics struct {
	FilesIndexed     int
	FilesSkipped     int
	FilesFailed      int
	EntriesExtracted int
	Duration         time.Duration
	ErrorMessages    []string
}

// New creates a new Indexer instance
func New(store storage.Storage, primary *index.MemoryStorage, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		parser:   parser.New(),
		storage:  store,
		tier:     storage.NewTier(store),
		primary:  primary,
		building: bridge.NewInFlight(),
		logger:   logger.With("component", "indexer"),
	}
}

// Secondary returns the persisted tier
func (idx *Indexer) Secondary() *storage.Tier {
	return idx.tier
}

// Attach subscribes the indexer to document lifecycle events
func (idx *Indexer) Attach(d *event.Dispatcher) {
	document.OnDocument(d, event.DocumentOpen, idx.indexDocument)
	document.OnDocument(d, event.DocumentChange, idx.indexDocument)
	document.OnDocument(d, event.DocumentClose, idx.closeDocument)
}

// indexDocument replaces the primary entries of an open document
func (idx *Indexer) indexDocument(ctx context.Context, doc *document.Document) error {
	if doc.Language() != idx.parser.Language() {
		return nil
	}

	text, _ := doc.Snapshot()
	result := idx.parser.Symbols(doc.URI(), text)
	entries := parser.Entries(doc.URI(), text, result)

	if err := idx.primary.ReplaceFile(ctx, doc.URI(), entries, time.Now()); err != nil {
		return fmt.Errorf("index %s: %w", doc.URI(), err)
	}
	metrics.IndexedFiles.WithLabelValues("primary").Inc()
	return nil
}

// closeDocument drops the overlay and reindexes the saved file, so the
// secondary tier reflects what is on disk once the overlay is gone
func (idx *Indexer) closeDocument(ctx context.Context, doc *document.Document) error {
	if err := idx.primary.RemoveFile(ctx, doc.URI()); err != nil {
		return err
	}
	if doc.Language() != idx.parser.Language() || !doc.URI().IsFile() {
		return nil
	}

	if err := idx.IndexFile(ctx, doc.URI()); err != nil && !errors.Is(err, os.ErrNotExist) {
		idx.logger.Warn("failed to reindex closed document", "uri", doc.URI().String(), "error", err)
	}
	return nil
}

// IndexFile indexes one file from disk into the secondary tier. Unchanged
// files are skipped.
func (idx *Indexer) IndexFile(ctx context.Context, uri types.URI) error {
	path, err := uri.FilesystemPath()
	if err != nil {
		return err
	}

	rec, entries, skip, err := idx.prepareFile(ctx, idx.storage, 0, path)
	if err != nil || skip {
		return err
	}
	return idx.tier.WriteFile(ctx, rec, entries)
}

// RemoveFile drops a file deleted from disk from the secondary tier
func (idx *Indexer) RemoveFile(ctx context.Context, uri types.URI) error {
	return idx.tier.RemoveFile(ctx, uri)
}

// BuildIndex indexes every Go file under rootPath into the secondary tier
func (idx *Indexer) BuildIndex(ctx context.Context, rootPath string, config *Config) (*Statistics, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 20
	}

	rootPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	rootURI := types.FileURI(rootPath)

	if !idx.building.TryBegin(rootURI.Normalized()) {
		return nil, fmt.Errorf("%s: %w", rootPath, ErrIndexingInProgress)
	}
	defer idx.building.Done(rootURI.Normalized())

	startTime := time.Now()
	stats := &Statistics{
		ErrorMessages: make([]string, 0),
	}

	project, err := idx.getOrCreateProject(ctx, rootPath, rootURI)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create project: %w", err)
	}

	files, err := idx.discoverFiles(rootPath, config)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	if err := idx.indexFiles(ctx, project, files, config, stats); err != nil {
		return nil, fmt.Errorf("failed to index files: %w", err)
	}

	if err := idx.updateProjectStats(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project stats: %w", err)
	}

	stats.Duration = time.Since(startTime)
	idx.logger.Info("index built",
		"root", rootPath,
		"indexed", stats.FilesIndexed,
		"skipped", stats.FilesSkipped,
		"failed", stats.FilesFailed,
		"duration", stats.Duration,
	)
	return stats, nil
}

// Building reports whether a build of rootPath is running
func (idx *Indexer) Building(rootPath string) bool {
	return idx.building.Busy(types.FileURI(rootPath).Normalized())
}

// Status returns the persisted statistics of an indexed root
func (idx *Indexer) Status(ctx context.Context, rootPath string) (*storage.ProjectStatus, error) {
	project, err := idx.storage.GetProject(ctx, types.FileURI(rootPath).Normalized())
	if err != nil {
		return nil, err
	}
	return idx.storage.GetStatus(ctx, project.ID)
}

// getOrCreateProject retrieves an existing project or creates a new one
func (idx *Indexer) getOrCreateProject(ctx context.Context, rootPath string, rootURI types.URI) (*storage.Project, error) {
	project, err := idx.storage.GetProject(ctx, rootURI.Normalized())
	if err == nil {
		return project, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	project = &storage.Project{
		RootURI:      rootURI.Normalized(),
		IndexVersion: storage.CurrentSchemaVersion,
	}

	// Module info is informational only
	if modInfo, err := parseGoMod(filepath.Join(rootPath, "go.mod")); err == nil {
		project.ModuleName = modInfo.Module
		project.GoVersion = modInfo.GoVersion
	}

	if err := idx.storage.CreateProject(ctx, project); err != nil {
		return nil, err
	}
	return project, nil
}

// discoverFiles finds all Go files in the project
func (idx *Indexer) discoverFiles(rootPath string, config *Config) ([]string, error) {
	var files []string

	err := filepath.WalkDir(rootPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if path == rootPath {
				return nil
			}
			if !config.IncludeVendor && d.Name() == "vendor" {
				return filepath.SkipDir
			}
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		if !config.IncludeTests && strings.HasSuffix(path, "_test.go") {
			return nil
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// parsedFile is a file ready to be written
type parsedFile struct {
	file    *storage.File
	entries []index.Entry
}

// indexFiles parses each batch concurrently and writes it in one transaction
func (idx *Indexer) indexFiles(ctx context.Context, project *storage.Project, files []string, config *Config, stats *Statistics) error {
	var (
		indexed int32
		skipped int32
		failed  int32
		entries int32
		mu      sync.Mutex // Protect stats.ErrorMessages
	)

	for i := 0; i < len(files); i += config.BatchSize {
		end := min(i+config.BatchSize, len(files))
		batch := files[i:end]
		parsed := make([]*parsedFile, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(config.Workers)
		for j, filePath := range batch {
			g.Go(func() error {
				rec, fileEntries, skip, err := idx.prepareFile(gctx, idx.storage, project.ID, filePath)
				switch {
				case err != nil && gctx.Err() != nil:
					return gctx.Err()
				case err != nil:
					atomic.AddInt32(&failed, 1)
					mu.Lock()
					stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", filePath, err))
					mu.Unlock()
				case skip:
					atomic.AddInt32(&skipped, 1)
				default:
					parsed[j] = &parsedFile{file: rec, entries: fileEntries}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		n, err := idx.writeBatch(ctx, parsed)
		if err != nil {
			return err
		}
		atomic.AddInt32(&indexed, int32(n))
		for _, p := range parsed {
			if p != nil {
				atomic.AddInt32(&entries, int32(len(p.entries)))
			}
		}
	}

	stats.FilesIndexed = int(indexed)
	stats.FilesSkipped = int(skipped)
	stats.FilesFailed = int(failed)
	stats.EntriesExtracted = int(entries)
	return nil
}

// writeBatch stores parsed files within a transaction
func (idx *Indexer) writeBatch(ctx context.Context, batch []*parsedFile) (int, error) {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	n := 0
	for _, p := range batch {
		if p == nil {
			continue
		}
		if err := storage.WriteFileTx(ctx, tx, p.file, p.entries); err != nil {
			return 0, fmt.Errorf("failed to store %s: %w", p.file.URI, err)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	metrics.IndexedFiles.WithLabelValues("secondary").Add(float64(n))
	return n, nil
}

// prepareFile hashes and parses a file. skip is true when the stored hash
// matches the file's content.
func (idx *Indexer) prepareFile(ctx context.Context, store storage.Storage, projectID int64, filePath string) (*storage.File, []index.Entry, bool, error) {
	hash, modTime, sizeBytes, err := computeFileHash(filePath)
	if err != nil {
		return nil, nil, false, err
	}

	uri := types.FileURI(filePath)
	shouldSkip, err := idx.checkFileChanged(ctx, store, uri, hash)
	if err != nil || shouldSkip {
		return nil, nil, shouldSkip, err
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to read file: %w", err)
	}
	text := string(content)
	result := idx.parser.Symbols(uri, text)

	file := &storage.File{
		ProjectID:   projectID,
		URI:         uri.Normalized(),
		PackageName: result.PackageName,
		ContentHash: hash,
		ModTime:     modTime,
		SizeBytes:   sizeBytes,
	}
	if result.HasErrors() {
		errMsg := result.Errors[0].Message
		file.ParseError = &errMsg
	}

	return file, parser.Entries(uri, text, result), false, nil
}

// checkFileChanged reports whether the stored hash matches
func (idx *Indexer) checkFileChanged(ctx context.Context, store storage.Storage, uri types.URI, hash [32]byte) (bool, error) {
	existingFile, err := store.GetFile(ctx, uri.Normalized())
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return existingFile.ContentHash == hash, nil
}

// updateProjectStats updates the project's file and entry counts
func (idx *Indexer) updateProjectStats(ctx context.Context, project *storage.Project) error {
	status, err := idx.storage.GetStatus(ctx, project.ID)
	if err != nil {
		return err
	}

	project.TotalFiles = status.FilesCount
	project.TotalEntries = status.EntriesCount
	project.LastIndexedAt = time.Now()

	return idx.storage.UpdateProject(ctx, project)
}

// computeFileHash computes SHA-256 hash of a file
func computeFileHash(filePath string) ([32]byte, time.Time, int64, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return [32]byte{}, time.Time{}, 0, err
	}

	var result [32]byte
	copy(result[:], hash.Sum(nil))

	return result, info.ModTime(), info.Size(), nil
}

// goModInfo contains parsed go.mod information
type goModInfo struct {
	Module    string
	GoVersion string
}

// parseGoMod extracts basic info from go.mod file
func parseGoMod(goModPath string) (*goModInfo, error) {
	content, err := os.ReadFile(goModPath)
	if err != nil {
		return nil, err
	}

	info := &goModInfo{}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			info.Module = strings.TrimSpace(strings.TrimPrefix(line, "module"))
		} else if strings.HasPrefix(line, "go ") {
			info.GoVersion = strings.TrimSpace(strings.TrimPrefix(line, "go"))
		}
	}

	return info, nil
}
