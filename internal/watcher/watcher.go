// Package watcher reindexes files that change on disk under open projects.
//
// Events are coalesced per path: while a change is pending, further events
// for the same file are dropped. Once the debounce window expires the file is
// reindexed if it still exists and removed from the index otherwise, so a
// rename-and-replace save ends as a single reindex.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dshills/langcore/internal/bridge"
	"github.com/dshills/langcore/internal/document"
	"github.com/dshills/langcore/internal/event"
	"github.com/dshills/langcore/internal/metrics"
	"github.com/dshills/langcore/pkg/types"
)

// DefaultDebounce is how long a change waits for further events on the same file
const DefaultDebounce = 100 * time.Millisecond

// Indexer is the part of the indexer the watcher drives
type Indexer interface {
	IndexFile(ctx context.Context, uri types.URI) error
	RemoveFile(ctx context.Context, uri types.URI) error
}

// Options configures a Watcher
type Options struct {
	// Debounce is the per-file coalescing window. Default: DefaultDebounce
	Debounce time.Duration

	// Extensions selects the files that are reindexed. Default: [".go"]
	Extensions []string
}

// Watcher watches the directories of open project roots
type Watcher struct {
	fsw      *fsnotify.Watcher
	index    Indexer
	debounce time.Duration
	exts     []string
	pending  *bridge.InFlight
	logger   *slog.Logger

	mu   sync.Mutex
	dirs map[string]map[string]struct{} // directory -> roots watching it

	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher. Call Run to start delivering events.
func New(index Indexer, opts *Options, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := Options{Debounce: DefaultDebounce, Extensions: []string{".go"}}
	if opts != nil {
		if opts.Debounce > 0 {
			o.Debounce = opts.Debounce
		}
		if len(opts.Extensions) > 0 {
			o.Extensions = opts.Extensions
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsw:      fsw,
		index:    index,
		debounce: o.Debounce,
		exts:     o.Extensions,
		pending:  bridge.NewInFlight(),
		logger:   logger.With("component", "watcher"),
		dirs:     make(map[string]map[string]struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Attach follows project lifecycle events. Non-file roots such as the
// default project are ignored.
func (w *Watcher) Attach(d *event.Dispatcher) {
	document.OnProject(d, event.ProjectOpen, func(_ context.Context, p *document.Project) error {
		if err := w.AddRoot(p.Root()); err != nil {
			w.logger.Warn("failed to watch project", "root", p.Root().String(), "error", err)
		}
		return nil
	})
	document.OnProject(d, event.ProjectClose, func(_ context.Context, p *document.Project) error {
		w.RemoveRoot(p.Root())
		return nil
	})
}

// AddRoot watches root and every directory below it
func (w *Watcher) AddRoot(root types.URI) error {
	path, err := root.FilesystemPath()
	if errors.Is(err, types.ErrNotFileURI) {
		return nil
	}
	if err != nil {
		return err
	}
	return w.addTree(root.Normalized(), path)
}

func (w *Watcher) addTree(rootKey, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == path {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.addDir(rootKey, p)
	})
}

func (w *Watcher) addDir(rootKey, dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	roots, ok := w.dirs[dir]
	if !ok {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
		roots = make(map[string]struct{})
		w.dirs[dir] = roots
	}
	roots[rootKey] = struct{}{}
	return nil
}

// RemoveRoot stops watching directories no other open root needs
func (w *Watcher) RemoveRoot(root types.URI) {
	key := root.Normalized()

	w.mu.Lock()
	defer w.mu.Unlock()
	for dir, roots := range w.dirs {
		if _, ok := roots[key]; !ok {
			continue
		}
		delete(roots, key)
		if len(roots) == 0 {
			delete(w.dirs, dir)
			_ = w.fsw.Remove(dir)
		}
	}
}

// Watching reports whether dir is watched
func (w *Watcher) Watching(dir string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.dirs[filepath.Clean(dir)]
	return ok
}

// Run delivers events until ctx ends or Close is called. Pending changes
// are abandoned on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// Close stops the watcher and releases its file descriptors
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.watchNewDir(ev.Name)
			return
		}
	}
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return
	}
	if !w.matches(ev.Name) {
		return
	}
	w.schedule(ctx, ev.Name)
}

// watchNewDir adds a directory created below a watched one to the same roots
func (w *Watcher) watchNewDir(dir string) {
	if skipDir(filepath.Base(dir)) {
		return
	}

	w.mu.Lock()
	var roots []string
	for root := range w.dirs[filepath.Dir(dir)] {
		roots = append(roots, root)
	}
	w.mu.Unlock()

	for _, root := range roots {
		if err := w.addTree(root, dir); err != nil {
			w.logger.Warn("failed to watch directory", "dir", dir, "error", err)
		}
	}
}

// schedule syncs path after the debounce window unless a sync is already pending
func (w *Watcher) schedule(ctx context.Context, path string) {
	if !w.pending.TryBegin(path) {
		return
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		timer := time.NewTimer(w.debounce)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			w.pending.Done(path)
			return
		case <-w.done:
			w.pending.Done(path)
			return
		case <-timer.C:
		}

		// Events arriving while the file is synced schedule another pass
		w.pending.Done(path)
		w.sync(ctx, path)
	}()
}

func (w *Watcher) sync(ctx context.Context, path string) {
	uri := types.FileURI(path)

	_, err := os.Stat(path)
	switch {
	case err == nil:
		metrics.WatchEvents.WithLabelValues("index").Inc()
		err = w.index.IndexFile(ctx, uri)
	case errors.Is(err, fs.ErrNotExist):
		metrics.WatchEvents.WithLabelValues("remove").Inc()
		err = w.index.RemoveFile(ctx, uri)
	}
	if err != nil {
		w.logger.Warn("failed to sync changed file", "path", path, "error", err)
		return
	}
	w.logger.Debug("synced changed file", "path", path)
}

func (w *Watcher) matches(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range w.exts {
		if ext == e {
			return true
		}
	}
	return false
}

func skipDir(name string) bool {
	return name == "vendor" || strings.HasPrefix(name, ".")
}
