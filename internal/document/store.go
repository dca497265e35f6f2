package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/dshills/langcore/internal/bridge"
	"github.com/dshills/langcore/internal/event"
	"github.com/dshills/langcore/pkg/types"
)

// Store owns the open documents and projects. It is the only mutator of both
// and clears the Cache on every mutation. Lifecycle events are dispatched
// and awaited before a mutating call returns.
type Store struct {
	mu        sync.RWMutex
	documents map[string]*Document
	projects  []*Project
	closing   *bridge.InFlight

	dispatcher *event.Dispatcher
	cache      *Cache
	logger     *slog.Logger
}

// NewStore creates an empty store
func NewStore(dispatcher *event.Dispatcher, cache *Cache, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		documents:  make(map[string]*Document),
		closing:    bridge.NewInFlight(),
		dispatcher: dispatcher,
		cache:      cache,
		logger:     logger.With("component", "registry"),
	}
}

// Cache returns the store's derived-data cache
func (s *Store) Cache() *Cache {
	return s.cache
}

// Open registers a document, replacing any prior state for the URI
func (s *Store) Open(ctx context.Context, uri types.URI, language, text string, version int32) (*Document, error) {
	doc := newDocument(uri, language, text, version, true)

	s.mu.Lock()
	if prev, ok := s.documents[uri.Normalized()]; ok {
		prev.markClosed()
	}
	s.documents[uri.Normalized()] = doc
	s.mu.Unlock()
	s.cache.Clear()

	s.logger.Debug("document opened", "uri", uri.String(), "language", language, "version", version)
	if err := s.dispatcher.DispatchAndWait(ctx, event.DocumentOpen, doc); err != nil {
		return doc, fmt.Errorf("open %s: %w", uri, err)
	}
	return doc, nil
}

// Load builds a document without registering it
func (s *Store) Load(uri types.URI, language, text string) *Document {
	return newDocument(uri, language, text, NoVersion, false)
}

// Update replaces the text and version of an open document
func (s *Store) Update(ctx context.Context, doc *Document, text string, version int32) error {
	s.mu.Lock()
	if !s.isRegisteredLocked(doc) {
		s.mu.Unlock()
		return &types.NotOpenError{URI: doc.URI()}
	}
	doc.update(text, version)
	s.mu.Unlock()
	s.cache.Clear()

	if err := s.dispatcher.DispatchAndWait(ctx, event.DocumentChange, doc); err != nil {
		return fmt.Errorf("update %s: %w", doc.URI(), err)
	}
	return nil
}

// Close dispatches the close event, then unregisters the document. The
// document is removed even if a subscriber fails. A document already being
// closed is reported as not open.
func (s *Store) Close(ctx context.Context, doc *Document) error {
	s.mu.RLock()
	registered := s.isRegisteredLocked(doc)
	s.mu.RUnlock()
	if !registered {
		return &types.NotOpenError{URI: doc.URI()}
	}

	key := doc.URI().Normalized()
	if !s.closing.TryBegin(key) {
		return &types.NotOpenError{URI: doc.URI()}
	}
	defer s.closing.Done(key)

	dispatchErr := s.dispatcher.DispatchAndWait(ctx, event.DocumentClose, doc)

	s.mu.Lock()
	if s.isRegisteredLocked(doc) {
		delete(s.documents, doc.URI().Normalized())
	}
	s.mu.Unlock()
	doc.markClosed()
	s.cache.Clear()

	s.logger.Debug("document closed", "uri", doc.URI().String())
	if dispatchErr != nil {
		return fmt.Errorf("close %s: %w", doc.URI(), dispatchErr)
	}
	return nil
}

func (s *Store) isRegisteredLocked(doc *Document) bool {
	return doc != nil && s.documents[doc.URI().Normalized()] == doc
}

// Get returns the open document for uri
func (s *Store) Get(uri types.URI) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[uri.Normalized()]
	if !ok {
		return nil, &types.NotOpenError{URI: uri}
	}
	return doc, nil
}

// Documents returns the open documents ordered by URI
func (s *Store) Documents() []*Document {
	s.mu.RLock()
	docs := make([]*Document, 0, len(s.documents))
	for _, d := range s.documents {
		docs = append(docs, d)
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].URI().Normalized() < docs[j].URI().Normalized()
	})
	return docs
}

// OpenProject registers a project. Re-opening a root replaces the project
// and keeps its position in registration order.
func (s *Store) OpenProject(ctx context.Context, root types.URI) (*Project, error) {
	project := &Project{root: root}

	s.mu.Lock()
	idx := s.projectIndexLocked(root)
	if idx >= 0 {
		s.projects[idx] = project
	} else {
		s.projects = append(s.projects, project)
	}
	s.mu.Unlock()
	s.cache.Clear()

	s.logger.Debug("project opened", "root", root.String())
	if err := s.dispatcher.DispatchAndWait(ctx, event.ProjectOpen, project); err != nil {
		return project, fmt.Errorf("open project %s: %w", root, err)
	}
	return project, nil
}

// OpenDefaultProject registers the fallback project
func (s *Store) OpenDefaultProject(ctx context.Context) (*Project, error) {
	return s.OpenProject(ctx, types.MustParseURI(types.DefaultProjectURI))
}

// CloseProject dispatches the close event, then unregisters the project
func (s *Store) CloseProject(ctx context.Context, project *Project) error {
	s.mu.RLock()
	idx := s.projectIndexLocked(project.Root())
	registered := idx >= 0 && s.projects[idx] == project
	s.mu.RUnlock()
	if !registered {
		return &types.NotOpenError{URI: project.Root(), Project: true}
	}

	dispatchErr := s.dispatcher.DispatchAndWait(ctx, event.ProjectClose, project)

	s.mu.Lock()
	if idx := s.projectIndexLocked(project.Root()); idx >= 0 && s.projects[idx] == project {
		s.projects = slices.Delete(s.projects, idx, idx+1)
	}
	s.mu.Unlock()
	s.cache.Clear()

	s.logger.Debug("project closed", "root", project.Root().String())
	if dispatchErr != nil {
		return fmt.Errorf("close project %s: %w", project.Root(), dispatchErr)
	}
	return nil
}

func (s *Store) projectIndexLocked(root types.URI) int {
	return slices.IndexFunc(s.projects, func(p *Project) bool {
		return p.root.Equals(root)
	})
}

// Projects returns the open projects in registration order
func (s *Store) Projects() []*Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.projects)
}

// GetProject returns the project with exactly this root
func (s *Store) GetProject(root types.URI) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if idx := s.projectIndexLocked(root); idx >= 0 {
		return s.projects[idx], nil
	}
	return nil, &types.NotOpenError{URI: root, Project: true}
}

// GetProjectForDocument returns the first project, by registration order,
// containing the document. It falls back to the default project.
func (s *Store) GetProjectForDocument(doc *Document) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fallback *Project
	for _, p := range s.projects {
		if p.IsDefault() {
			fallback = p
			continue
		}
		if p.Contains(doc.URI()) {
			return p, nil
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, &types.NotOpenError{URI: doc.URI(), Project: true}
}

// GetProjectsForURI returns every project containing uri, or the default
// project alone when none does.
func (s *Store) GetProjectsForURI(uri types.URI) []*Project {
	projects, _ := Memoize(s.cache, "projects-for-uri:"+uri.Normalized(), func() ([]*Project, error) {
		return s.projectsForURI(uri), nil
	})
	return slices.Clone(projects)
}

func (s *Store) projectsForURI(uri types.URI) []*Project {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Project
	var fallback *Project
	for _, p := range s.projects {
		if p.IsDefault() {
			fallback = p
			continue
		}
		if p.Contains(uri) {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 && fallback != nil {
		matched = append(matched, fallback)
	}
	return matched
}

// GetDocumentsForProject returns the open documents strictly below the
// project root. For the default project it returns the documents no other
// project contains.
func (s *Store) GetDocumentsForProject(project *Project) []*Document {
	docs, _ := Memoize(s.cache, "documents-for-project:"+project.Root().Normalized(), func() ([]*Document, error) {
		var matched []*Document
		for _, d := range s.Documents() {
			if project.IsDefault() {
				if s.belongsOnlyToDefault(d.URI()) {
					matched = append(matched, d)
				}
				continue
			}
			if project.Root().IsParentOf(d.URI()) {
				matched = append(matched, d)
			}
		}
		return matched, nil
	})
	return slices.Clone(docs)
}

func (s *Store) belongsOnlyToDefault(uri types.URI) bool {
	projects := s.projectsForURI(uri)
	return len(projects) == 1 && projects[0].IsDefault()
}

// CloseAll closes every document, then every project. It keeps going after
// subscriber failures and stops only when ctx ends.
func (s *Store) CloseAll(ctx context.Context) error {
	var errs []error

	for _, d := range s.Documents() {
		if err := s.Close(ctx, d); err != nil {
			if errors.Is(err, types.ErrCancelled) {
				return err
			}
			errs = append(errs, err)
		}
	}
	for _, p := range s.Projects() {
		if err := s.CloseProject(ctx, p); err != nil {
			if errors.Is(err, types.ErrCancelled) {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
