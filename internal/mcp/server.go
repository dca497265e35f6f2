package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/langcore/internal/analysis"
	"github.com/dshills/langcore/internal/bridge"
	"github.com/dshills/langcore/internal/config"
	"github.com/dshills/langcore/internal/document"
	"github.com/dshills/langcore/internal/event"
	"github.com/dshills/langcore/internal/feature"
	"github.com/dshills/langcore/internal/index"
	"github.com/dshills/langcore/internal/indexer"
	"github.com/dshills/langcore/internal/parser"
	"github.com/dshills/langcore/internal/process"
	"github.com/dshills/langcore/internal/provider"
	"github.com/dshills/langcore/internal/storage"
	"github.com/dshills/langcore/internal/watcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "langcore"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	storage storage.Storage
	logger  *slog.Logger
	timeout time.Duration

	events      *event.Dispatcher
	registry    *document.Store
	bridge      *bridge.Bridge
	parses      *parser.Cache
	primary     *index.MemoryStorage
	symbols     index.Storage
	indexer     *indexer.Indexer
	watcher     *watcher.Watcher
	definitions *feature.DefinitionAggregator
	hovers      *feature.HoverAggregator
	diagnostics *feature.DiagnosticsAggregator
}

// NewServer assembles the core from cfg and registers the MCP tools
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbPath, err := cfg.ResolvedDBPath()
	if err != nil {
		return nil, err
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	s, err := newServer(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return s, nil
}

func newServer(cfg *config.Config, store storage.Storage, logger *slog.Logger) (*Server, error) {
	dispatcher := event.NewDispatcher(logger)
	cache, err := document.NewCache(cfg.Cache.RegistrySize)
	if err != nil {
		return nil, err
	}
	registry := document.NewStore(dispatcher, cache, logger)

	primary := index.NewMemoryStorage()
	idx := indexer.New(store, primary, logger)
	idx.Attach(dispatcher)
	symbols := index.NewChain(primary, idx.Secondary())

	parses, err := parser.NewCache(parser.NewRegistry(parser.New()), cfg.Cache.ParseSize)
	if err != nil {
		return nil, err
	}

	b := bridge.New(cfg.Bridge.Workers, logger)
	analyser, err := analysis.New(b, parses, cache, cfg.Analysis.Importer, logger)
	if err != nil {
		return nil, err
	}

	commands, err := cfg.Commands()
	if err != nil {
		return nil, err
	}
	runner := process.NewExecRunner(process.WithTimeout(cfg.RequestTimeout), process.WithLogger(logger))

	locator := feature.NewLocator(parses)
	definitions := feature.NewDefinitionAggregator(locator)
	definitions.Register(provider.NewTypesDefinitionProvider(analyser))
	definitions.Register(provider.NewIndexDefinitionProvider(symbols))

	hovers := feature.NewHoverAggregator(locator)
	hovers.Register(provider.NewTypesHoverProvider(analyser))
	hovers.Register(provider.NewIndexHoverProvider(symbols))

	diagnostics := feature.NewDiagnosticsAggregator()
	diagnostics.Register(provider.NewProcessDiagnosticsProvider(runner, commands, logger))
	diagnostics.Register(provider.NewTypesDiagnosticsProvider(analyser))

	var w *watcher.Watcher
	if cfg.Watch {
		w, err = watcher.New(idx, nil, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create watcher: %w", err)
		}
		w.Attach(dispatcher)
	}

	s := &Server{
		mcp:         server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		storage:     store,
		logger:      logger.With("component", "mcp"),
		timeout:     cfg.RequestTimeout,
		events:      dispatcher,
		registry:    registry,
		bridge:      b,
		parses:      parses,
		primary:     primary,
		symbols:     symbols,
		indexer:     idx,
		watcher:     w,
		definitions: definitions,
		hovers:      hovers,
		diagnostics: diagnostics,
	}

	if _, err := registry.OpenDefaultProject(context.Background()); err != nil {
		return nil, err
	}

	s.registerTools()
	return s, nil
}

// Indexer returns the server's indexer, used by the build-index command
func (s *Server) Indexer() *indexer.Indexer {
	return s.indexer
}

// Serve answers MCP requests on stdio until ctx ends or the transport fails
func (s *Server) Serve(ctx context.Context) error {
	return s.ServeIO(ctx, os.Stdin, os.Stdout)
}

// ServeIO is Serve over arbitrary streams
func (s *Server) ServeIO(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.watcher != nil {
		go func() {
			if err := s.watcher.Run(ctx); err != nil {
				s.logger.Warn("watcher stopped", "error", err)
			}
		}()
	}

	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("transport failed: %w", err)
	}
	return nil
}

// Close closes every open document and releases the watcher and storage
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var errs []error
	if err := s.registry.CloseAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.storage.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(openDocumentTool(), s.handle("open_document", s.handleOpenDocument))
	s.mcp.AddTool(updateDocumentTool(), s.handle("update_document", s.handleUpdateDocument))
	s.mcp.AddTool(closeDocumentTool(), s.handle("close_document", s.handleCloseDocument))
	s.mcp.AddTool(openProjectTool(), s.handle("open_project", s.handleOpenProject))
	s.mcp.AddTool(closeProjectTool(), s.handle("close_project", s.handleCloseProject))
	s.mcp.AddTool(goToDefinitionTool(), s.handle("go_to_definition", s.handleGoToDefinition))
	s.mcp.AddTool(hoverTool(), s.handle("hover", s.handleHover))
	s.mcp.AddTool(getDiagnosticsTool(), s.handle("get_diagnostics", s.handleGetDiagnostics))
	s.mcp.AddTool(searchSymbolsTool(), s.handle("search_symbols", s.handleSearchSymbols))
	s.mcp.AddTool(indexProjectTool(), s.handle("index_project", s.handleIndexProject))
	s.mcp.AddTool(getStatusTool(), s.handle("get_status", s.handleGetStatus))
}
