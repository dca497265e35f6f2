package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.lsp.dev/protocol"

	"github.com/dshills/langcore/internal/document"
	"github.com/dshills/langcore/internal/event"
	"github.com/dshills/langcore/internal/index"
	"github.com/dshills/langcore/internal/indexer"
	"github.com/dshills/langcore/internal/storage"
	"github.com/dshills/langcore/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeDocumentNotOpen    = -32001 // Document is neither open nor readable from disk
	ErrorCodeProjectNotOpen     = -32002 // No project is open at the given root
	ErrorCodeCancelled          = -32003 // Request cancelled or timed out
	ErrorCodeIndexingInProgress = -32004 // Another indexing operation is already running
)

const maxSearchLimit = 500

// toolHandler implements one tool over decoded arguments
type toolHandler func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error)

// handle adapts a toolHandler: it tags the request, bounds it with the
// request timeout and converts failures to MCP errors
func (s *Server) handle(name string, h toolHandler) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := s.logger.With("tool", name, "request_id", uuid.NewString())

		args, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			if request.Params.Arguments != nil {
				return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
			}
			args = map[string]interface{}{}
		}

		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		start := time.Now()
		response, err := h(ctx, args)
		if err != nil {
			mcpErr := toMCPError(err)
			logger.Warn("tool failed", "code", mcpErr.Code, "error", err, "duration", time.Since(start))
			return nil, mcpErr
		}

		logger.Debug("tool completed", "duration", time.Since(start))
		return mcp.NewToolResultText(formatJSON(response)), nil
	}
}

// handleOpenDocument handles the open_document tool invocation
func (s *Server) handleOpenDocument(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	uri, err := requireURI(args, "uri")
	if err != nil {
		return nil, err
	}
	text, ok := args["text"].(string)
	if !ok {
		return nil, paramError("text", "missing")
	}
	language := getStringDefault(args, "language", languageOf(uri.String()))
	version := int32(getIntDefault(args, "version", 0))

	doc, err := s.registry.Open(ctx, uri, language, text, version)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"uri":      doc.URI().String(),
		"language": doc.Language(),
		"version":  doc.Version(),
	}, nil
}

// handleUpdateDocument handles the update_document tool invocation
func (s *Server) handleUpdateDocument(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	uri, err := requireURI(args, "uri")
	if err != nil {
		return nil, err
	}
	text, ok := args["text"].(string)
	if !ok {
		return nil, paramError("text", "missing")
	}

	doc, err := s.registry.Get(uri)
	if err != nil {
		return nil, err
	}
	version := int32(getIntDefault(args, "version", int(doc.Version())+1))

	if err := s.registry.Update(ctx, doc, text, version); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"uri":     doc.URI().String(),
		"version": doc.Version(),
	}, nil
}

// handleCloseDocument handles the close_document tool invocation
func (s *Server) handleCloseDocument(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	uri, err := requireURI(args, "uri")
	if err != nil {
		return nil, err
	}

	doc, err := s.registry.Get(uri)
	if err != nil {
		return nil, err
	}
	if err := s.registry.Close(ctx, doc); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"uri":    uri.String(),
		"closed": true,
	}, nil
}

// handleOpenProject handles the open_project tool invocation
func (s *Server) handleOpenProject(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	root, err := requireURI(args, "root")
	if err != nil {
		return nil, err
	}

	if _, err := s.registry.OpenProject(ctx, root); err != nil {
		return nil, err
	}

	response := map[string]interface{}{
		"root":     root.String(),
		"projects": len(s.registry.Projects()),
	}

	if getBoolDefault(args, "index", false) {
		path, err := root.FilesystemPath()
		if err != nil {
			return nil, paramError("root", err.Error())
		}
		stats, err := s.indexer.BuildIndex(ctx, path, nil)
		if err != nil {
			return nil, err
		}
		response["index"] = statisticsResponse(stats)
	}

	return response, nil
}

// handleCloseProject handles the close_project tool invocation
func (s *Server) handleCloseProject(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	root, err := requireURI(args, "root")
	if err != nil {
		return nil, err
	}

	project, err := s.registry.GetProject(root)
	if err != nil {
		return nil, err
	}
	if err := s.registry.CloseProject(ctx, project); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"root":   root.String(),
		"closed": true,
	}, nil
}

// handleGoToDefinition handles the go_to_definition tool invocation
func (s *Server) handleGoToDefinition(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	doc, pos, err := s.documentPosition(args)
	if err != nil {
		return nil, err
	}

	locations, err := s.definitions.GetLocations(ctx, doc, pos)
	if err != nil {
		return nil, err
	}
	if locations == nil {
		locations = []protocol.Location{}
	}

	return map[string]interface{}{
		"uri":       doc.URI().String(),
		"locations": locations,
		"open":      doc.IsOpen(),
	}, nil
}

// handleHover handles the hover tool invocation
func (s *Server) handleHover(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	doc, pos, err := s.documentPosition(args)
	if err != nil {
		return nil, err
	}

	hovers, err := s.hovers.GetHovers(ctx, doc, pos)
	if err != nil {
		return nil, err
	}
	if hovers == nil {
		hovers = []protocol.Hover{}
	}

	return map[string]interface{}{
		"uri":    doc.URI().String(),
		"hovers": hovers,
		"open":   doc.IsOpen(),
	}, nil
}

// handleGetDiagnostics handles the get_diagnostics tool invocation
func (s *Server) handleGetDiagnostics(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	uri, err := requireURI(args, "uri")
	if err != nil {
		return nil, err
	}
	doc, err := s.document(uri)
	if err != nil {
		return nil, err
	}

	diagnostics, err := s.diagnostics.GetDiagnostics(ctx, doc)
	if err != nil {
		return nil, err
	}
	if diagnostics == nil {
		diagnostics = []protocol.Diagnostic{}
	}

	return map[string]interface{}{
		"uri":         doc.URI().String(),
		"diagnostics": diagnostics,
		"open":        doc.IsOpen(),
	}, nil
}

// handleSearchSymbols handles the search_symbols tool invocation
func (s *Server) handleSearchSymbols(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, paramError("query", "missing or empty")
	}

	limit := getIntDefault(args, "limit", 50)
	if limit < 1 || limit > maxSearchLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", maxSearchLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	kind := getStringDefault(args, "kind", "")

	var (
		entries []index.Entry
		err     error
	)
	switch mode := getStringDefault(args, "mode", "prefix"); mode {
	case "exact":
		entries, err = s.symbols.Search(ctx, index.Query{Key: query, Match: index.MatchExact})
	case "prefix":
		entries, err = s.symbols.Search(ctx, index.Query{Key: query, Match: index.MatchPrefix})
	case "text":
		entries, err = s.indexer.Secondary().SearchText(ctx, query, maxSearchLimit)
	default:
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"value":   mode,
			"allowed": []string{"exact", "prefix", "text"},
		})
	}
	if err != nil {
		return nil, err
	}

	results := make([]map[string]interface{}, 0, min(len(entries), limit))
	matched := 0
	for _, e := range entries {
		if kind != "" && e.Kind != kind {
			continue
		}
		matched++
		if len(results) < limit {
			results = append(results, symbolResponse(e))
		}
	}

	return map[string]interface{}{
		"query":     query,
		"results":   results,
		"total":     matched,
		"truncated": matched > len(results),
	}, nil
}

// handleIndexProject handles the index_project tool invocation
func (s *Server) handleIndexProject(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, paramError("path", "missing or empty")
	}
	if err := validatePath(path); err != nil {
		return nil, paramError("path", err.Error())
	}

	cfg := indexer.DefaultConfig()
	cfg.IncludeTests = getBoolDefault(args, "include_tests", true)
	cfg.IncludeVendor = getBoolDefault(args, "include_vendor", false)

	stats, err := s.indexer.BuildIndex(ctx, path, cfg)
	if err != nil {
		return nil, err
	}

	response := statisticsResponse(stats)
	response["indexed"] = true
	return response, nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	roots := make([]string, 0)
	for _, p := range s.registry.Projects() {
		roots = append(roots, p.Root().String())
	}
	stats := s.bridge.Stats()

	subscribers := make(map[string]interface{})
	for _, kind := range []event.Kind{event.DocumentOpen, event.DocumentChange, event.DocumentClose, event.ProjectOpen, event.ProjectClose} {
		subscribers[string(kind)] = s.events.Subscribers(kind)
	}

	response := map[string]interface{}{
		"server": map[string]interface{}{
			"version":          ServerVersion,
			"build_mode":       storage.BuildMode,
			"sqlite_driver":    storage.DriverName,
			"open_documents":   len(s.registry.Documents()),
			"projects":         roots,
			"overlay_files":    len(s.primary.Files()),
			"parsed_trees":     s.parses.Len(),
			"cache_generation": s.registry.Cache().Generation(),
			"subscribers":      subscribers,
			"bridge": map[string]interface{}{
				"workers":   stats.Workers,
				"active":    stats.Active,
				"paused":    stats.Paused,
				"completed": stats.Completed,
				"failed":    stats.Failed,
			},
		},
	}

	path := getStringDefault(args, "path", "")
	if path == "" {
		return response, nil
	}

	response["path"] = path
	response["indexing"] = s.indexer.Building(path)

	status, err := s.indexer.Status(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		response["indexed"] = false
		response["message"] = "Project not indexed. Use index_project tool to index this project."
		return response, nil
	}
	if err != nil {
		return nil, err
	}

	project := status.Project
	response["indexed"] = true
	response["project"] = map[string]interface{}{
		"root":            project.RootURI,
		"module_name":     project.ModuleName,
		"go_version":      project.GoVersion,
		"last_indexed_at": project.LastIndexedAt.Format(time.RFC3339),
	}
	response["statistics"] = map[string]interface{}{
		"files_count":   status.FilesCount,
		"entries_count": status.EntriesCount,
		"parse_errors":  status.ParseErrors,
		"index_size_mb": fmt.Sprintf("%.2f", status.IndexSizeMB),
	}
	response["health"] = map[string]interface{}{
		"database_accessible": status.Health.DatabaseAccessible,
		"fts_indexes_built":   status.Health.FTSIndexesBuilt,
	}
	return response, nil
}

// document returns the open document for uri. A file that is not open is
// loaded from disk for the duration of the request.
func (s *Server) document(uri types.URI) (*document.Document, error) {
	doc, err := s.registry.Get(uri)
	if err == nil {
		return doc, nil
	}

	path, pathErr := uri.FilesystemPath()
	if pathErr != nil {
		return nil, err
	}
	content, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, err
	}
	return s.registry.Load(uri, languageOf(path), string(content)), nil
}

func (s *Server) documentPosition(args map[string]interface{}) (*document.Document, protocol.Position, error) {
	uri, err := requireURI(args, "uri")
	if err != nil {
		return nil, protocol.Position{}, err
	}
	line, err := requireUint(args, "line")
	if err != nil {
		return nil, protocol.Position{}, err
	}
	character, err := requireUint(args, "character")
	if err != nil {
		return nil, protocol.Position{}, err
	}

	doc, err := s.document(uri)
	if err != nil {
		return nil, protocol.Position{}, err
	}
	return doc, protocol.Position{Line: line, Character: character}, nil
}

func statisticsResponse(stats *indexer.Statistics) map[string]interface{} {
	response := map[string]interface{}{
		"files_indexed":     stats.FilesIndexed,
		"files_skipped":     stats.FilesSkipped,
		"files_failed":      stats.FilesFailed,
		"entries_extracted": stats.EntriesExtracted,
		"duration_ms":       stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}
	return response
}

func symbolResponse(e index.Entry) map[string]interface{} {
	result := map[string]interface{}{
		"name":      e.Name,
		"kind":      e.Kind,
		"signature": e.Signature,
		"uri":       e.SourceURI.String(),
		"range":     e.Range,
	}
	if e.Container != "" {
		result["container"] = e.Container
	}
	if e.Doc != "" {
		result["doc"] = e.Doc
	}
	return result
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) *MCPError {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

func paramError(param, reason string) *MCPError {
	return newMCPError(ErrorCodeInvalidParams, param+" parameter is invalid", map[string]interface{}{
		"param":  param,
		"reason": reason,
	})
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// toMCPError maps core errors to protocol error codes
func toMCPError(err error) *MCPError {
	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, types.ErrDocumentNotOpen):
		code = ErrorCodeDocumentNotOpen
	case errors.Is(err, types.ErrProjectNotOpen):
		code = ErrorCodeProjectNotOpen
	case errors.Is(err, types.ErrCancelled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		code = ErrorCodeCancelled
	case errors.Is(err, indexer.ErrIndexingInProgress):
		code = ErrorCodeIndexingInProgress
	}
	return newMCPError(code, err.Error(), map[string]interface{}{
		"error": err.Error(),
	})
}

// validatePath checks if a path exists and is accessible
func validatePath(path string) error {
	// Check if path is absolute
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	hasGoFiles := false
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(p, ".go") {
			hasGoFiles = true
			return fs.SkipAll
		}
		return nil
	})

	if !hasGoFiles {
		return ErrNoGoFiles
	}
	return nil
}

// languageOf infers a language tag from a file extension
func languageOf(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	switch ext {
	case "phtml", "php5":
		return "php"
	default:
		return ext
	}
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

func requireURI(args map[string]interface{}, key string) (types.URI, error) {
	raw, ok := args[key].(string)
	if !ok || raw == "" {
		return types.URI{}, paramError(key, "missing or empty")
	}
	uri, err := types.ParseURI(raw)
	if err != nil {
		return types.URI{}, paramError(key, err.Error())
	}
	return uri, nil
}

func requireUint(args map[string]interface{}, key string) (uint32, error) {
	if _, ok := args[key]; !ok {
		return 0, paramError(key, "missing")
	}
	n := getIntDefault(args, key, -1)
	if n < 0 {
		return 0, paramError(key, "must be a non-negative integer")
	}
	return uint32(n), nil
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrNoGoFiles       = errors.New("directory does not contain Go files")
)
