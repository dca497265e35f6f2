package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/dshills/langcore/internal/analysis"
	"github.com/dshills/langcore/internal/config"
	"github.com/dshills/langcore/internal/storage"
	"github.com/dshills/langcore/pkg/types"
)

const definitionSource = `package p

func Target() {}

func use() { Target() }
`

func setupServer(t *testing.T) *Server {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Analysis.Importer = analysis.ImporterNone

	s, err := newServer(cfg, store, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func callTool(t *testing.T, s *Server, name string, h toolHandler, args map[string]interface{}) (map[string]interface{}, *MCPError) {
	t.Helper()

	request := mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
	result, err := s.handle(name, h)(context.Background(), request)
	if err != nil {
		mcpErr, ok := err.(*MCPError)
		require.True(t, ok, "unexpected error type %T", err)
		return nil, mcpErr
	}

	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &response))
	return response, nil
}

func writeGoFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewServer_MemoryDatabase(t *testing.T) {
	cfg := config.Default()
	cfg.DBPath = ":memory:"

	s, err := NewServer(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.NotNil(t, s.mcp, "MCP server should be initialized")
	assert.NotNil(t, s.Indexer(), "Indexer should be initialized")
	assert.Nil(t, s.watcher, "watching is off by default")
	assert.Len(t, s.registry.Projects(), 1, "default project is open")
}

func TestNewServer_CreatesDatabaseDirectory(t *testing.T) {
	cfg := config.Default()
	cfg.DBPath = filepath.Join(t.TempDir(), "nested", "langcore.db")
	cfg.Watch = true

	s, err := NewServer(cfg, nil)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	assert.FileExists(t, cfg.DBPath)
	assert.NotNil(t, s.watcher)
}

func TestNewServer_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Bridge.Workers = 0

	_, err := NewServer(cfg, nil)
	assert.Error(t, err)
}

func TestDocumentLifecycle(t *testing.T) {
	s := setupServer(t)
	uri := "file:///src/p/a.go"

	response, mcpErr := callTool(t, s, "open_document", s.handleOpenDocument, map[string]interface{}{
		"uri": uri, "text": "package p\n", "version": float64(1),
	})
	require.Nil(t, mcpErr)
	assert.Equal(t, "go", response["language"])
	assert.Equal(t, float64(1), response["version"])
	assert.Len(t, s.registry.Documents(), 1)

	response, mcpErr = callTool(t, s, "update_document", s.handleUpdateDocument, map[string]interface{}{
		"uri": uri, "text": "package p\n\nfunc Added() {}\n",
	})
	require.Nil(t, mcpErr)
	assert.Equal(t, float64(2), response["version"], "version defaults to the next one")

	_, mcpErr = callTool(t, s, "close_document", s.handleCloseDocument, map[string]interface{}{"uri": uri})
	require.Nil(t, mcpErr)
	assert.Empty(t, s.registry.Documents())

	_, mcpErr = callTool(t, s, "update_document", s.handleUpdateDocument, map[string]interface{}{
		"uri": uri, "text": "package p\n",
	})
	require.NotNil(t, mcpErr)
	assert.Equal(t, ErrorCodeDocumentNotOpen, mcpErr.Code)
}

func TestOpenDocument_InvalidParams(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing uri", map[string]interface{}{"text": "x"}},
		{"empty uri", map[string]interface{}{"uri": "", "text": "x"}},
		{"missing text", map[string]interface{}{"uri": "file:///a.go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mcpErr := callTool(t, s, "open_document", s.handleOpenDocument, tt.args)
			require.NotNil(t, mcpErr)
			assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
		})
	}
}

func TestProjects(t *testing.T) {
	s := setupServer(t)
	root := t.TempDir()
	writeGoFile(t, root, "a.go", "package a\n\nfunc Indexed() {}\n")

	response, mcpErr := callTool(t, s, "open_project", s.handleOpenProject, map[string]interface{}{
		"root": root, "index": true,
	})
	require.Nil(t, mcpErr)
	assert.Equal(t, float64(2), response["projects"])
	stats, ok := response["index"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), stats["files_indexed"])

	_, mcpErr = callTool(t, s, "close_project", s.handleCloseProject, map[string]interface{}{"root": root})
	require.Nil(t, mcpErr)

	_, mcpErr = callTool(t, s, "close_project", s.handleCloseProject, map[string]interface{}{"root": root})
	require.NotNil(t, mcpErr)
	assert.Equal(t, ErrorCodeProjectNotOpen, mcpErr.Code)
}

func TestGoToDefinition_OpenDocument(t *testing.T) {
	s := setupServer(t)
	uri := "file:///src/p/a.go"

	_, mcpErr := callTool(t, s, "open_document", s.handleOpenDocument, map[string]interface{}{
		"uri": uri, "text": definitionSource,
	})
	require.Nil(t, mcpErr)

	response, mcpErr := callTool(t, s, "go_to_definition", s.handleGoToDefinition, map[string]interface{}{
		"uri": uri, "line": float64(4), "character": float64(14),
	})
	require.Nil(t, mcpErr)

	raw, err := json.Marshal(response["locations"])
	require.NoError(t, err)
	var locations []protocol.Location
	require.NoError(t, json.Unmarshal(raw, &locations))

	require.Len(t, locations, 2, "type checker and index both resolve the call")
	assert.Equal(t, true, response["open"])
	for _, loc := range locations {
		assert.Equal(t, uri, string(loc.URI))
		assert.Equal(t, protocol.Position{Line: 2, Character: 5}, loc.Range.Start)
		assert.Equal(t, protocol.Position{Line: 2, Character: 11}, loc.Range.End)
	}
}

func TestGoToDefinition_NoSymbol(t *testing.T) {
	s := setupServer(t)
	uri := "file:///src/p/a.go"
	_, mcpErr := callTool(t, s, "open_document", s.handleOpenDocument, map[string]interface{}{
		"uri": uri, "text": "package p\n\n// just a comment\n",
	})
	require.Nil(t, mcpErr)

	response, mcpErr := callTool(t, s, "go_to_definition", s.handleGoToDefinition, map[string]interface{}{
		"uri": uri, "line": float64(2), "character": float64(6),
	})
	require.Nil(t, mcpErr)
	assert.Empty(t, response["locations"])
}

func TestGoToDefinition_Errors(t *testing.T) {
	s := setupServer(t)

	_, mcpErr := callTool(t, s, "go_to_definition", s.handleGoToDefinition, map[string]interface{}{
		"uri": "file:///does/not/exist.go", "line": float64(0), "character": float64(0),
	})
	require.NotNil(t, mcpErr)
	assert.Equal(t, ErrorCodeDocumentNotOpen, mcpErr.Code)

	_, mcpErr = callTool(t, s, "go_to_definition", s.handleGoToDefinition, map[string]interface{}{
		"uri": "file:///a.go", "line": float64(-1), "character": float64(0),
	})
	require.NotNil(t, mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)

	_, mcpErr = callTool(t, s, "go_to_definition", s.handleGoToDefinition, map[string]interface{}{
		"uri": "file:///a.go", "line": float64(0),
	})
	require.NotNil(t, mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHover_LoadsUnopenedFile(t *testing.T) {
	s := setupServer(t)
	path := writeGoFile(t, t.TempDir(), "greet.go", `package p

// Greet says hi.
func Greet() string { return "hi" }

var _ = Greet()
`)

	response, mcpErr := callTool(t, s, "hover", s.handleHover, map[string]interface{}{
		"uri": types.FileURI(path).String(), "line": float64(5), "character": float64(9),
	})
	require.Nil(t, mcpErr)

	raw, err := json.Marshal(response["hovers"])
	require.NoError(t, err)
	var hovers []protocol.Hover
	require.NoError(t, json.Unmarshal(raw, &hovers))

	require.NotEmpty(t, hovers)
	assert.Contains(t, hovers[0].Contents.Value, "func Greet() string")
	assert.Empty(t, s.registry.Documents(), "transient documents are not registered")
	assert.Equal(t, false, response["open"])
}

func TestGetDiagnostics(t *testing.T) {
	s := setupServer(t)
	uri := "file:///src/p/bad.go"
	_, mcpErr := callTool(t, s, "open_document", s.handleOpenDocument, map[string]interface{}{
		"uri": uri, "text": "package p\n\nfunc f() int { return \"s\" }\n",
	})
	require.Nil(t, mcpErr)

	response, mcpErr := callTool(t, s, "get_diagnostics", s.handleGetDiagnostics, map[string]interface{}{"uri": uri})
	require.Nil(t, mcpErr)

	raw, err := json.Marshal(response["diagnostics"])
	require.NoError(t, err)
	var diagnostics []protocol.Diagnostic
	require.NoError(t, json.Unmarshal(raw, &diagnostics))

	var typeErrors []protocol.Diagnostic
	for _, d := range diagnostics {
		if d.Source == "go/types" {
			typeErrors = append(typeErrors, d)
		}
	}
	require.Len(t, typeErrors, 1)
	assert.Equal(t, uint32(2), typeErrors[0].Range.Start.Line)
	assert.Equal(t, protocol.DiagnosticSeverityError, typeErrors[0].Severity)
}

func TestSearchSymbols(t *testing.T) {
	s := setupServer(t)
	_, mcpErr := callTool(t, s, "open_document", s.handleOpenDocument, map[string]interface{}{
		"uri":  "file:///src/p/a.go",
		"text": "package p\n\ntype Alpha struct{}\n\nfunc AlphaBeta() {}\n\nfunc Gamma() {}\n",
	})
	require.Nil(t, mcpErr)

	tests := []struct {
		name  string
		args  map[string]interface{}
		names []string
	}{
		{"prefix", map[string]interface{}{"query": "Alpha"}, []string{"Alpha", "AlphaBeta"}},
		{"exact", map[string]interface{}{"query": "Alpha", "mode": "exact"}, []string{"Alpha"}},
		{"kind", map[string]interface{}{"query": "Alpha", "kind": "function"}, []string{"AlphaBeta"}},
		{"limit", map[string]interface{}{"query": "Alpha", "limit": float64(1)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response, mcpErr := callTool(t, s, "search_symbols", s.handleSearchSymbols, tt.args)
			require.Nil(t, mcpErr)

			results, ok := response["results"].([]interface{})
			require.True(t, ok)

			var names []string
			for _, r := range results {
				names = append(names, r.(map[string]interface{})["name"].(string))
			}
			if tt.names == nil {
				assert.Len(t, names, 1)
				assert.Equal(t, true, response["truncated"])
				assert.Equal(t, float64(2), response["total"])
				return
			}
			assert.ElementsMatch(t, tt.names, names)
		})
	}
}

func TestSearchSymbols_InvalidParams(t *testing.T) {
	s := setupServer(t)

	for _, args := range []map[string]interface{}{
		{},
		{"query": ""},
		{"query": "x", "mode": "fuzzy"},
		{"query": "x", "limit": float64(0)},
		{"query": "x", "limit": float64(501)},
	} {
		_, mcpErr := callTool(t, s, "search_symbols", s.handleSearchSymbols, args)
		require.NotNil(t, mcpErr, "args %v", args)
		assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
	}
}

func TestIndexProject_AndStatus(t *testing.T) {
	s := setupServer(t)
	root := t.TempDir()
	writeGoFile(t, root, "go.mod", "module example.com/greet\n\ngo 1.25\n")
	writeGoFile(t, root, "greet.go", "package greet\n\n// Greet says hello.\nfunc Greet() string { return \"hello\" }\n")

	response, mcpErr := callTool(t, s, "get_status", s.handleGetStatus, map[string]interface{}{"path": root})
	require.Nil(t, mcpErr)
	assert.Equal(t, false, response["indexed"])

	response, mcpErr = callTool(t, s, "index_project", s.handleIndexProject, map[string]interface{}{"path": root})
	require.Nil(t, mcpErr)
	assert.Equal(t, true, response["indexed"])
	assert.Equal(t, float64(1), response["files_indexed"])
	assert.Equal(t, float64(2), response["entries_extracted"])

	response, mcpErr = callTool(t, s, "get_status", s.handleGetStatus, map[string]interface{}{"path": root})
	require.Nil(t, mcpErr)
	assert.Equal(t, true, response["indexed"])
	project := response["project"].(map[string]interface{})
	assert.Equal(t, "example.com/greet", project["module_name"])
	statistics := response["statistics"].(map[string]interface{})
	assert.Equal(t, float64(1), statistics["files_count"])

	response, mcpErr = callTool(t, s, "search_symbols", s.handleSearchSymbols, map[string]interface{}{
		"query": "hello", "mode": "text",
	})
	require.Nil(t, mcpErr)
	results := response["results"].([]interface{})
	require.NotEmpty(t, results)
	assert.Equal(t, "Greet", results[0].(map[string]interface{})["name"])

	response, mcpErr = callTool(t, s, "search_symbols", s.handleSearchSymbols, map[string]interface{}{"query": "Gre"})
	require.Nil(t, mcpErr)
	assert.Len(t, response["results"], 1)
}

func TestIndexProject_InvalidPath(t *testing.T) {
	s := setupServer(t)
	empty := t.TempDir()

	for _, path := range []string{"relative/path", filepath.Join(empty, "missing"), empty} {
		_, mcpErr := callTool(t, s, "index_project", s.handleIndexProject, map[string]interface{}{"path": path})
		require.NotNil(t, mcpErr, path)
		assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
	}
}

func TestGetStatus_Server(t *testing.T) {
	s := setupServer(t)

	response, mcpErr := callTool(t, s, "get_status", s.handleGetStatus, nil)
	require.Nil(t, mcpErr)

	srv := response["server"].(map[string]interface{})
	assert.Equal(t, ServerVersion, srv["version"])
	assert.Equal(t, storage.DriverName, srv["sqlite_driver"])
	assert.Equal(t, []interface{}{types.DefaultProjectURI}, srv["projects"])
	bridge := srv["bridge"].(map[string]interface{})
	assert.Equal(t, float64(1), bridge["workers"])
	assert.Contains(t, srv, "cache_generation")

	subscribers := srv["subscribers"].(map[string]interface{})
	assert.GreaterOrEqual(t, subscribers["document.open"], float64(1), "the indexer follows open documents")
	assert.Contains(t, subscribers, "project.close")
}

func TestHandle_RequestTimeout(t *testing.T) {
	s := setupServer(t)
	s.timeout = 10 * time.Millisecond

	slow := func(ctx context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
		<-ctx.Done()
		return nil, types.Cancelled(ctx.Err())
	}

	_, mcpErr := callTool(t, s, "slow", slow, map[string]interface{}{})
	require.NotNil(t, mcpErr)
	assert.Equal(t, ErrorCodeCancelled, mcpErr.Code)
}

func TestHandle_InvalidArguments(t *testing.T) {
	s := setupServer(t)
	request := mcp.CallToolRequest{Params: mcp.CallToolParams{Name: "get_status", Arguments: "not an object"}}

	_, err := s.handle("get_status", s.handleGetStatus)(context.Background(), request)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestToMCPError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{&types.NotOpenError{URI: types.FileURI("/a.go")}, ErrorCodeDocumentNotOpen},
		{&types.NotOpenError{URI: types.FileURI("/a"), Project: true}, ErrorCodeProjectNotOpen},
		{types.Cancelled(context.Canceled), ErrorCodeCancelled},
		{context.DeadlineExceeded, ErrorCodeCancelled},
		{assert.AnError, ErrorCodeInternalError},
		{newMCPError(ErrorCodeInvalidParams, "bad", nil), ErrorCodeInvalidParams},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, toMCPError(tt.err).Code, tt.err.Error())
	}
}

func TestLanguageOf(t *testing.T) {
	assert.Equal(t, "go", languageOf("file:///src/a.go"))
	assert.Equal(t, "php", languageOf("/var/www/index.php"))
	assert.Equal(t, "php", languageOf("/var/www/view.phtml"))
	assert.Equal(t, "", languageOf("/etc/hosts"))
}

func TestServeIO_ListsTools(t *testing.T) {
	s := setupServer(t)

	in := strings.NewReader(strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	}, "\n") + "\n")
	var out strings.Builder

	require.NoError(t, s.ServeIO(context.Background(), in, &out))

	for _, name := range []string{
		"open_document", "update_document", "close_document", "open_project", "close_project",
		"go_to_definition", "hover", "get_diagnostics", "search_symbols", "index_project", "get_status",
	} {
		assert.Contains(t, out.String(), `"name":"`+name+`"`)
	}
}
