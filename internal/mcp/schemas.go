package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// openDocumentTool returns the tool definition for open_document
func openDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "open_document",
		Description: "Open a document so queries see its unsaved text",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"uri": map[string]interface{}{
					"type":        "string",
					"description": "Document URI or absolute path",
				},
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Full document text",
				},
				"language": map[string]interface{}{
					"type":        "string",
					"description": "Language tag (default: inferred from the file extension)",
				},
				"version": map[string]interface{}{
					"type":        "integer",
					"description": "Client version of the text",
					"default":     0,
				},
			},
			Required: []string{"uri", "text"},
		},
	}
}

// updateDocumentTool returns the tool definition for update_document
func updateDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "update_document",
		Description: "Replace the text of an open document",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"uri": map[string]interface{}{
					"type":        "string",
					"description": "Document URI or absolute path",
				},
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Full document text",
				},
				"version": map[string]interface{}{
					"type":        "integer",
					"description": "Client version of the text",
				},
			},
			Required: []string{"uri", "text"},
		},
	}
}

// closeDocumentTool returns the tool definition for close_document
func closeDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "close_document",
		Description: "Close an open document; the saved file is reindexed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"uri": map[string]interface{}{
					"type":        "string",
					"description": "Document URI or absolute path",
				},
			},
			Required: []string{"uri"},
		},
	}
}

// openProjectTool returns the tool definition for open_project
func openProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "open_project",
		Description: "Open a workspace root",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"root": map[string]interface{}{
					"type":        "string",
					"description": "Project root URI or absolute path",
				},
				"index": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, build the persisted index of the root",
					"default":     false,
				},
			},
			Required: []string{"root"},
		},
	}
}

// closeProjectTool returns the tool definition for close_project
func closeProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "close_project",
		Description: "Close a workspace root",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"root": map[string]interface{}{
					"type":        "string",
					"description": "Project root URI or absolute path",
				},
			},
			Required: []string{"root"},
		},
	}
}

// goToDefinitionTool returns the tool definition for go_to_definition
func goToDefinitionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "go_to_definition",
		Description: "Find the declarations of the symbol at a position",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"uri": map[string]interface{}{
					"type":        "string",
					"description": "Document URI or absolute path",
				},
				"line": map[string]interface{}{
					"type":        "integer",
					"description": "Zero-based line",
					"minimum":     0,
				},
				"character": map[string]interface{}{
					"type":        "integer",
					"description": "Zero-based UTF-16 character offset within the line",
					"minimum":     0,
				},
			},
			Required: []string{"uri", "line", "character"},
		},
	}
}

// hoverTool returns the tool definition for hover
func hoverTool() mcp.Tool {
	return mcp.Tool{
		Name:        "hover",
		Description: "Describe the symbol at a position",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"uri": map[string]interface{}{
					"type":        "string",
					"description": "Document URI or absolute path",
				},
				"line": map[string]interface{}{
					"type":        "integer",
					"description": "Zero-based line",
					"minimum":     0,
				},
				"character": map[string]interface{}{
					"type":        "integer",
					"description": "Zero-based UTF-16 character offset within the line",
					"minimum":     0,
				},
			},
			Required: []string{"uri", "line", "character"},
		},
	}
}

// getDiagnosticsTool returns the tool definition for get_diagnostics
func getDiagnosticsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_diagnostics",
		Description: "Report syntax and type problems in a document",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"uri": map[string]interface{}{
					"type":        "string",
					"description": "Document URI or absolute path",
				},
			},
			Required: []string{"uri"},
		},
	}
}

// searchSymbolsTool returns the tool definition for search_symbols
func searchSymbolsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_symbols",
		Description: "Search indexed declarations by name",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Symbol name, name prefix, or full-text terms",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Match mode: exact, prefix, or text (full-text over names, signatures and docs)",
					"enum":        []string{"exact", "prefix", "text"},
					"default":     "prefix",
				},
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Only return declarations of this kind (function, method, struct, interface, type, field, const, var, package)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-500)",
					"default":     50,
					"minimum":     1,
					"maximum":     500,
				},
			},
			Required: []string{"query"},
		},
	}
}

// indexProjectTool returns the tool definition for index_project
func indexProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_project",
		Description: "Build or refresh the persisted index of a Go project",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to Go project root",
				},
				"include_tests": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, index *_test.go files",
					"default":     true,
				},
				"include_vendor": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, index vendor/ directory",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report server state and, for a path, its index statistics",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to an indexed Go project (optional)",
				},
			},
			Required: []string{},
		},
	}
}
