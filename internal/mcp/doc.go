// Package mcp implements the Model Context Protocol (MCP) server for langcore.
//
// The server exposes the language core to MCP clients over stdio:
//   - open_document, update_document, close_document: document lifecycle
//   - open_project, close_project: workspace roots
//   - go_to_definition, hover, get_diagnostics: feature queries
//   - search_symbols: lookups over the layered symbol index
//   - index_project, get_status: the persisted index
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// stdout carries protocol messages only; logs go to stderr or a log file.
//
// # Positions
//
// Positions are zero-based lines and UTF-16 characters, as in LSP:
//
//	Request:
//	{
//	  "name": "go_to_definition",
//	  "arguments": {"uri": "file:///src/app/main.go", "line": 12, "character": 8}
//	}
//
//	Response:
//	{
//	  "uri": "file:///src/app/main.go",
//	  "locations": [
//	    {"uri": "file:///src/app/util.go", "range": {"start": {"line": 3, "character": 5}, "end": {...}}}
//	  ],
//	  "open": true
//	}
//
// Queries against a file that is not open read it from disk for the
// duration of the request and answer with "open": false. Open documents are answered from their unsaved
// text, and their declarations shadow the persisted index.
//
// # Errors
//
// Failures are returned as *MCPError:
//
//	-32602  invalid parameters
//	-32603  internal error
//	-32001  document not open (and not readable from disk)
//	-32002  project not open
//	-32003  request cancelled or timed out
//	-32004  indexing already in progress for the root
//
// Every request runs under the configured request timeout and is logged
// with a request_id.
package mcp
