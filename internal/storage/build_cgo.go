//go:build cgo_sqlite

package storage

// Compiled with the cgo_sqlite tag. FTS5 must be enabled in the C build:
//
//	CGO_ENABLED=1 go build -tags "cgo_sqlite sqlite_fts5" ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
