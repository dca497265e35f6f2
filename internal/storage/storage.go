package storage

import (
	"context"
	"time"
)

// Storage persists the secondary symbol index built from files on disk
type Storage interface {
	// Project operations
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, rootURI string) (*Project, error)
	UpdateProject(ctx context.Context, project *Project) error

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, uri string) (*File, error)
	DeleteFile(ctx context.Context, uri string) error
	ListFiles(ctx context.Context, projectID int64) ([]*File, error)

	// Entry operations
	ReplaceEntries(ctx context.Context, fileID int64, entries []*Entry) error
	ListEntriesByFile(ctx context.Context, fileID int64) ([]*Entry, error)
	SearchEntries(ctx context.Context, query EntryQuery) ([]*Entry, error)
	SearchText(ctx context.Context, text string, limit int) ([]*Entry, error)

	// FileModTimes maps file URIs to the modification time they were indexed at.
	// A non-empty root restricts the map to that URI and the files below it.
	FileModTimes(ctx context.Context, root string) (map[string]time.Time, error)

	// Status operations
	GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Project represents a workspace root indexed from disk
type Project struct {
	ID            int64
	RootURI       string
	ModuleName    string
	GoVersion     string
	TotalFiles    int
	TotalEntries  int
	IndexVersion  string
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// File represents a tracked source file
type File struct {
	ID            int64
	ProjectID     int64 // 0 when indexed outside a project build
	URI           string
	PackageName   string
	ContentHash   [32]byte
	ModTime       time.Time
	SizeBytes     int64
	ParseError    *string // Nullable
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Entry is a persisted index entry. FileURI is filled in by queries.
type Entry struct {
	ID        int64
	FileID    int64
	FileURI   string
	Category  string
	Key       string
	Name      string
	Kind      string
	Container string
	Signature string
	Doc       string
	StartLine int
	StartChar int
	EndLine   int
	EndChar   int
}

// EntryQuery selects entries by key. An empty Category matches every category.
type EntryQuery struct {
	Category string
	Key      string
	Prefix   bool
	Limit    int // 0 means unlimited
}

// ProjectStatus contains statistics about an indexed project
type ProjectStatus struct {
	Project       *Project
	FilesCount    int
	EntriesCount  int
	ParseErrors   int
	IndexSizeMB   float64
	LastIndexedAt time.Time
	Health        HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible bool
	FTSIndexesBuilt    bool
}
