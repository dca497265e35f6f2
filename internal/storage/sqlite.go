package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// Project operations

func (s *SQLiteStorage) createProjectWithQuerier(ctx context.Context, q querier, project *Project) error {
	query := `
		INSERT INTO projects (root_uri, module_name, go_version, index_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		project.RootURI, project.ModuleName, project.GoVersion,
		project.IndexVersion, toUnix(now), toUnix(now))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("project %s: %w", project.RootURI, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	project.ID = id
	project.CreatedAt = now
	project.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) CreateProject(ctx context.Context, project *Project) error {
	return s.createProjectWithQuerier(ctx, s.querier(), project)
}

const projectColumns = `id, root_uri, module_name, go_version, total_files, total_entries,
		       index_version, last_indexed_at, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*Project, error) {
	var project Project
	var moduleName, goVersion sql.NullString
	var lastIndexedAt sql.NullInt64
	var createdAt, updatedAt int64
	err := row.Scan(
		&project.ID, &project.RootURI, &moduleName, &goVersion,
		&project.TotalFiles, &project.TotalEntries, &project.IndexVersion,
		&lastIndexedAt, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	project.ModuleName = moduleName.String
	project.GoVersion = goVersion.String
	project.LastIndexedAt = fromUnix(lastIndexedAt.Int64)
	project.CreatedAt = fromUnix(createdAt)
	project.UpdatedAt = fromUnix(updatedAt)
	return &project, nil
}

func (s *SQLiteStorage) getProjectWithQuerier(ctx context.Context, q querier, rootURI string) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE root_uri = ?`
	return scanProject(q.QueryRowContext(ctx, query, rootURI))
}

func (s *SQLiteStorage) GetProject(ctx context.Context, rootURI string) (*Project, error) {
	return s.getProjectWithQuerier(ctx, s.querier(), rootURI)
}

func (s *SQLiteStorage) getProjectByID(ctx context.Context, q querier, projectID int64) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`
	return scanProject(q.QueryRowContext(ctx, query, projectID))
}

func (s *SQLiteStorage) updateProjectWithQuerier(ctx context.Context, q querier, project *Project) error {
	query := `
		UPDATE projects
		SET module_name = ?, go_version = ?, total_files = ?, total_entries = ?,
		    last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	_, err := q.ExecContext(ctx, query,
		project.ModuleName, project.GoVersion, project.TotalFiles, project.TotalEntries,
		toUnix(project.LastIndexedAt), toUnix(now), project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	project.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpdateProject(ctx context.Context, project *Project) error {
	return s.updateProjectWithQuerier(ctx, s.querier(), project)
}

// File operations

func (s *SQLiteStorage) upsertFileWithQuerier(ctx context.Context, q querier, file *File) error {
	query := `
		INSERT INTO files (project_id, uri, package_name, content_hash, mod_time, size_bytes, parse_error, last_indexed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uri) DO UPDATE SET
			project_id = COALESCE(excluded.project_id, files.project_id),
			package_name = excluded.package_name,
			content_hash = excluded.content_hash,
			mod_time = excluded.mod_time,
			size_bytes = excluded.size_bytes,
			parse_error = excluded.parse_error,
			last_indexed_at = excluded.last_indexed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		nullID(file.ProjectID), file.URI, file.PackageName, file.ContentHash[:],
		toUnix(file.ModTime), file.SizeBytes, file.ParseError,
		toUnix(now), toUnix(now), toUnix(now)).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}

	file.LastIndexedAt = now
	file.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertFile(ctx context.Context, file *File) error {
	return s.upsertFileWithQuerier(ctx, s.querier(), file)
}

const fileColumns = `id, project_id, uri, package_name, content_hash, mod_time,
		       size_bytes, parse_error, last_indexed_at, created_at, updated_at`

func scanFile(row interface{ Scan(...any) error }) (*File, error) {
	var file File
	var projectID sql.NullInt64
	var packageName, parseError sql.NullString
	var hash []byte
	var sizeBytes sql.NullInt64
	var modTime, lastIndexedAt, createdAt, updatedAt int64
	err := row.Scan(
		&file.ID, &projectID, &file.URI, &packageName,
		&hash, &modTime, &sizeBytes, &parseError,
		&lastIndexedAt, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	file.ProjectID = projectID.Int64
	file.PackageName = packageName.String
	copy(file.ContentHash[:], hash)
	file.SizeBytes = sizeBytes.Int64
	if parseError.Valid {
		file.ParseError = &parseError.String
	}
	file.ModTime = fromUnix(modTime)
	file.LastIndexedAt = fromUnix(lastIndexedAt)
	file.CreatedAt = fromUnix(createdAt)
	file.UpdatedAt = fromUnix(updatedAt)
	return &file, nil
}

func (s *SQLiteStorage) getFileWithQuerier(ctx context.Context, q querier, uri string) (*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE uri = ?`
	return scanFile(q.QueryRowContext(ctx, query, uri))
}

func (s *SQLiteStorage) GetFile(ctx context.Context, uri string) (*File, error) {
	return s.getFileWithQuerier(ctx, s.querier(), uri)
}

func (s *SQLiteStorage) deleteFileWithQuerier(ctx context.Context, q querier, uri string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM files WHERE uri = ?`, uri)
	return err
}

func (s *SQLiteStorage) DeleteFile(ctx context.Context, uri string) error {
	return s.deleteFileWithQuerier(ctx, s.querier(), uri)
}

func (s *SQLiteStorage) listFilesWithQuerier(ctx context.Context, q querier, projectID int64) ([]*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE project_id = ? ORDER BY uri`
	rows, err := q.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func (s *SQLiteStorage) ListFiles(ctx context.Context, projectID int64) ([]*File, error) {
	return s.listFilesWithQuerier(ctx, s.querier(), projectID)
}

// fileModTimesWithQuerier lists the mod time of every file, optionally under root
func (s *SQLiteStorage) fileModTimesWithQuerier(ctx context.Context, q querier, root string) (map[string]time.Time, error) {
	query := `SELECT uri, mod_time FROM files`
	var args []any
	if root != "" {
		query += ` WHERE uri = ? OR uri GLOB ?`
		args = append(args, root, globEscape(strings.TrimSuffix(root, "/")+"/")+"*")
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]time.Time)
	for rows.Next() {
		var uri string
		var modTime int64
		if err := rows.Scan(&uri, &modTime); err != nil {
			return nil, err
		}
		out[uri] = fromUnix(modTime)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) FileModTimes(ctx context.Context, root string) (map[string]time.Time, error) {
	return s.fileModTimesWithQuerier(ctx, s.querier(), root)
}

// Entry operations

func (s *SQLiteStorage) replaceEntriesWithQuerier(ctx context.Context, q querier, fileID int64, entries []*Entry) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM entries WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}

	query := `
		INSERT INTO entries (file_id, category, key, name, kind, container, signature, doc,
		                     start_line, start_char, end_line, end_char)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	for _, e := range entries {
		err := q.QueryRowContext(ctx, query,
			fileID, e.Category, e.Key, e.Name, e.Kind, e.Container, e.Signature, e.Doc,
			e.StartLine, e.StartChar, e.EndLine, e.EndChar).Scan(&e.ID)
		if err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.Key, err)
		}
		e.FileID = fileID
	}
	return nil
}

// ReplaceEntries swaps all entries of a file. Outside a transaction the
// delete and inserts run in one of their own.
func (s *SQLiteStorage) ReplaceEntries(ctx context.Context, fileID int64, entries []*Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.replaceEntriesWithQuerier(ctx, tx, fileID, entries); err != nil {
		return err
	}
	return tx.Commit()
}

const entryColumns = `e.id, e.file_id, f.uri, e.category, e.key, e.name, e.kind, e.container,
		       e.signature, e.doc, e.start_line, e.start_char, e.end_line, e.end_char`

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	defer func() { _ = rows.Close() }()

	entries := make([]*Entry, 0)
	for rows.Next() {
		var e Entry
		var kind, container, signature, doc sql.NullString
		err := rows.Scan(
			&e.ID, &e.FileID, &e.FileURI, &e.Category, &e.Key, &e.Name, &kind, &container,
			&signature, &doc, &e.StartLine, &e.StartChar, &e.EndLine, &e.EndChar,
		)
		if err != nil {
			return nil, err
		}
		e.Kind = kind.String
		e.Container = container.String
		e.Signature = signature.String
		e.Doc = doc.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStorage) listEntriesByFileWithQuerier(ctx context.Context, q querier, fileID int64) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + `
		FROM entries e JOIN files f ON e.file_id = f.id
		WHERE e.file_id = ?
		ORDER BY e.start_line, e.start_char`
	rows, err := q.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (s *SQLiteStorage) ListEntriesByFile(ctx context.Context, fileID int64) ([]*Entry, error) {
	return s.listEntriesByFileWithQuerier(ctx, s.querier(), fileID)
}

func (s *SQLiteStorage) searchEntriesWithQuerier(ctx context.Context, q querier, eq EntryQuery) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries e JOIN files f ON e.file_id = f.id WHERE `
	var args []any
	if eq.Prefix {
		// GLOB is case-sensitive, unlike LIKE
		query += `e.key GLOB ?`
		args = append(args, globEscape(eq.Key)+"*")
	} else {
		query += `e.key = ?`
		args = append(args, eq.Key)
	}
	if eq.Category != "" {
		query += ` AND e.category = ?`
		args = append(args, eq.Category)
	}
	query += ` ORDER BY f.uri, e.start_line, e.start_char`
	if eq.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, eq.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search entries: %w", err)
	}
	return scanEntries(rows)
}

func (s *SQLiteStorage) SearchEntries(ctx context.Context, query EntryQuery) ([]*Entry, error) {
	return s.searchEntriesWithQuerier(ctx, s.querier(), query)
}

func (s *SQLiteStorage) searchTextWithQuerier(ctx context.Context, q querier, text string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + entryColumns + `
		FROM entries_fts
		JOIN entries e ON e.id = entries_fts.rowid
		JOIN files f ON e.file_id = f.id
		WHERE entries_fts MATCH ?
		ORDER BY bm25(entries_fts)
		LIMIT ?`
	rows, err := q.QueryContext(ctx, query, ftsQuery(text), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search text: %w", err)
	}
	return scanEntries(rows)
}

// SearchText runs a full-text query over entry names, signatures and docs
func (s *SQLiteStorage) SearchText(ctx context.Context, text string, limit int) ([]*Entry, error) {
	return s.searchTextWithQuerier(ctx, s.querier(), text, limit)
}

// ftsQuery quotes every term so user input cannot use FTS5 operators
func ftsQuery(text string) string {
	fields := strings.Fields(text)
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		quoted = append(quoted, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}

// globEscape makes s match literally inside a GLOB pattern
func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[':
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteByte(']')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier, projectID int64) (*ProjectStatus, error) {
	project, err := s.getProjectByID(ctx, q, projectID)
	if err != nil {
		return nil, err
	}

	status := &ProjectStatus{
		Project:       project,
		LastIndexedAt: project.LastIndexedAt,
	}

	err = q.QueryRowContext(ctx, "SELECT COUNT(*) FROM files WHERE project_id = ?", projectID).Scan(&status.FilesCount)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files WHERE project_id = ? AND parse_error IS NOT NULL", projectID).Scan(&status.ParseErrors)
	if err != nil {
		return nil, err
	}

	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM entries e
		JOIN files f ON e.file_id = f.id
		WHERE f.project_id = ?
	`, projectID).Scan(&status.EntriesCount)
	if err != nil {
		return nil, err
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible: true,
		FTSIndexesBuilt:    true, // created by migration 1.1.0
	}

	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error) {
	return s.getStatusWithQuerier(ctx, s.querier(), projectID)
}

// Transaction implementations share the querier-based helpers

func (t *sqliteTx) CreateProject(ctx context.Context, project *Project) error {
	return t.storage.createProjectWithQuerier(ctx, t.querier(), project)
}

func (t *sqliteTx) GetProject(ctx context.Context, rootURI string) (*Project, error) {
	return t.storage.getProjectWithQuerier(ctx, t.querier(), rootURI)
}

func (t *sqliteTx) UpdateProject(ctx context.Context, project *Project) error {
	return t.storage.updateProjectWithQuerier(ctx, t.querier(), project)
}

func (t *sqliteTx) UpsertFile(ctx context.Context, file *File) error {
	return t.storage.upsertFileWithQuerier(ctx, t.querier(), file)
}

func (t *sqliteTx) GetFile(ctx context.Context, uri string) (*File, error) {
	return t.storage.getFileWithQuerier(ctx, t.querier(), uri)
}

func (t *sqliteTx) DeleteFile(ctx context.Context, uri string) error {
	return t.storage.deleteFileWithQuerier(ctx, t.querier(), uri)
}

func (t *sqliteTx) ListFiles(ctx context.Context, projectID int64) ([]*File, error) {
	return t.storage.listFilesWithQuerier(ctx, t.querier(), projectID)
}

func (t *sqliteTx) ReplaceEntries(ctx context.Context, fileID int64, entries []*Entry) error {
	return t.storage.replaceEntriesWithQuerier(ctx, t.querier(), fileID, entries)
}

func (t *sqliteTx) ListEntriesByFile(ctx context.Context, fileID int64) ([]*Entry, error) {
	return t.storage.listEntriesByFileWithQuerier(ctx, t.querier(), fileID)
}

func (t *sqliteTx) SearchEntries(ctx context.Context, query EntryQuery) ([]*Entry, error) {
	return t.storage.searchEntriesWithQuerier(ctx, t.querier(), query)
}

func (t *sqliteTx) SearchText(ctx context.Context, text string, limit int) ([]*Entry, error) {
	return t.storage.searchTextWithQuerier(ctx, t.querier(), text, limit)
}

func (t *sqliteTx) FileModTimes(ctx context.Context, root string) (map[string]time.Time, error) {
	return t.storage.fileModTimesWithQuerier(ctx, t.querier(), root)
}

func (t *sqliteTx) GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier(), projectID)
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions not supported")
}
