package state

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"pravachan-index/models"
)

// SQLiteStore is the single-node fallback Store backing, for deployments
// without a Mongo cluster: a pure-Go embedded KV file under cfg.StateDir.
// Same single-writer/many-reader discipline as MongoStore, enforced with
// an in-process mutex since SQLite itself serializes writers per file
// but Go's driver doesn't expose that as a single shared handle.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite state store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	const schema = `
CREATE TABLE IF NOT EXISTS file_states (
	path            TEXT PRIMARY KEY,
	pdf_sha256      TEXT NOT NULL,
	config_hash     TEXT NOT NULL,
	bookmarks_hash  TEXT NOT NULL,
	last_indexed_at INTEGER NOT NULL,
	status          TEXT NOT NULL,
	mtime           INTEGER NOT NULL,
	size            INTEGER NOT NULL,
	failure_count   INTEGER NOT NULL,
	last_error      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_file_states_status ON file_states(status);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite state store: schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, path string) (*models.FileState, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT path, pdf_sha256, config_hash, bookmarks_hash, last_indexed_at, status, mtime, size, failure_count, last_error
FROM file_states WHERE path = ?`, path)

	fs, err := scanFileState(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite state get %s: %w", path, err)
	}
	return fs, nil
}

// Upsert serializes writers with a mutex, then an atomic single-statement
// REPLACE INTO, so a row is always either fully old or fully new to any
// concurrent reader.
func (s *SQLiteStore) Upsert(ctx context.Context, fs models.FileState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
REPLACE INTO file_states
	(path, pdf_sha256, config_hash, bookmarks_hash, last_indexed_at, status, mtime, size, failure_count, last_error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fs.Path, fs.PDFSha256, fs.ConfigHash, fs.BookmarksHash,
		fs.LastIndexedAt.UTC().Unix(), string(fs.Status), fs.MTime, fs.Size, fs.FailureCount, fs.LastError)
	if err != nil {
		return fmt.Errorf("sqlite state upsert %s: %w", fs.Path, err)
	}
	return nil
}

func (s *SQLiteStore) All(ctx context.Context) ([]models.FileState, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT path, pdf_sha256, config_hash, bookmarks_hash, last_indexed_at, status, mtime, size, failure_count, last_error
FROM file_states`)
	if err != nil {
		return nil, fmt.Errorf("sqlite state all: %w", err)
	}
	defer rows.Close()

	var out []models.FileState
	for rows.Next() {
		fs, err := scanFileState(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite state all: scan: %w", err)
		}
		out = append(out, *fs)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM file_states WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("sqlite state delete %s: %w", path, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFileState(row rowScanner) (*models.FileState, error) {
	var fs models.FileState
	var status string
	var lastIndexedUnix int64
	if err := row.Scan(
		&fs.Path, &fs.PDFSha256, &fs.ConfigHash, &fs.BookmarksHash,
		&lastIndexedUnix, &status, &fs.MTime, &fs.Size, &fs.FailureCount, &fs.LastError,
	); err != nil {
		return nil, err
	}
	fs.Status = models.FileStateStatus(status)
	fs.LastIndexedAt = time.Unix(lastIndexedUnix, 0).UTC()
	return &fs, nil
}
