package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS generations (
    id TEXT PRIMARY KEY,
    session_id TEXT,
    query TEXT NOT NULL,
    engine TEXT NOT NULL,
    style_preset TEXT,
    image_path TEXT,
    status TEXT NOT NULL,
    error_kind TEXT,
    error TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    removed INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_generations_created_at ON generations(created_at);
CREATE INDEX IF NOT EXISTS idx_generations_session_id ON generations(session_id);
CREATE INDEX IF NOT EXISTS idx_generations_image_path ON generations(image_path);
`

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Entry is one generation attempt.
type Entry struct {
	ID          string
	SessionID   string
	Query       string
	Engine      string
	StylePreset string
	ImagePath   string
	Status      Status
	ErrorKind   string
	Error       string
	Duration    time.Duration
	Removed     bool
	CreatedAt   time.Time
}

type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

type Store struct {
	db *sql.DB
}

func NewStore() (*Store, error) {
	dbPath, err := DefaultDBPath()
	if err != nil {
		return nil, err
	}
	return NewStoreWithPath(dbPath)
}

func NewStoreWithPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time, concurrent draws share the connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

func DefaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".stability-skill", "history.db"), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generations (id, session_id, query, engine, style_preset, image_path, status, error_kind, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, nullString(e.SessionID), e.Query, e.Engine, nullString(e.StylePreset), nullString(e.ImagePath),
		string(e.Status), nullString(e.ErrorKind), nullString(e.Error), e.Duration.Milliseconds(), e.CreatedAt)
	return err
}

func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, query, engine, style_preset, image_path, status, error_kind, error, duration_ms, removed, created_at
		 FROM generations WHERE id = ?`, id)
	return scanEntry(row)
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, query, engine, style_preset, image_path, status, error_kind, error, duration_ms, removed, created_at
		 FROM generations ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) ListBySession(ctx context.Context, sessionID string) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, query, engine, style_preset, image_path, status, error_kind, error, duration_ms, removed, created_at
		 FROM generations WHERE session_id = ? ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkRemoved flags every entry pointing at path once the file is pruned.
func (s *Store) MarkRemoved(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE generations SET removed = 1 WHERE image_path = ?`, path)
	return err
}

func (s *Store) Summary(ctx context.Context) (*Summary, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		 FROM generations`)

	var summary Summary
	if err := row.Scan(&summary.Total, &summary.Succeeded, &summary.Failed); err != nil {
		return nil, err
	}
	return &summary, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	e := &Entry{}
	var sessionID, style, imagePath, errKind, errMsg sql.NullString
	var status string
	var durationMs int64
	var removed int
	if err := row.Scan(&e.ID, &sessionID, &e.Query, &e.Engine, &style, &imagePath, &status,
		&errKind, &errMsg, &durationMs, &removed, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.SessionID = sessionID.String
	e.StylePreset = style.String
	e.ImagePath = imagePath.String
	e.Status = Status(status)
	e.ErrorKind = errKind.String
	e.Error = errMsg.String
	e.Duration = time.Duration(durationMs) * time.Millisecond
	e.Removed = removed != 0
	return e, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
