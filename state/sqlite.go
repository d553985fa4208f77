package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a durable Store backed by modernc.org/sqlite (pure Go, no
// CGO). Conversations are stored whole as JSON, one row per session, so
// every turn's persist stays all-or-nothing.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at path and ensures
// the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite supports one concurrent writer. A single connection serializes
	// access through Go's pool and avoids "database is locked" errors.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	const schema = `CREATE TABLE IF NOT EXISTS conversations (
		session_id TEXT PRIMARY KEY,
		state      TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*Conversation, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT state FROM conversations WHERE session_id = ?", sessionID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", sessionID, err)
	}
	conv := &Conversation{}
	if err := sonic.UnmarshalString(raw, conv); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", sessionID, err)
	}
	return conv, nil
}

func (s *SQLiteStore) Set(ctx context.Context, sessionID string, conv *Conversation) error {
	raw, err := sonic.MarshalString(conv)
	if err != nil {
		return fmt.Errorf("encode conversation %s: %w", sessionID, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO conversations (session_id, state, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(session_id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at`,
		sessionID, raw)
	if err != nil {
		return fmt.Errorf("store conversation %s: %w", sessionID, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
