package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"indibot/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS notified (
	event_id TEXT NOT NULL,
	bot_id   TEXT NOT NULL,
	PRIMARY KEY (event_id, bot_id)
);`

// sqliteStore round-trips every operation to a local SQLite database.
type sqliteStore struct {
	log logx.Logger
	db  *sql.DB
}

func newSQLiteStore(path string, log logx.Logger) (*sqliteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite storage path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	return &sqliteStore{log: log, db: db}, nil
}

// Load ensures the schema exists; the database itself is the live state.
func (s *sqliteStore) Load(ctx context.Context) error {
	if s.db == nil {
		return ErrClosed
	}
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("sqlite schema: %w", err)
	}
	return nil
}

// Save is a no-op: every Add already hit the database.
func (s *sqliteStore) Save(ctx context.Context) error { return nil }

func (s *sqliteStore) Has(ctx context.Context, eventID, botID string) (bool, error) {
	if s.db == nil {
		return false, ErrClosed
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM notified WHERE event_id = ? AND bot_id = ?`,
		eventID, botID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite has: %w", err)
	}
	return true, nil
}

func (s *sqliteStore) Add(ctx context.Context, eventID, botID string) error {
	if s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO notified(event_id, bot_id) VALUES(?, ?)`,
		eventID, botID,
	)
	if err != nil {
		return fmt.Errorf("sqlite add: %w", err)
	}
	return nil
}

func (s *sqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	return db.Close()
}
