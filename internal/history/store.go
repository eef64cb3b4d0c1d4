// Package history keeps a local log of messages and files sent through
// the CLI. The client library itself stays stateless; this store is a
// convenience for `mattersend history`.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry kinds.
const (
	KindMessage = "message"
	KindUpload  = "upload"
)

const previewLen = 120

// Store is a SQLite-backed send log.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Entry is one recorded send or upload.
type Entry struct {
	ID        int64
	Kind      string // KindMessage or KindUpload
	RemoteID  string // post ID or file ID assigned by the server
	ChannelID string
	Preview   string // truncated message text or filename
	FileCount int
	CreatedAt time.Time
}

func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sends (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		kind        TEXT NOT NULL,
		remote_id   TEXT NOT NULL,
		channel_id  TEXT,
		preview     TEXT,
		file_count  INTEGER DEFAULT 0,
		created_at  DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sends_time ON sends(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RecordMessage logs a sent message.
func (s *Store) RecordMessage(ctx context.Context, postID, channelID, text string, fileCount int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sends (kind, remote_id, channel_id, preview, file_count, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		KindMessage, postID, channelID, truncate(text, previewLen), fileCount, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("record message: %w", err)
	}
	return nil
}

// RecordUpload logs a standalone file upload.
func (s *Store) RecordUpload(ctx context.Context, fileID, channelID, filename string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sends (kind, remote_id, channel_id, preview, file_count, created_at) VALUES (?, ?, ?, ?, 1, ?)`,
		KindUpload, fileID, channelID, truncate(filename, previewLen), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, remote_id, channel_id, preview, file_count, created_at
		 FROM sends ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Kind, &e.RemoteID, &e.ChannelID, &e.Preview, &e.FileCount, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than retentionDays and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	res, err := s.db.ExecContext(ctx, `DELETE FROM sends WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("history pruned", "removed", n, "retention_days", retentionDays)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
