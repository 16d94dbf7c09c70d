package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anthropics/feishu-voice-summary/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// OpenSnapshotDB opens (and initializes) the sqlite database used by the
// sqlite snapshot backing. One row per concern, whole-value overwrite, the
// same semantics as the JSON files.
func OpenSnapshotDB(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			key TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshots table: %w", err)
	}

	return db, nil
}

// sqliteSnapshot stores one concern's state as a JSON blob in a sqlite row.
type sqliteSnapshot struct {
	db  *sql.DB
	key string
}

// NewSQLiteSnapshot creates a sqlite-backed snapshot store for one concern.
func NewSQLiteSnapshot(db *sql.DB, key string) repo.SnapshotStore {
	return &sqliteSnapshot{db: db, key: key}
}

func (s *sqliteSnapshot) Load(ctx context.Context, v any) (bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM snapshots WHERE key = ?`, s.key).Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load snapshot %s: %w", s.key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse snapshot %s: %w", s.key, err)
	}
	return true, nil
}

func (s *sqliteSnapshot) Save(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", s.key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, data, updated_at)
		VALUES (?, ?, unixepoch())
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, s.key, data)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", s.key, err)
	}
	return nil
}
