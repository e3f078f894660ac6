// Package journal records controller state transitions into SQLite
// through the public subscription hub, and answers queries over the
// recorded history.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

// NewDatabase opens (creating if needed) the journal database at path
// and applies pragmas and schema.
func NewDatabase(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA user_version = 1",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return db, nil
}

// ensureSchema creates the journal schema if it does not exist.
func ensureSchema(db *sql.DB) error {
	schema := `
-- One row per recorded playback session (a controller's lifetime on
-- one prepared voice).
CREATE TABLE IF NOT EXISTS sessions (
    id         INTEGER PRIMARY KEY,
    started_at INTEGER NOT NULL,
    handle     INTEGER NOT NULL,
    locator    TEXT    NOT NULL,
    backend    TEXT    NOT NULL DEFAULT ''
);

-- Ordered state transitions within a session.
CREATE TABLE IF NOT EXISTS transitions (
    id          INTEGER PRIMARY KEY,
    session_id  INTEGER NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    seq         INTEGER NOT NULL CHECK (seq > 0),
    timestamp   INTEGER NOT NULL,
    state       TEXT    NOT NULL,
    position_ms INTEGER NOT NULL CHECK (position_ms >= 0),
    ended       INTEGER NOT NULL CHECK (ended IN (0,1)),
    error       TEXT,
    UNIQUE(session_id, seq)
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_transitions_timestamp ON transitions(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_transitions_state ON transitions(state);
CREATE INDEX IF NOT EXISTS idx_transitions_session ON transitions(session_id);
CREATE INDEX IF NOT EXISTS idx_transitions_errors ON transitions(error) WHERE error IS NOT NULL;
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// DefaultPath returns the XDG cache path for the journal database.
func DefaultPath() (string, error) {
	dir := filepath.Join(xdg.CacheHome, "cueplay")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create journal directory: %w", err)
	}
	return filepath.Join(dir, "journal.db"), nil
}
