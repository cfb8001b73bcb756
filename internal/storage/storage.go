// Package storage provides persistent storage using SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides persistent storage for the escrowd daemon.
type Storage struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// Config holds storage configuration.
type Config struct {
	DataDir string
}

// New creates a new Storage instance.
func New(cfg *Config) (*Storage, error) {
	dataDir := expandPath(cfg.DataDir)

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "escrowd.db")

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Storage{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Storage) DB() *sql.DB {
	return s.db
}

// initSchema creates all database tables.
func (s *Storage) initSchema() error {
	schema := `
	-- HTLC registry. Records are never deleted; resolved rows stay as an
	-- audit trail. Ids are dense from 1, allocated by the counter setting.
	CREATE TABLE IF NOT EXISTS htlcs (
		id INTEGER PRIMARY KEY,
		sender TEXT NOT NULL,
		recipient TEXT NOT NULL,
		amount INTEGER NOT NULL,
		hash_lock BLOB NOT NULL,
		timelock INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at INTEGER NOT NULL,
		resolved_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_htlcs_status ON htlcs(status);
	CREATE INDEX IF NOT EXISTS idx_htlcs_sender ON htlcs(sender);
	CREATE INDEX IF NOT EXISTS idx_htlcs_recipient ON htlcs(recipient);
	CREATE INDEX IF NOT EXISTS idx_htlcs_timelock ON htlcs(timelock);

	-- Claim ledger. At most one row per HTLC, written only on a
	-- successful claim, never updated afterwards.
	CREATE TABLE IF NOT EXISTS claims (
		htlc_id INTEGER PRIMARY KEY,
		claimer TEXT NOT NULL,
		preimage BLOB NOT NULL,
		claimed_at INTEGER NOT NULL,

		FOREIGN KEY (htlc_id) REFERENCES htlcs(id)
	);

	-- Account ledger. The escrow custodian account lives here next to
	-- user accounts.
	CREATE TABLE IF NOT EXISTS accounts (
		name TEXT PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER
	);

	-- Settings/config table (htlc counter, gate flag, genesis time).
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at INTEGER
	);

	-- Append-only event log.
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		htlc_id INTEGER,
		payload TEXT NOT NULL,
		emitted_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
	CREATE INDEX IF NOT EXISTS idx_events_htlc ON events(htlc_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// isUniqueConstraintError reports whether err is a SQLite unique
// constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
