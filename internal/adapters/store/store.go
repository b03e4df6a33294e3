// Package store persists users, sessions, messages, documents, settings,
// activity, and metrics in a single SQLite database. It implements the
// record-store ports consumed by the domain layer.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Store is the SQLite-backed record store. One Store serves all record
// collections; per-session write serialization is handled internally.
type Store struct {
	db *sql.DB

	// appendMu serializes AppendPair so message timestamps within a session
	// stay strictly increasing even under a coarse wall clock.
	appendMu sync.Mutex
}

// Open creates (or opens) the database under dataDir and applies the schema.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "records.db")
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		admin INTEGER NOT NULL DEFAULT 0,
		must_reset INTEGER NOT NULL DEFAULT 0,
		reset_token TEXT NOT NULL DEFAULT '',
		reset_token_at INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		last_login_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		last_activity INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_activity ON sessions(last_activity);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, timestamp);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		uploader_id TEXT NOT NULL,
		uploader_username TEXT NOT NULL,
		uploaded_at INTEGER NOT NULL,
		file_type TEXT NOT NULL,
		chunk_count INTEGER NOT NULL,
		size_bytes INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_uploader ON documents(uploader_id);

	CREATE TABLE IF NOT EXISTS system_config (
		setting_name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		default_value TEXT NOT NULL,
		data_type TEXT NOT NULL,
		min_value REAL,
		max_value REAL,
		category TEXT NOT NULL,
		description TEXT NOT NULL,
		updated_at INTEGER,
		updated_by TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS activity_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		admin_id TEXT NOT NULL,
		admin_username TEXT NOT NULL,
		action_type TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		details TEXT NOT NULL DEFAULT '{}',
		ip_address TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL,
		result TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activity_admin ON activity_logs(admin_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_activity_action ON activity_logs(action_type);

	CREATE TABLE IF NOT EXISTS api_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		endpoint TEXT NOT NULL,
		method TEXT NOT NULL,
		status INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		error_msg TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_metrics_time ON api_metrics(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }
