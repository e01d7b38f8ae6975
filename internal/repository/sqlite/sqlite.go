// Package sqlite implements the repository interfaces on SQLite.
//
// modernc.org/sqlite is a pure-Go translation of SQLite — no CGo, so
// the binary cross-compiles cleanly and tests can run against an
// in-memory database with zero infrastructure.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	// Side-effect import: registers the "sqlite" driver with
	// database/sql.
	_ "modernc.org/sqlite"

	"github.com/gohost/backend/internal/apperror"
)

// DB wraps the sql.DB pool and implements the repository interfaces.
// One DB value is created at process start and closed at shutdown; it
// is the only long-lived shared resource in the process.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" for tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads during writes — required for a web
	// server workload.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	return db, nil
}

// Close closes the connection pool. Call on shutdown.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Users returns the user store view over the shared pool.
func (db *DB) Users() *UserDB { return &UserDB{conn: db.conn} }

// Workspaces returns the workspace store view over the shared pool.
func (db *DB) Workspaces() *WorkspaceDB { return &WorkspaceDB{conn: db.conn} }

// Projects returns the project store view over the shared pool.
func (db *DB) Projects() *ProjectDB { return &ProjectDB{conn: db.conn} }

// UserDB implements repository.UserRepository.
type UserDB struct {
	conn *sql.DB
}

// WorkspaceDB implements repository.WorkspaceRepository.
type WorkspaceDB struct {
	conn *sql.DB
}

// ProjectDB implements repository.ProjectRepository.
type ProjectDB struct {
	conn *sql.DB
}

func (db *DB) migrate() error {
	// Username and email carry UNIQUE constraints: handle generation is
	// check-then-create without a transaction, so these constraints are
	// the system's actual uniqueness guarantee. username is stored
	// lower-case by construction; COLLATE NOCASE makes lookups and the
	// constraint case-insensitive regardless.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                     TEXT PRIMARY KEY,
			name                   TEXT NOT NULL,
			username               TEXT NOT NULL UNIQUE COLLATE NOCASE,
			email                  TEXT NOT NULL UNIQUE,
			password_hash          TEXT NOT NULL,
			provider               TEXT NOT NULL DEFAULT 'local',
			provider_id            TEXT NOT NULL DEFAULT '',
			github_token_enc       TEXT NOT NULL DEFAULT '',
			verification_code_hash TEXT NOT NULL DEFAULT '',
			is_active              INTEGER NOT NULL DEFAULT 0,
			created_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS workspaces (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS user_workspaces (
			user_id      TEXT NOT NULL REFERENCES users(id),
			workspace_id TEXT NOT NULL REFERENCES workspaces(id),
			role         TEXT NOT NULL DEFAULT 'member',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, workspace_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating workspace tables: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS projects (
			id           TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL REFERENCES workspaces(id),
			user_id      TEXT NOT NULL REFERENCES users(id),
			name         TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			domain       TEXT NOT NULL UNIQUE COLLATE NOCASE,
			environments TEXT NOT NULL DEFAULT '[]',
			created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_projects_workspace ON projects(workspace_id);
		CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating projects table: %w", err)
	}

	return nil
}

// translateErr converts SQLite unique-constraint violations into the
// application's Conflict kind. This is how the check-then-create race
// in handle generation (and any concurrent duplicate signup) surfaces
// to callers instead of being swallowed. Other errors pass through for
// the caller to wrap.
func translateErr(err error, resource, id string) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return apperror.Conflict(resource, id)
	}
	return err
}
