// Package db provides SQLite storage for projects, client accounts,
// client contacts and the links between contacts and projects.
//
// The database is stored under .portal/ in the project root.
// Use Open() to connect and Init() to create the schema.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// MaxRetries is the maximum number of retries for transient database errors.
const MaxRetries = 5

// RetryBaseDelay is the base delay for exponential backoff.
const RetryBaseDelay = 50 * time.Millisecond

// sqlTime formats a time.Time as a SQLite-compatible UTC string so that
// stored timestamps compare correctly with SQLite's datetime functions.
func sqlTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// SchemaVersion is the current schema version.
// Increment this when adding new migrations.
const SchemaVersion = 2

// baseSchema is the version 1 schema.
// New tables should be added via migrations, not here.
const baseSchema = `
CREATE TABLE IF NOT EXISTS projects (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS client_accounts (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS client_contacts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id INTEGER NOT NULL REFERENCES client_accounts(id),
	name TEXT NOT NULL,
	emails TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS client_contacts_projects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id),
	client_contact_id INTEGER NOT NULL REFERENCES client_contacts(id),
	main BOOLEAN NOT NULL DEFAULT 0,
	role TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_client_contacts_account ON client_contacts(account_id);
CREATE INDEX IF NOT EXISTS idx_ccp_project ON client_contacts_projects(project_id);
CREATE INDEX IF NOT EXISTS idx_ccp_contact ON client_contacts_projects(client_contact_id);
`

// migrations defines incremental schema changes.
// Index 0 upgrades to version 2, index 1 to version 3, etc.
var migrations = []string{
	// Version 2: portal invite tokens
	`
CREATE TABLE IF NOT EXISTS portal_invites (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	client_contact_id INTEGER NOT NULL REFERENCES client_contacts(id),
	token_hash TEXT NOT NULL,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	accepted_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_portal_invites_contact ON portal_invites(client_contact_id);
`,
}

// DB wraps a SQL database connection with record operations.
type DB struct {
	*sql.DB

	// Path is the database file location.
	Path string
	// KeepBackups is how many snapshots Backup retains.
	KeepBackups int
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// ExecRetry executes a statement with retry logic for transient errors.
func (db *DB) ExecRetry(query string, args ...any) (sql.Result, error) {
	return withRetry(func() (sql.Result, error) {
		return db.Exec(query, args...)
	})
}

// QueryRetry executes a query with retry logic for transient errors.
func (db *DB) QueryRetry(query string, args ...any) (*sql.Rows, error) {
	return withRetry(func() (*sql.Rows, error) {
		return db.Query(query, args...)
	})
}

// Open opens or creates the database at the given path
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	var sqlDB *sql.DB
	var err error

	// busy_timeout and foreign_keys are per-connection settings, so they
	// go in the DSN where every pooled connection picks them up.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	err = withRetryNoResult(func() error {
		sqlDB, err = sql.Open("sqlite", dsn)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}

		if err := sqlDB.Ping(); err != nil {
			_ = sqlDB.Close()
			return fmt.Errorf("failed to connect: %w", err)
		}

		// WAL allows concurrent readers during writes
		if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = sqlDB.Close()
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &DB{DB: sqlDB, Path: path, KeepBackups: MaxBackups}, nil
}

// isRetryableError checks if an error is a transient SQLite error that can be retried.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLITE_BUSY (5), SQLITE_LOCKED (6)
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "SQLITE_LOCKED")
}

// withRetry executes a function with exponential backoff retry on transient errors.
func withRetry[T any](fn func() (T, error)) (T, error) {
	var result T
	var err error
	delay := RetryBaseDelay

	for attempt := 0; attempt < MaxRetries; attempt++ {
		result, err = fn()
		if err == nil || !isRetryableError(err) {
			return result, err
		}

		time.Sleep(delay)
		delay *= 2
		if delay > 2*time.Second {
			delay = 2 * time.Second
		}
	}

	return result, fmt.Errorf("failed after %d retries: %w", MaxRetries, err)
}

// withRetryNoResult executes a function with retry that returns only an error.
func withRetryNoResult(fn func() error) error {
	_, err := withRetry(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Init creates the schema for a fresh database and applies all migrations.
// Safe to run against an existing database.
func (db *DB) Init() error {
	if _, err := db.Exec(baseSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Migrate runs any pending schema migrations.
// Safe to call on every startup - only runs migrations newer than current version.
// Existing databases are backed up before any migration runs.
func (db *DB) Migrate() error {
	currentVersion, err := db.getSchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion == 0 {
		exists, err := db.tableExists("client_contacts")
		if err != nil {
			return fmt.Errorf("failed to check tables: %w", err)
		}
		if !exists {
			return fmt.Errorf("database has no schema (run 'portal init' first)")
		}
		currentVersion = 1
		if err := db.setSchemaVersion(1); err != nil {
			return fmt.Errorf("failed to set base version: %w", err)
		}
	} else if currentVersion < SchemaVersion {
		backupPath, err := db.Backup()
		if err != nil {
			return fmt.Errorf("failed to create pre-migration backup: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Created pre-migration backup: %s\n", backupPath)
	}

	for i, migration := range migrations {
		targetVersion := i + 2 // migrations[0] upgrades to v2
		if currentVersion >= targetVersion {
			continue
		}
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration to v%d failed: %w", targetVersion, err)
		}
		if err := db.setSchemaVersion(targetVersion); err != nil {
			return fmt.Errorf("failed to update version to %d: %w", targetVersion, err)
		}
		currentVersion = targetVersion
	}

	return nil
}

// SchemaVersionInUse reports the schema version recorded in the database.
func (db *DB) SchemaVersionInUse() (int, error) {
	return db.getSchemaVersion()
}

// CheckIntegrity runs PRAGMA integrity_check on the database.
func (db *DB) CheckIntegrity() error {
	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database integrity check failed: %s", result)
	}
	return nil
}

// getSchemaVersion returns the current schema version using PRAGMA user_version.
func (db *DB) getSchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("PRAGMA user_version").Scan(&version)
	return version, err
}

// setSchemaVersion sets the schema version using PRAGMA user_version.
func (db *DB) setSchemaVersion(version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version))
	return err
}

// tableExists checks if a table exists in the database.
func (db *DB) tableExists(name string) (bool, error) {
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
		name,
	).Scan(&count)
	return count > 0, err
}
