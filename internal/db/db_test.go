package db

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}

	if err := db.Init(); err != nil {
		t.Fatalf("failed to init db: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

// chdir switches into dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := os.Stat(filepath.Dir(path)); os.IsNotExist(err) {
		t.Error("expected directory to be created")
	}
	if db.Path != path {
		t.Errorf("Path = %q, want %q", db.Path, path)
	}
	if db.KeepBackups != MaxBackups {
		t.Errorf("KeepBackups = %d, want %d", db.KeepBackups, MaxBackups)
	}
}

func TestOpen_ForeignKeysEnabled(t *testing.T) {
	db := setupTestDB(t)

	var on int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&on); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if on != 1 {
		t.Errorf("foreign_keys = %d, want 1", on)
	}
}

func TestInit_SetsSchemaVersion(t *testing.T) {
	db := setupTestDB(t)

	version, err := db.SchemaVersionInUse()
	if err != nil {
		t.Fatalf("SchemaVersionInUse: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("version = %d, want %d", version, SchemaVersion)
	}

	for _, table := range []string{"projects", "client_accounts", "client_contacts", "client_contacts_projects", "portal_invites"} {
		exists, err := db.tableExists(table)
		if err != nil {
			t.Fatalf("tableExists(%s): %v", table, err)
		}
		if !exists {
			t.Errorf("expected table %s", table)
		}
	}
}

func TestInit_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Init(); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	if err := db.CheckIntegrity(); err != nil {
		t.Errorf("CheckIntegrity: %v", err)
	}
}

func TestMigrate_FromV1CreatesBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(baseSchema); err != nil {
		t.Fatalf("base schema: %v", err)
	}
	if err := db.setSchemaVersion(1); err != nil {
		t.Fatalf("setSchemaVersion: %v", err)
	}

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	exists, err := db.tableExists("portal_invites")
	if err != nil || !exists {
		t.Errorf("expected portal_invites after migration (err %v)", err)
	}
	backups, err := ListBackups(path)
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(backups) != 1 {
		t.Errorf("expected 1 pre-migration backup, got %d", len(backups))
	}
}

func TestMigrate_EmptyDatabase(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	err = db.Migrate()
	if err == nil || !strings.Contains(err.Error(), "portal init") {
		t.Errorf("expected hint to run init, got %v", err)
	}
}

func TestDefaultPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, DataDir), 0755); err != nil {
		t.Fatalf("failed to create data dir: %v", err)
	}
	nested := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("failed to create nested dir: %v", err)
	}
	chdir(t, nested)
	t.Setenv("PORTAL_DB", "")

	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("failed to get default path: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Errorf("expected absolute path, got %q", path)
	}
	if !strings.HasSuffix(path, filepath.Join(DataDir, DBFile)) {
		t.Errorf("expected path to end with %s/%s, got %q", DataDir, DBFile, path)
	}
}

func TestDefaultPath_EnvVar(t *testing.T) {
	customPath := "/custom/path/to/db.db"
	t.Setenv("PORTAL_DB", customPath)

	path, err := DefaultPath()
	if err != nil {
		t.Fatalf("failed to get default path: %v", err)
	}
	if path != customPath {
		t.Errorf("expected path %q, got %q", customPath, path)
	}
}

func TestDefaultPath_NotFound(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORTAL_DB", "")

	if _, err := DefaultPath(); err == nil {
		t.Fatal("expected error when .portal not found")
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"database is locked", true},
		{"SQLITE_BUSY: cannot commit", true},
		{"SQLITE_LOCKED", true},
		{"no such table: foo", false},
	}
	for _, tt := range tests {
		if got := isRetryableError(errString(tt.msg)); got != tt.want {
			t.Errorf("isRetryableError(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
	if isRetryableError(nil) {
		t.Error("nil should not be retryable")
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := withRetryNoResult(func() error {
		calls++
		return errString("constraint failed")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
