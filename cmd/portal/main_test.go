package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/taxilian/portal/internal/db"
	"github.com/taxilian/portal/internal/model"
	"github.com/taxilian/portal/internal/provision"
)

// setupTestDB creates an initialized database seeded with the default
// project and account.
func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")

	database, err := db.Open(path)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := database.Init(); err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	if err := database.CreateProject(&model.Project{ID: 367316, Name: "Site rebuild"}); err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	if err := database.CreateAccount(&model.Account{ID: 1455, Name: "Acme"}); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	return database
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain error", errors.New("boom"), 1},
		{"not found", &exitError{code: 3, err: db.ErrNotFound}, 3},
		{"wrapped exit error", fmt.Errorf("outer: %w", &exitError{code: 4, err: errors.New("bad")}), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitError_Unwrap(t *testing.T) {
	err := &exitError{code: 3, err: fmt.Errorf("project 1: %w", db.ErrNotFound)}
	if !errors.Is(err, db.ErrNotFound) {
		t.Error("exitError should unwrap to ErrNotFound")
	}
	if err.Error() != "project 1: not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID("367316", "project"); err != nil || id != 367316 {
		t.Errorf("parseID = %d, %v", id, err)
	}
	for _, bad := range []string{"", "abc", "0", "-5"} {
		if _, err := parseID(bad, "project"); err == nil {
			t.Errorf("parseID(%q) should fail", bad)
		}
	}
}

func TestShowProject(t *testing.T) {
	database := setupTestDB(t)
	if _, err := provision.RunInTx(database, provision.Request{
		ProjectID: 367316, AccountID: 1455, Name: "Jane Doe", Email: "jane@example.com",
	}); err != nil {
		t.Fatalf("provision: %v", err)
	}

	var buf bytes.Buffer
	if err := showProject(&buf, database, 367316); err != nil {
		t.Fatalf("showProject: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Project 367316: Site rebuild", "Jane Doe", "main"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	err := showProject(&buf, database, 1)
	if !errors.Is(err, db.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPrintContactsTable(t *testing.T) {
	var buf bytes.Buffer
	printContactsTable(&buf, nil)
	if !strings.Contains(buf.String(), "No contacts") {
		t.Errorf("expected empty message, got %q", buf.String())
	}

	buf.Reset()
	printContactsTable(&buf, []model.Contact{{ID: 7, AccountID: 1455, Name: "Jane Doe", Emails: []string{"jane@example.com"}}})
	out := buf.String()
	if !strings.Contains(out, "jane@example.com") || !strings.Contains(out, "1455") {
		t.Errorf("unexpected table:\n%s", out)
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.in); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestRootCommand_Invite drives the invite command end to end with
// PORTAL_DB pointing at a seeded database.
func TestRootCommand_Invite(t *testing.T) {
	database := setupTestDB(t)
	chdir(t, t.TempDir())
	t.Setenv("PORTAL_DB", database.Path)

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"invite", "Jane Doe", "jane@example.com"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if !strings.Contains(stdout.String(), `"Jane Doe" <jane@example.com> on account 1455`) {
		t.Errorf("unexpected output:\n%s", stdout.String())
	}

	contacts, err := database.ListContacts(db.ContactFilter{ProjectID: 367316})
	if err != nil {
		t.Fatalf("ListContacts: %v", err)
	}
	if len(contacts) != 1 {
		t.Fatalf("expected 1 linked contact, got %d", len(contacts))
	}
}

func TestRootCommand_InviteMissingAccount(t *testing.T) {
	database := setupTestDB(t)
	chdir(t, t.TempDir())
	t.Setenv("PORTAL_DB", database.Path)
	t.Setenv("PORTAL_ACCOUNT_ID", "99")

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"invite", "Jane Doe", "jane@example.com"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing account")
	}
	if got := exitCode(err); got != provision.ExitNotFound {
		t.Errorf("exit code = %d, want %d", got, provision.ExitNotFound)
	}
	n, _ := database.CountContacts()
	if n != 0 {
		t.Errorf("expected no contacts, got %d", n)
	}
}

func TestOpenDB_ReturnsConfig(t *testing.T) {
	database := setupTestDB(t)
	chdir(t, t.TempDir())
	t.Setenv("PORTAL_DB", database.Path)
	t.Setenv("PORTAL_PROJECT_ID", "12")

	opened, config, err := openDB()
	if err != nil {
		t.Fatalf("openDB: %v", err)
	}
	defer func() { _ = opened.Close() }()
	if config.DefaultProjectID != 12 || config.DefaultAccountID != 1455 {
		t.Errorf("config ids = %d/%d, want 12/1455", config.DefaultProjectID, config.DefaultAccountID)
	}
	if opened.KeepBackups != config.Backups.Keep {
		t.Errorf("KeepBackups = %d, want %d", opened.KeepBackups, config.Backups.Keep)
	}
}

func TestOpenDB_FailuresExitWithStorageCode(t *testing.T) {
	t.Run("no data directory", func(t *testing.T) {
		chdir(t, t.TempDir())
		t.Setenv("PORTAL_DB", "")

		_, _, err := openDB()
		if err == nil {
			t.Fatal("expected error without .portal")
		}
		if got := exitCode(err); got != provision.ExitStorage {
			t.Errorf("exit code = %d, want %d", got, provision.ExitStorage)
		}
	})

	t.Run("not a database", func(t *testing.T) {
		dir := t.TempDir()
		chdir(t, dir)
		path := filepath.Join(dir, "garbage.db")
		// Longer than one page so SQLite reads the header instead of treating it as empty
		garbage := bytes.Repeat([]byte("not a database "), 600)
		if err := os.WriteFile(path, garbage, 0644); err != nil {
			t.Fatal(err)
		}
		t.Setenv("PORTAL_DB", path)

		_, _, err := openDB()
		if err == nil {
			t.Fatal("expected error for a non-database file")
		}
		if got := exitCode(err); got != provision.ExitStorage {
			t.Errorf("exit code = %d, want %d", got, provision.ExitStorage)
		}
	})
}

func TestRootCommand_InviteWithoutDatabase(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PORTAL_DB", "")

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"invite", "Jane Doe", "jane@example.com"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	if got := exitCode(err); got != provision.ExitStorage {
		t.Errorf("exit code = %d, want %d (err: %v)", got, provision.ExitStorage, err)
	}
}
