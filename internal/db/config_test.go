package db

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/taxilian/portal/internal/invite"
)

// setupDataDir creates a project root with a .portal directory and
// switches into it.
func setupDataDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, DataDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		t.Fatalf("failed to create data dir: %v", err)
	}
	chdir(t, root)
	t.Setenv("PORTAL_PROJECT_ID", "")
	t.Setenv("PORTAL_ACCOUNT_ID", "")
	return dataDir
}

func TestLoadConfig_Defaults(t *testing.T) {
	setupDataDir(t)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.DefaultProjectID != DefaultProjectID {
		t.Errorf("DefaultProjectID = %d, want %d", config.DefaultProjectID, DefaultProjectID)
	}
	if config.DefaultAccountID != DefaultAccountID {
		t.Errorf("DefaultAccountID = %d, want %d", config.DefaultAccountID, DefaultAccountID)
	}
	if config.Invites.TokenBytes != invite.DefaultTokenBytes {
		t.Errorf("TokenBytes = %d, want %d", config.Invites.TokenBytes, invite.DefaultTokenBytes)
	}
	if config.Backups.Keep != MaxBackups {
		t.Errorf("Backups.Keep = %d, want %d", config.Backups.Keep, MaxBackups)
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	dataDir := setupDataDir(t)
	content := `default_project_id = 42
default_account_id = 7

[invites]
token_bytes = 24

[backups]
keep = 3
`
	if err := os.WriteFile(filepath.Join(dataDir, ConfigFile), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.DefaultProjectID != 42 || config.DefaultAccountID != 7 {
		t.Errorf("ids = %d/%d, want 42/7", config.DefaultProjectID, config.DefaultAccountID)
	}
	if config.Invites.TokenBytes != 24 {
		t.Errorf("TokenBytes = %d, want 24", config.Invites.TokenBytes)
	}
	if config.Backups.Keep != 3 {
		t.Errorf("Backups.Keep = %d, want 3", config.Backups.Keep)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dataDir := setupDataDir(t)
	if err := os.WriteFile(filepath.Join(dataDir, ConfigFile), []byte("default_project_id = 42\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("PORTAL_PROJECT_ID", "99")
	t.Setenv("PORTAL_ACCOUNT_ID", "100")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.DefaultProjectID != 99 || config.DefaultAccountID != 100 {
		t.Errorf("ids = %d/%d, want 99/100", config.DefaultProjectID, config.DefaultAccountID)
	}
}

func TestLoadConfig_BadEnv(t *testing.T) {
	setupDataDir(t)
	t.Setenv("PORTAL_PROJECT_ID", "not-a-number")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for non-numeric PORTAL_PROJECT_ID")
	}
}

func TestLoadConfig_Malformed(t *testing.T) {
	dataDir := setupDataDir(t)
	if err := os.WriteFile(filepath.Join(dataDir, ConfigFile), []byte("default_project_id = [oops"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "failed to parse config") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	setupDataDir(t)

	config := &Config{DefaultProjectID: 5, DefaultAccountID: 6}
	if err := SaveConfig(config); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.DefaultProjectID != 5 || loaded.DefaultAccountID != 6 {
		t.Errorf("ids = %d/%d, want 5/6", loaded.DefaultProjectID, loaded.DefaultAccountID)
	}
	if loaded.Invites.TokenBytes != invite.DefaultTokenBytes {
		t.Errorf("expected defaults to be written, got TokenBytes %d", loaded.Invites.TokenBytes)
	}
}

func TestInitProject(t *testing.T) {
	root := t.TempDir()
	chdir(t, root)
	t.Setenv("PORTAL_PROJECT_ID", "")
	t.Setenv("PORTAL_ACCOUNT_ID", "")

	path, err := InitProject(11, 0)
	if err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	if !strings.HasSuffix(path, filepath.Join(DataDir, DBFile)) {
		t.Errorf("path = %q", path)
	}

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.DefaultProjectID != 11 {
		t.Errorf("DefaultProjectID = %d, want 11", config.DefaultProjectID)
	}
	if config.DefaultAccountID != DefaultAccountID {
		t.Errorf("DefaultAccountID = %d, want default", config.DefaultAccountID)
	}

	// A second init keeps the existing config
	if _, err := InitProject(22, 0); err != nil {
		t.Fatalf("second InitProject: %v", err)
	}
	config, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.DefaultProjectID != 11 {
		t.Errorf("config was overwritten: DefaultProjectID = %d", config.DefaultProjectID)
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("PORTAL_PROJECT_ID", "")
	t.Setenv("PORTAL_ACCOUNT_ID", "31")

	config, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	if config.DefaultProjectID != DefaultProjectID {
		t.Errorf("DefaultProjectID = %d", config.DefaultProjectID)
	}
	if config.DefaultAccountID != 31 {
		t.Errorf("DefaultAccountID = %d, want 31", config.DefaultAccountID)
	}
}
