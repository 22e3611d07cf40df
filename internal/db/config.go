package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
	"github.com/taxilian/portal/internal/invite"
)

// Default record ids used by 'portal invite' when neither flags, env nor
// config name others.
const (
	DefaultProjectID int64 = 367316
	DefaultAccountID int64 = 1455
)

// Config holds per-project settings stored in .portal/config.toml.
type Config struct {
	DefaultProjectID int64         `toml:"default_project_id"`
	DefaultAccountID int64         `toml:"default_account_id"`
	Invites          InvitesConfig `toml:"invites"`
	Backups          BackupsConfig `toml:"backups"`
}

// InvitesConfig controls portal invite tokens.
type InvitesConfig struct {
	// TokenBytes is the random byte count behind each token. Default 16.
	TokenBytes int `toml:"token_bytes,omitempty"`
}

// BackupsConfig controls database snapshots.
type BackupsConfig struct {
	// Keep is how many snapshots are retained. Default MaxBackups.
	Keep int `toml:"keep,omitempty"`
}

// Env holds environment overrides. Non-zero values win over config.toml.
type Env struct {
	DBPath    string `env:"PORTAL_DB"`
	ProjectID int64  `env:"PORTAL_PROJECT_ID"`
	AccountID int64  `env:"PORTAL_ACCOUNT_ID"`
}

// LoadEnv reads PORTAL_* environment overrides.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

func applyDefaults(config *Config) {
	if config.DefaultProjectID == 0 {
		config.DefaultProjectID = DefaultProjectID
	}
	if config.DefaultAccountID == 0 {
		config.DefaultAccountID = DefaultAccountID
	}
	if config.Invites.TokenBytes == 0 {
		config.Invites.TokenBytes = invite.DefaultTokenBytes
	}
	if config.Backups.Keep <= 0 {
		config.Backups.Keep = MaxBackups
	}
}

func applyEnv(config *Config, e Env) {
	if e.ProjectID != 0 {
		config.DefaultProjectID = e.ProjectID
	}
	if e.AccountID != 0 {
		config.DefaultAccountID = e.AccountID
	}
}

// LoadConfig reads the project config from .portal/config.toml and applies
// environment overrides. If no config exists, defaults are returned.
func LoadConfig() (*Config, error) {
	dataDir, err := findDataDir()
	if err != nil {
		return nil, err
	}
	return loadConfigAt(dataDir)
}

// DefaultConfig returns the built-in defaults with environment overrides
// applied, for use when no data directory exists.
func DefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	e, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	applyEnv(config, e)
	return config, nil
}

func loadConfigAt(dataDir string) (*Config, error) {
	config := &Config{}
	data, err := os.ReadFile(filepath.Join(dataDir, ConfigFile))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	applyDefaults(config)

	e, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	applyEnv(config, e)
	return config, nil
}

func saveConfigAt(dataDir string, config *Config) error {
	applyDefaults(config)
	data, err := toml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, ConfigFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// SaveConfig writes the project config to .portal/config.toml.
func SaveConfig(config *Config) error {
	dataDir, err := findDataDir()
	if err != nil {
		return err
	}
	return saveConfigAt(dataDir, config)
}

// InitProject creates the .portal directory in the current directory and
// writes a config file unless one already exists. Zero ids keep the defaults.
// Returns the database path.
func InitProject(projectID, accountID int64) (string, error) {
	dataDir, err := dataDirFromCwd()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", DataDir, err)
	}

	configPath := filepath.Join(dataDir, ConfigFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := &Config{DefaultProjectID: projectID, DefaultAccountID: accountID}
		if err := saveConfigAt(dataDir, config); err != nil {
			return "", err
		}
	}

	return InitPath()
}
