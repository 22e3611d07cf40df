package main

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/taxilian/portal/internal/db"
	"github.com/taxilian/portal/internal/provision"
	"github.com/taxilian/portal/internal/tui"
)

// version is set via ldflags at build time, or read from module info
var version = "dev"

func init() {
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
	// rootCmd was initialized before this runs
	rootCmd.Version = version
}

var (
	flagVerbose       bool
	flagInitProjectID int64
	flagInitAccountID int64
	flagBrowseProject int64
)

// verbosef writes a diagnostic line to stderr when --verbose is set.
func verbosef(format string, args ...any) {
	if flagVerbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// loadConfig reads .portal/config.toml. With PORTAL_DB set and no data
// directory, built-in defaults are used instead.
func loadConfig() (*db.Config, error) {
	config, err := db.LoadConfig()
	if err == nil {
		return config, nil
	}
	if os.Getenv("PORTAL_DB") != "" {
		return db.DefaultConfig()
	}
	return nil, err
}

// openDB opens and migrates the project database and loads its config.
// Failures to reach the database exit with the storage code.
func openDB() (*db.DB, *db.Config, error) {
	path, err := db.DefaultPath()
	if err != nil {
		return nil, nil, storageError(err)
	}
	config, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	database, err := db.Open(path)
	if err != nil {
		return nil, nil, storageError(fmt.Errorf("%w (try running 'portal init' first)", err))
	}
	if err := database.Migrate(); err != nil {
		_ = database.Close()
		return nil, nil, storageError(fmt.Errorf("migration failed: %w", err))
	}
	database.KeepBackups = config.Backups.Keep
	if flagVerbose {
		schema, err := database.SchemaVersionInUse()
		if err == nil {
			verbosef("using database %s (schema v%d)", path, schema)
		}
	}
	return database, config, nil
}

func storageError(err error) error {
	return &exitError{code: provision.ExitStorage, err: err}
}

// exitError carries a process exit code alongside an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// exitCode returns the code main should exit with for err.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

var rootCmd = &cobra.Command{
	Use:     "portal",
	Short:   "Provision client contacts and link them to projects",
	Version: version,
	Long: `A CLI for creating client contacts under an account and linking
them to a project as the project's main contact.

Database: .portal/portal.db (in project root, override with PORTAL_DB)

Quick start:
  portal init
  portal project add 367316 "Site rebuild"
  portal account add 1455 "Acme"
  portal invite "Jane Doe" jane@example.com

Use 'portal [command] --help' for detailed help on any command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the portal database",
	Long: `Creates the .portal directory in the current directory, writes
config.toml with the default project and account ids, and initializes the
database. An existing config is left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := db.InitProject(flagInitProjectID, flagInitAccountID)
		if err != nil {
			return err
		}
		database, err := db.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		if err := database.Init(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized portal database at %s\n", path)
		return nil
	},
}

var browseCmd = &cobra.Command{
	Use:     "browse",
	Aliases: []string{"ui"},
	Short:   "Browse contacts in a terminal UI",
	Long: `Launch a read-only terminal browser of client contacts.

Examples:
  portal browse                 # every contact
  portal browse --project 367316`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, _, err := openDB()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()
		return tui.Run(database, flagBrowseProject)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Print diagnostics to stderr")

	initCmd.Flags().Int64Var(&flagInitProjectID, "project", 0, "Default project id written to config")
	initCmd.Flags().Int64Var(&flagInitAccountID, "account", 0, "Default account id written to config")
	browseCmd.Flags().Int64Var(&flagBrowseProject, "project", 0, "Only show contacts linked to this project")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(browseCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
