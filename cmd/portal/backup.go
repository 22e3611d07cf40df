package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/taxilian/portal/internal/db"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a database backup",
	Long: `Create a snapshot of the database under .portal/backups/.
Old snapshots beyond [backups] keep in config.toml are pruned.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, _, err := openDB()
		if err != nil {
			return err
		}
		defer func() { _ = database.Close() }()

		path, err := database.Backup()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %s\n", path)
		return nil
	},
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List available backups",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := db.DefaultPath()
		if err != nil {
			return err
		}
		backups, err := db.ListBackups(path)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(backups) == 0 {
			fmt.Fprintln(w, "No backups found")
			return nil
		}
		fmt.Fprintf(w, "%-44s  %10s  %s\n", "BACKUP", "SIZE", "CREATED")
		for _, b := range backups {
			fmt.Fprintf(w, "%-44s  %10s  %s\n", b.Name, formatSize(b.Size), b.ModTime.Format(time.DateTime))
		}
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <path>",
	Short: "Restore database from a backup",
	Long: `Replace the current database with a backup file.
A backup of the current database is created first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backupPath := args[0]
		if _, err := os.Stat(backupPath); err != nil {
			return fmt.Errorf("backup file not found: %w", err)
		}
		dbPath, err := db.DefaultPath()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		database, _, err := openDB()
		if err != nil {
			fmt.Fprintln(w, "Note: Could not backup current database (may not exist)")
		} else {
			// Keep one extra so pruning never removes the backup being restored
			database.KeepBackups++
			preRestorePath, err := database.Backup()
			_ = database.Close()
			if err != nil {
				fmt.Fprintf(w, "Warning: Could not backup current database: %v\n", err)
			} else {
				fmt.Fprintf(w, "Current database backed up to: %s\n", preRestorePath)
			}
		}

		if err := db.Restore(backupPath, dbPath); err != nil {
			return err
		}
		fmt.Fprintf(w, "Restored from: %s\n", backupPath)

		restored, err := db.Open(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open restored database: %w", err)
		}
		defer func() { _ = restored.Close() }()
		if err := restored.CheckIntegrity(); err != nil {
			return err
		}
		fmt.Fprintln(w, "Integrity check passed")
		return nil
	},
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(restoreCmd)
}
