package db

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// MaxBackups is the default number of backups to keep
	MaxBackups = 10
	// BackupDir is the subdirectory for backups within the data directory
	BackupDir = "backups"

	backupPrefix = "portal-"
)

// BackupDirFor returns the backups directory next to a database file.
func BackupDirFor(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), BackupDir)
}

// Backup creates a snapshot of the database and prunes old ones.
// Returns the path to the backup file.
func (db *DB) Backup() (string, error) {
	backupDir := BackupDirFor(db.Path)
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	// Millisecond timestamp plus random suffix avoids collisions
	timestamp := time.Now().Format("2006-01-02T15-04-05.000")
	randomBytes := make([]byte, 4)
	_, _ = rand.Read(randomBytes)
	backupFile := filepath.Join(backupDir, fmt.Sprintf("%s%s-%s.db", backupPrefix, timestamp, hex.EncodeToString(randomBytes)))

	// VACUUM INTO gives a consistent snapshot
	if _, err := db.Exec("VACUUM INTO ?", backupFile); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}

	keep := db.KeepBackups
	if keep <= 0 {
		keep = MaxBackups
	}
	if err := pruneBackups(backupDir, keep); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to prune old backups: %v\n", err)
	}

	return backupFile, nil
}

// BackupInfo contains information about a backup file
type BackupInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// ListBackups returns the backups for a database, newest first.
func ListBackups(dbPath string) ([]BackupInfo, error) {
	backupDir := BackupDirFor(dbPath)
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if !isBackupFile(entry) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Path:    filepath.Join(backupDir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].ModTime.After(backups[j].ModTime)
	})
	return backups, nil
}

func isBackupFile(entry os.DirEntry) bool {
	name := entry.Name()
	return !entry.IsDir() && strings.HasPrefix(name, backupPrefix) && strings.HasSuffix(name, ".db")
}

// pruneBackups removes old backups, keeping only the newest 'keep' backups.
func pruneBackups(backupDir string, keep int) error {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return err
	}

	type backupFile struct {
		name    string
		modTime time.Time
	}
	var backups []backupFile
	for _, entry := range entries {
		if !isBackupFile(entry) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, backupFile{name: entry.Name(), modTime: info.ModTime()})
	}

	// Oldest first; names sort by timestamp when mod times tie
	sort.Slice(backups, func(i, j int) bool {
		if backups[i].modTime.Equal(backups[j].modTime) {
			return backups[i].name < backups[j].name
		}
		return backups[i].modTime.Before(backups[j].modTime)
	})

	for i := 0; i < len(backups)-keep; i++ {
		path := filepath.Join(backupDir, backups[i].name)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove old backup %s: %w", backups[i].name, err)
		}
	}
	return nil
}

// Restore copies a backup file over the database at dbPath.
// The database connection should be closed before calling this.
func Restore(backupPath, dbPath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}
	// Stale WAL files would replay on top of the restored snapshot
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", dbPath+suffix, err)
		}
	}
	if err := os.WriteFile(dbPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write database: %w", err)
	}
	return nil
}
