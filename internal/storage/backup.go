package storage

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"

	"github.com/xolan/wogger/internal/apperr"
)

const (
	// BackupSuffix is the file extension for backup files
	BackupSuffix = ".bak"
	// MaxBackupCount is the maximum number of backup files to keep
	MaxBackupCount = 3
)

// BackupInfo contains information about a backup file
type BackupInfo struct {
	Number int    // The backup number (1 is the most recent)
	Path   string // The full path to the backup file
}

// BackupPath returns the path of rotation n: entries.jsonl.bak.N.
// Lower numbers are more recent.
func (s *Store) BackupPath(n int) string {
	return fmt.Sprintf("%s%s.%d", s.path, BackupSuffix, n)
}

// CreateBackup copies the entries file to .bak.1 after shifting older
// backups down (.bak.1 -> .bak.2 -> .bak.3, dropping the oldest). It is
// taken before destructive rewrites such as an import.
func (s *Store) CreateBackup() error {
	const op = "storage.backup"
	return s.withLock(op, false, func() error {
		data, err := os.ReadFile(s.path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return apperr.Persistence(op, err, "unable to read %s", s.path)
		}
		if err := s.rotateBackups(); err != nil {
			return apperr.Persistence(op, err, "unable to rotate backups")
		}
		if err := atomic.WriteFile(s.BackupPath(1), bytes.NewReader(data)); err != nil {
			return apperr.Persistence(op, err, "unable to write backup")
		}
		s.logger.Info("Backup completed", "event", "entries_backup_success", "path", s.BackupPath(1))
		return nil
	})
}

// rotateBackups shifts existing backup files to make room for a new one.
// Missing files are fine.
func (s *Store) rotateBackups() error {
	if err := os.Remove(s.BackupPath(MaxBackupCount)); err != nil && !os.IsNotExist(err) {
		return err
	}
	for i := MaxBackupCount - 1; i >= 1; i-- {
		if err := os.Rename(s.BackupPath(i), s.BackupPath(i+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// ListBackups returns the existing backups, most recent first.
func (s *Store) ListBackups() []BackupInfo {
	var backups []BackupInfo
	for i := 1; i <= MaxBackupCount; i++ {
		if _, err := os.Stat(s.BackupPath(i)); err == nil {
			backups = append(backups, BackupInfo{Number: i, Path: s.BackupPath(i)})
		}
	}
	return backups
}

// RestoreBackup replaces the entries file with backup n. The current file
// is backed up first, so a restore can itself be undone.
func (s *Store) RestoreBackup(n int) error {
	const op = "storage.restore"
	if n < 1 || n > MaxBackupCount {
		return apperr.Validation(op, "invalid backup number %d, must be between 1 and %d", n, MaxBackupCount)
	}
	data, err := os.ReadFile(s.BackupPath(n))
	if err != nil {
		if os.IsNotExist(err) {
			return apperr.NotFound(op, "backup %d does not exist", n)
		}
		return apperr.Persistence(op, err, "unable to read backup %d", n)
	}

	if err := s.CreateBackup(); err != nil {
		return err
	}
	return s.withLock(op, true, func() error {
		if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
			return apperr.Persistence(op, err, "unable to restore backup %d", n)
		}
		s.logger.Info("Backup restored", "event", "entries_backup_restored", "number", n)
		return nil
	})
}
