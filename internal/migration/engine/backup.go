package engine

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kingrea/fdml/internal/migration"
)

const (
	// BackupDirName is the backups subdirectory of the migration directory.
	BackupDirName = ".backups"
	// BackupTimeFormat stamps backup file names; it sorts lexically.
	BackupTimeFormat = "20060102T150405.000000000"
	backupSuffix     = ".bak"
)

// BackupInfo describes one snapshot on disk.
type BackupInfo struct {
	Path      string
	CreatedAt time.Time
	Size      int64
}

// BackupManager snapshots the target document before a mutating batch.
type BackupManager struct {
	dir   string
	keep  int
	clock func() time.Time
}

// NewBackupManager stores snapshots in dir, normally <migration dir>/.backups.
// keep bounds how many snapshots per target survive rotation; zero keeps all.
func NewBackupManager(dir string, keep int, clock func() time.Time) *BackupManager {
	if clock == nil {
		clock = time.Now
	}
	if keep < 0 {
		keep = 0
	}
	return &BackupManager{dir: dir, keep: keep, clock: clock}
}

// Dir returns the backups directory.
func (b *BackupManager) Dir() string { return b.dir }

// Snapshot copies target verbatim into the backups directory and returns the
// new path. A missing target returns "" and no error.
func (b *BackupManager) Snapshot(target string) (string, error) {
	src, err := os.Open(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", &migration.IOError{Op: "open target for backup", Path: target, Err: err}
	}
	defer src.Close()

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", &migration.IOError{Op: "create backup dir", Path: b.dir, Err: err}
	}
	name := filepath.Base(target) + "." + b.clock().UTC().Format(BackupTimeFormat) + backupSuffix
	path := filepath.Join(b.dir, name)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", &migration.IOError{Op: "create backup", Path: path, Err: err}
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", &migration.IOError{Op: "copy backup", Path: path, Err: err}
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", &migration.IOError{Op: "close backup", Path: path, Err: err}
	}
	if err := b.rotate(target, path); err != nil {
		return path, err
	}
	return path, nil
}

// List returns the snapshots of target, newest first.
func (b *BackupManager) List(target string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &migration.IOError{Op: "read backup dir", Path: b.dir, Err: err}
	}
	prefix := filepath.Base(target) + "."
	var backups []BackupInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), backupSuffix)
		created, err := time.Parse(BackupTimeFormat, stamp)
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{Path: filepath.Join(b.dir, name), CreatedAt: created, Size: info.Size()})
	}
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// rotate prunes the oldest snapshots beyond keep, never the one just written.
func (b *BackupManager) rotate(target, latest string) error {
	if b.keep == 0 {
		return nil
	}
	backups, err := b.List(target)
	if err != nil {
		return err
	}
	kept := 1
	for _, backup := range backups {
		if backup.Path == latest {
			continue
		}
		if kept < b.keep {
			kept++
			continue
		}
		if err := os.Remove(backup.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &migration.IOError{Op: "prune backup", Path: backup.Path, Err: err}
		}
	}
	return nil
}
