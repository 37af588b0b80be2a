package engine

import (
	"os"
	"path/filepath"

	"github.com/kingrea/fdml/internal/migration"
)

// LockFileName is the advisory lock file inside the migration directory.
const LockFileName = ".migration.lock"

// runLock is an exclusive, non-blocking lock over one migration directory.
type runLock struct {
	file *os.File
}

func acquireLock(dir string) (*runLock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &migration.IOError{Op: "create migration dir", Path: dir, Err: err}
	}
	path := filepath.Join(dir, LockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, &migration.IOError{Op: "open lock", Path: path, Err: err}
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &runLock{file: f}, nil
}

func (l *runLock) release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unlockFile(l.file)
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}
