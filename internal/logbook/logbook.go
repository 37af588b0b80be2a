// Package logbook keeps the migration journal: one line per apply or
// rollback batch, appended to a text file next to the migration state.
package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileName is the journal file kept inside the migration directory.
const FileName = ".migration_journal.log"

// Level represents the severity of a journal entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

// Logbook appends journal lines to a text file.
type Logbook struct {
	path  string
	mu    sync.Mutex
	clock func() time.Time
}

// New creates a logbook that writes to the provided path. Nothing touches
// the filesystem until the first entry is appended.
func New(path string) (*Logbook, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("logbook: empty path")
	}
	return &Logbook{path: path, clock: time.Now}, nil
}

// ForDir opens the journal of a migration directory.
func ForDir(dir string) (*Logbook, error) {
	return New(filepath.Join(dir, FileName))
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a single entry to the logbook. Write failures are dropped;
// the journal never fails a migration run.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("%s %-5s %s\n",
		l.clock().UTC().Format(time.RFC3339),
		string(level),
		strings.TrimSpace(message),
	)
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Tail returns up to maxLines of the most recent entries and the total
// number of entries in the journal.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	total := len(lines)
	if total == 0 {
		return nil, 0
	}
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}

// Entry summarizes one runner batch.
type Entry struct {
	RunID  string
	Action string
	IDs    []string
	Backup string
	Err    error
}

// Record appends e as a single line.
func (l *Logbook) Record(e Entry) {
	ids := "-"
	if len(e.IDs) > 0 {
		ids = strings.Join(e.IDs, ",")
	}
	msg := fmt.Sprintf("run=%s %s ids=%s", e.RunID, e.Action, ids)
	switch {
	case e.Err != nil:
		l.Error("%s failed: %v", msg, e.Err)
	case e.Backup != "":
		l.Info("%s ok backup=%s", msg, e.Backup)
	default:
		l.Info("%s ok", msg)
	}
}
