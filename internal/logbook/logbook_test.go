package logbook

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTailReturnsRecentLinesAndTotal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.log")
	book, err := New(path)
	if err != nil {
		t.Fatalf("new logbook: %v", err)
	}
	for i := 0; i < 5; i++ {
		book.Info("entry-%d", i)
	}
	lines, total := book.Tail(3)
	if total != 5 {
		t.Fatalf("total lines = %d, want 5", total)
	}
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	for idx, want := range []string{"entry-2", "entry-3", "entry-4"} {
		if !strings.Contains(lines[idx], want) {
			t.Fatalf("line %d = %q, missing %s", idx, lines[idx], want)
		}
	}
}

func TestTailOnMissingJournal(t *testing.T) {
	book, err := ForDir(t.TempDir())
	if err != nil {
		t.Fatalf("for dir: %v", err)
	}
	if lines, total := book.Tail(10); lines != nil || total != 0 {
		t.Fatalf("expected empty tail, got %v %d", lines, total)
	}
}

func TestRecordFormatsBatches(t *testing.T) {
	book, err := ForDir(t.TempDir())
	if err != nil {
		t.Fatalf("for dir: %v", err)
	}
	book.Record(Entry{RunID: "r1", Action: "apply", IDs: []string{"001", "002"}, Backup: "spec.fdml.bak"})
	book.Record(Entry{RunID: "r2", Action: "rollback"})
	book.Record(Entry{RunID: "r3", Action: "apply", IDs: []string{"003"}, Err: errors.New("boom")})
	lines, total := book.Tail(10)
	if total != 3 {
		t.Fatalf("expected 3 entries, got %d", total)
	}
	checks := []string{
		"INFO  run=r1 apply ids=001,002 ok backup=spec.fdml.bak",
		"INFO  run=r2 rollback ids=- ok",
		"ERROR run=r3 apply ids=003 failed: boom",
	}
	for i, want := range checks {
		if !strings.Contains(lines[i], want) {
			t.Fatalf("line %d = %q, want substring %q", i, lines[i], want)
		}
	}
}

func TestNilLogbookIsSafe(t *testing.T) {
	var book *Logbook
	book.Info("ignored")
	book.Record(Entry{RunID: "x"})
	if book.Path() != "" {
		t.Fatalf("nil logbook should report empty path")
	}
}

func TestJournalDirIsCreatedOnFirstEntry(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")
	book, err := ForDir(dir)
	if err != nil {
		t.Fatalf("for dir: %v", err)
	}
	if lines, total := book.Tail(5); lines != nil || total != 0 {
		t.Fatalf("expected empty tail, got %v %d", lines, total)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("opening the journal must not create %s: %v", dir, err)
	}
	book.Record(Entry{RunID: "r1", Action: "apply", IDs: []string{"001"}})
	if _, err := os.Stat(book.Path()); err != nil {
		t.Fatalf("expected journal file after first entry: %v", err)
	}
}
