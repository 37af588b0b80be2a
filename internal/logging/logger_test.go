package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewAppendsToLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".fdml", "logs")
	logger, err := New(dir, Options{Level: "info"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("applied migration", "id", "001_add_age")
	logger.Debug("hidden at info level")
	logger.Printf("plain %s\n", "line")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "id=001_add_age") || !strings.Contains(out, "plain line") {
		t.Fatalf("missing entries in log:\n%s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked at info level:\n%s", out)
	}
}

func TestVerboseMirrorsDebugToStderr(t *testing.T) {
	var stderr bytes.Buffer
	logger, err := New(t.TempDir(), Options{Level: "warn", Verbose: true, Stderr: &stderr})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer logger.Close()
	logger.With("run_id", "r1").Debug("planned apply")
	if !strings.Contains(stderr.String(), "planned apply") || !strings.Contains(stderr.String(), "run_id=r1") {
		t.Fatalf("expected debug line on stderr, got %q", stderr.String())
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, err := ParseLevel("DEBUG"); err != nil || lvl != slog.LevelDebug {
		t.Fatalf("expected debug, got %v %v", lvl, err)
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestDiscardAndNilAreSafe(t *testing.T) {
	Discard().Printf("ignored")
	var logger *Logger
	logger.Printf("ignored")
	if err := logger.Close(); err != nil {
		t.Fatalf("close nil: %v", err)
	}
}
