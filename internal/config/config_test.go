package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	c, err := Load(projectDir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Project.Version)
	}
	if c.MigrationsDir() != filepath.Join(projectDir, "migrations") {
		t.Fatalf("unexpected migrations dir %s", c.MigrationsDir())
	}
	if c.TargetFile() != filepath.Join(projectDir, "spec.fdml") {
		t.Fatalf("unexpected target %s", c.TargetFile())
	}
	if c.BackupKeep() != 10 || c.StrictRollback() || c.LogLevel() != "info" {
		t.Fatalf("unexpected defaults: keep=%d strict=%v level=%s", c.BackupKeep(), c.StrictRollback(), c.LogLevel())
	}
	if c.LogsDir() != filepath.Join(projectDir, ".fdml", "logs") {
		t.Fatalf("unexpected logs dir %s", c.LogsDir())
	}
}

func TestLoadParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	configYAML := strings.TrimSpace(`
version: 1
project:
  name: shop
migrations:
  dir: spec/migrations
  target: spec/shop.fdml
  backups:
    keep: 0
  strict_rollback: true
logging:
  level: DEBUG
`)
	if err := os.WriteFile(filepath.Join(projectDir, FileName), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(projectDir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.Project.Project.Name != "shop" {
		t.Fatalf("unexpected name %q", c.Project.Project.Name)
	}
	if c.MigrationsDir() != filepath.Join(projectDir, "spec", "migrations") {
		t.Fatalf("expected migrations dir to be resolved, got %s", c.MigrationsDir())
	}
	if c.TargetFile() != filepath.Join(projectDir, "spec", "shop.fdml") {
		t.Fatalf("expected target to be resolved, got %s", c.TargetFile())
	}
	if c.BackupKeep() != 0 {
		t.Fatalf("explicit keep: 0 must survive defaults, got %d", c.BackupKeep())
	}
	if !c.StrictRollback() || c.LogLevel() != "debug" {
		t.Fatalf("unexpected strict=%v level=%s", c.StrictRollback(), c.LogLevel())
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"negative keep": "migrations:\n  backups:\n    keep: -1\n",
		"bad level":     "logging:\n  level: loud\n",
		"bad yaml":      "migrations: [\n",
	}
	for name, body := range cases {
		projectDir := t.TempDir()
		if err := os.WriteFile(filepath.Join(projectDir, FileName), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(projectDir); err == nil {
			t.Fatalf("%s: expected error but got none", name)
		}
	}
}

func TestInitWritesConfigOnce(t *testing.T) {
	projectDir := t.TempDir()
	c, err := Init(projectDir, "shop")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := os.Stat(c.MigrationsDir()); err != nil {
		t.Fatalf("expected migrations dir: %v", err)
	}
	data, err := os.ReadFile(c.ProjectConfigPath())
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "name: shop") {
		t.Fatalf("expected project name in config, got:\n%s", data)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), []byte("version: 1\nproject:\n  name: kept\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	again, err := Init(projectDir, "other")
	if err != nil {
		t.Fatalf("Init again: %v", err)
	}
	if again.Project.Project.Name != "kept" {
		t.Fatalf("existing config must not be overwritten, got %q", again.Project.Project.Name)
	}
}
