// internal/config/config.go
//
// This package handles fdml.yaml and the .fdml directory structure. fdml.yaml
// sits in the project root; .fdml/ holds logs and other tool-owned files.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// FDMLDir is the name of the tool directory created in each project.
	FDMLDir = ".fdml"
	// FileName is the project configuration file in the project root.
	FileName = "fdml.yaml"

	defaultMigrationsDir = "migrations"
	defaultTargetFile    = "spec.fdml"
	defaultBackupKeep    = 10
	defaultLogLevel      = "info"
)

const defaultProjectConfigYAML = `# fdml project configuration
version: 1

project:
  name: %s

migrations:
  # Directory holding migration definitions (*.yaml, *.yml).
  dir: migrations
  # Document edited by migrate apply/rollback and the add commands.
  target: spec.fdml
  backups:
    # Snapshots kept per target; 0 keeps every snapshot.
    keep: 10
  # Refuse to roll back a migration while migrations depending on it remain applied.
  strict_rollback: false

logging:
  level: info
`

// ProjectInfo names the project.
type ProjectInfo struct {
	Name string `yaml:"name,omitempty"`
}

// BackupConfig controls snapshot retention.
type BackupConfig struct {
	Keep *int `yaml:"keep,omitempty"`
}

// MigrationsConfig locates migrations and the document they edit.
type MigrationsConfig struct {
	Dir            string       `yaml:"dir"`
	Target         string       `yaml:"target"`
	Backups        BackupConfig `yaml:"backups"`
	StrictRollback bool         `yaml:"strict_rollback"`
}

// LoggingConfig selects the log level of the file logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// ProjectConfig models fdml.yaml.
type ProjectConfig struct {
	Version    int              `yaml:"version"`
	Project    ProjectInfo      `yaml:"project"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Config holds the runtime configuration for fdml.
type Config struct {
	// ProjectDir is the directory fdml runs against.
	ProjectDir string

	// FDMLProjectDir is ProjectDir/.fdml
	FDMLProjectDir string

	Project ProjectConfig
}

// Init writes a default fdml.yaml and creates the migration directory. An
// existing fdml.yaml is left untouched.
func Init(projectDir, name string) (*Config, error) {
	if strings.TrimSpace(name) == "" {
		name = filepath.Base(projectDir)
	}
	if err := ensureProjectConfig(filepath.Join(projectDir, FileName), name); err != nil {
		return nil, fmt.Errorf("config: write %s: %w", FileName, err)
	}
	cfg, err := Load(projectDir)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{cfg.MigrationsDir(), cfg.LogsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return cfg, nil
}

// Load reads fdml.yaml from projectDir. A missing file yields defaults.
func Load(projectDir string) (*Config, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve project dir: %w", err)
	}
	cfg := &Config{
		ProjectDir:     abs,
		FDMLProjectDir: filepath.Join(abs, FDMLDir),
		Project:        defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.ProjectDir, FileName)
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.FDMLProjectDir, "logs")
}

// MigrationsDir returns the absolute migration directory.
func (c *Config) MigrationsDir() string {
	return c.Project.Migrations.Dir
}

// TargetFile returns the absolute default target document.
func (c *Config) TargetFile() string {
	return c.Project.Migrations.Target
}

// BackupKeep returns how many snapshots to retain per target.
func (c *Config) BackupKeep() int {
	if c.Project.Migrations.Backups.Keep == nil {
		return defaultBackupKeep
	}
	return *c.Project.Migrations.Backups.Keep
}

// StrictRollback reports whether rollbacks check applied dependents.
func (c *Config) StrictRollback() bool {
	return c.Project.Migrations.StrictRollback
}

// LogLevel returns the configured log level name.
func (c *Config) LogLevel() string {
	return c.Project.Logging.Level
}

// ResolvePath resolves candidate against the project dir; empty stays empty.
func (c *Config) ResolvePath(candidate string) string {
	return resolvePath(c.ProjectDir, candidate)
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.Project.normalize(c.ProjectDir)
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.Migrations.Dir) == "" {
		pc.Migrations.Dir = defaultMigrationsDir
	}
	if strings.TrimSpace(pc.Migrations.Target) == "" {
		pc.Migrations.Target = defaultTargetFile
	}
	if pc.Migrations.Backups.Keep == nil {
		keep := defaultBackupKeep
		pc.Migrations.Backups.Keep = &keep
	}
	if strings.TrimSpace(pc.Logging.Level) == "" {
		pc.Logging.Level = defaultLogLevel
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Project.Name = strings.TrimSpace(pc.Project.Name)
	pc.Migrations.Dir = resolvePath(base, pc.Migrations.Dir)
	pc.Migrations.Target = resolvePath(base, pc.Migrations.Target)
	pc.Logging.Level = strings.ToLower(strings.TrimSpace(pc.Logging.Level))
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if pc.Migrations.Backups.Keep != nil && *pc.Migrations.Backups.Keep < 0 {
		return fmt.Errorf("migrations.backups.keep must be >= 0")
	}
	switch pc.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path, name string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf(defaultProjectConfigYAML, name)), 0o644)
}
