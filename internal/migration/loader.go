package migration

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDir is the conventional migration directory name.
const DefaultDir = "migrations"

// IDTimeLayout prefixes generated migration ids so they sort chronologically.
const IDTimeLayout = "20060102_150405"

// IsDefinitionFile reports whether name looks like a migration definition.
// Hidden files (state, lock, backups) never qualify.
func IsDefinitionFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// ParseYAML decodes a single migration definition.
func ParseYAML(data []byte) (Migration, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Migration{}, fmt.Errorf("migration: definition payload is empty")
	}
	var m Migration
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Migration{}, fmt.Errorf("migration: decode definition: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Migration{}, err
	}
	return m, nil
}

// LoadReader reads a migration definition from r.
func LoadReader(r io.Reader) (Migration, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Migration{}, fmt.Errorf("migration: read definition: %w", err)
	}
	return ParseYAML(content)
}

// LoadFile loads a migration definition from an explicit path.
func LoadFile(path string) (Migration, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Migration{}, &LoadError{File: path, Err: err}
	}
	m, err := ParseYAML(content)
	if err != nil {
		return Migration{}, &LoadError{File: path, Err: err}
	}
	m.Source = path
	return m, nil
}

// LoadDir reads every definition file directly inside dir. A missing
// directory yields an empty set. Two files declaring the same id fail the
// load rather than silently replacing one another.
func LoadDir(dir string) (Set, error) {
	set := Set{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return set, nil
		}
		return nil, &IOError{Op: "read migration dir", Path: dir, Err: err}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() || !IsDefinitionFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		m, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		if existing, dup := set[m.ID]; dup {
			return nil, &LoadError{
				File: path,
				Err:  fmt.Errorf("duplicate migration id %s (already declared in %s)", m.ID, filepath.Base(existing.Source)),
			}
		}
		set[m.ID] = m
	}
	return set, nil
}

// Encode renders a migration definition as YAML.
func Encode(m Migration) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("migration: encode %s: %w", m.ID, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("migration: encode %s: %w", m.ID, err)
	}
	return buf.Bytes(), nil
}

// WriteFile stores m as <dir>/<id>.yaml and returns the path. Existing files
// are never overwritten.
func WriteFile(dir string, m Migration) (string, error) {
	content, err := Encode(m)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &IOError{Op: "create migration dir", Path: dir, Err: err}
	}
	path := filepath.Join(dir, m.ID+".yaml")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", &IOError{Op: "create migration", Path: path, Err: err}
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return "", &IOError{Op: "write migration", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return "", &IOError{Op: "write migration", Path: path, Err: err}
	}
	return path, nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// NewID builds a sortable id such as 20240101_120000_001_add_feature.
func NewID(now time.Time, seq int, name string) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		slug = "migration"
	}
	if seq < 1 {
		seq = 1
	}
	return fmt.Sprintf("%s_%03d_%s", now.UTC().Format(IDTimeLayout), seq, slug)
}
