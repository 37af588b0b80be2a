// Package migration defines versioned, reversible change units for FDML
// documents and loads them from a migration directory.
package migration

import (
	"fmt"
	"sort"
)

// Migration is one named unit of forward (Up) and reverse (Down) operations.
// Down is applied in reverse order to undo Up; an empty Down marks the
// migration forward-only.
type Migration struct {
	ID           string     `json:"id" yaml:"id"`
	Title        string     `json:"title,omitempty" yaml:"title,omitempty"`
	Description  string     `json:"description,omitempty" yaml:"description,omitempty"`
	Up           Operations `json:"-" yaml:"up"`
	Down         Operations `json:"-" yaml:"down"`
	Dependencies []string   `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	// Source is the file the migration was read from; empty for synthesized ones.
	Source string `json:"-" yaml:"-"`
}

// Set maps migration ids to their definitions.
type Set map[string]Migration

// Reversible reports whether the migration can be rolled back.
func (m Migration) Reversible() bool {
	return len(m.Down) > 0
}

// Label returns "id - title", or just the id when untitled.
func (m Migration) Label() string {
	if m.Title == "" {
		return m.ID
	}
	return m.ID + " - " + m.Title
}

// Clone returns a copy whose slices can be modified independently.
func (m Migration) Clone() Migration {
	clone := m
	if len(m.Up) > 0 {
		clone.Up = append(Operations(nil), m.Up...)
	}
	if len(m.Down) > 0 {
		clone.Down = append(Operations(nil), m.Down...)
	}
	clone.Dependencies = cloneStringSlice(m.Dependencies)
	return clone
}

// Validate ensures the migration is self-consistent. It does not validate
// the individual operations; the runner does that right before executing them.
func (m Migration) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("migration: id is required")
	}
	deps := append([]string{}, m.Dependencies...)
	sort.Strings(deps)
	for i, dep := range deps {
		if dep == "" {
			return fmt.Errorf("migration %s: empty dependency id", m.ID)
		}
		if dep == m.ID {
			return &CycleError{ID: m.ID, Path: []string{m.ID, m.ID}}
		}
		if i > 0 && deps[i-1] == dep {
			return fmt.Errorf("migration %s: duplicate dependency on %s", m.ID, dep)
		}
	}
	return nil
}

// IDs returns the set's ids in ascending order.
func (s Set) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dependents returns the ids in s that declare a dependency on id, sorted.
func (s Set) Dependents(id string) []string {
	var out []string
	for _, candidate := range s.IDs() {
		for _, dep := range s[candidate].Dependencies {
			if dep == id {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}

func cloneStringSlice(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	clone := make([]string, len(values))
	copy(clone, values)
	return clone
}
