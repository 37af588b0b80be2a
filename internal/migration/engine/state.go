package engine

import (
	"slices"
	"time"
)

// StateFileName is the state file kept inside the migration directory.
const StateFileName = ".migration_state.json"

// State records which migrations have been applied, in application order.
type State struct {
	Applied       []string  `json:"applied_migrations"`
	LastMigration *string   `json:"last_migration"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewState returns an empty state stamped with now.
func NewState(now time.Time) State {
	return State{Applied: []string{}, CreatedAt: now, UpdatedAt: now}
}

// IsApplied reports whether id is recorded as applied.
func (s State) IsApplied(id string) bool {
	return slices.Contains(s.Applied, id)
}

// Last returns the most recently applied id or "".
func (s State) Last() string {
	if s.LastMigration == nil {
		return ""
	}
	return *s.LastMigration
}

// RecordApplied appends ids that are not yet present.
func (s *State) RecordApplied(ids []string, now time.Time) {
	for _, id := range ids {
		if !s.IsApplied(id) {
			s.Applied = append(s.Applied, id)
		}
	}
	s.touch(now)
}

// RecordRolledBack removes ids by value.
func (s *State) RecordRolledBack(ids []string, now time.Time) {
	s.Applied = slices.DeleteFunc(s.Applied, func(id string) bool {
		return slices.Contains(ids, id)
	})
	s.touch(now)
}

// Recent returns up to n applied ids, most recent first.
func (s State) Recent(n int) []string {
	if n <= 0 {
		return nil
	}
	if n > len(s.Applied) {
		n = len(s.Applied)
	}
	out := make([]string, 0, n)
	for i := len(s.Applied) - 1; i >= len(s.Applied)-n; i-- {
		out = append(out, s.Applied[i])
	}
	return out
}

func (s *State) touch(now time.Time) {
	if s.Applied == nil {
		s.Applied = []string{}
	}
	if len(s.Applied) == 0 {
		s.LastMigration = nil
	} else {
		last := s.Applied[len(s.Applied)-1]
		s.LastMigration = &last
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
}

func (s State) clone() State {
	out := s
	out.Applied = slices.Clone(s.Applied)
	if out.Applied == nil {
		out.Applied = []string{}
	}
	if s.LastMigration != nil {
		last := *s.LastMigration
		out.LastMigration = &last
	}
	return out
}
