package engine

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kingrea/fdml/internal/document"
	"github.com/kingrea/fdml/internal/migration"
)

// StateStore persists migration state. Implementations write the whole
// state per call so a reader never observes a partial update.
type StateStore interface {
	Load() (State, error)
	RecordApplied(ids []string) (State, error)
	RecordRolledBack(ids []string) (State, error)
}

// Repository stores state as JSON inside the migration directory.
type Repository struct {
	path  string
	clock func() time.Time
}

// NewRepository creates a repository for the migration directory dir.
func NewRepository(dir string, clock func() time.Time) *Repository {
	if clock == nil {
		clock = time.Now
	}
	return &Repository{path: filepath.Join(dir, StateFileName), clock: clock}
}

// Path returns the state file location.
func (r *Repository) Path() string { return r.path }

// Load reads the persisted state. A missing file yields a fresh state.
func (r *Repository) Load() (State, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewState(r.clock().UTC()), nil
		}
		return State{}, &migration.IOError{Op: "read state", Path: r.path, Err: err}
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, &migration.IOError{Op: "decode state", Path: r.path, Err: err}
	}
	if state.Applied == nil {
		state.Applied = []string{}
	}
	return state, nil
}

// RecordApplied appends ids that are not already recorded.
func (r *Repository) RecordApplied(ids []string) (State, error) {
	return r.update(func(s *State, now time.Time) { s.RecordApplied(ids, now) })
}

// RecordRolledBack removes ids from the applied list.
func (r *Repository) RecordRolledBack(ids []string) (State, error) {
	return r.update(func(s *State, now time.Time) { s.RecordRolledBack(ids, now) })
}

func (r *Repository) update(mutate func(*State, time.Time)) (State, error) {
	state, err := r.Load()
	if err != nil {
		return State{}, err
	}
	mutate(&state, r.clock().UTC())
	if err := r.save(state); err != nil {
		return State{}, err
	}
	return state, nil
}

func (r *Repository) save(state State) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return &migration.IOError{Op: "create state dir", Path: filepath.Dir(r.path), Err: err}
	}
	encoded, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return &migration.IOError{Op: "encode state", Path: r.path, Err: err}
	}
	if err := document.WriteFileAtomic(r.path, append(encoded, '\n'), 0o644); err != nil {
		return &migration.IOError{Op: "write state", Path: r.path, Err: err}
	}
	return nil
}

// MemoryStore keeps state in memory. It backs dry runs of synthesized
// migrations and tests.
type MemoryStore struct {
	mu    sync.Mutex
	state State
	clock func() time.Time
}

// NewMemoryStore creates a store seeded with the given applied ids.
func NewMemoryStore(applied ...string) *MemoryStore {
	now := time.Now().UTC()
	state := NewState(now)
	state.RecordApplied(applied, now)
	return &MemoryStore{state: state, clock: time.Now}
}

func (m *MemoryStore) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone(), nil
}

func (m *MemoryStore) RecordApplied(ids []string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.RecordApplied(ids, m.clock().UTC())
	return m.state.clone(), nil
}

func (m *MemoryStore) RecordRolledBack(ids []string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.RecordRolledBack(ids, m.clock().UTC())
	return m.state.clone(), nil
}
