package migration

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds rendered by the CLI.
const (
	ErrKindLoad       = "LoadError"
	ErrKindCycle      = "CycleError"
	ErrKindValidation = "ValidationError"
	ErrKindNotFound   = "NotFoundError"
	ErrKindNoReverse  = "NoReverseError"
	ErrKindIO         = "IOError"
	ErrKindDependents = "DependentsAppliedError"
	ErrKindLocked     = "LockedError"
	ErrKindMissingDep = "MissingDependencyError"
	ErrKindConflict   = "ConflictError"
)

// ErrLocked is returned when another process holds the migration lock.
var ErrLocked = errors.New("migration: another migration run holds the lock")

// LoadError reports an unreadable or malformed migration definition.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("migration: load %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// CycleError reports a circular dependency; ID is one migration on the cycle.
type CycleError struct {
	ID string
	// Path is the dependency chain that closed the cycle, when known.
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) > 1 {
		return fmt.Sprintf("migration: circular dependency detected involving %s (%s)", e.ID, strings.Join(e.Path, " -> "))
	}
	return fmt.Sprintf("migration: circular dependency detected involving %s", e.ID)
}

// MissingDependencyError reports a dependency on a migration that is neither
// defined in the migration directory nor recorded as applied.
type MissingDependencyError struct {
	ID         string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("migration: %s depends on unknown migration %s", e.ID, e.Dependency)
}

// ValidationError reports an operation that is missing a required field.
type ValidationError struct {
	Op    Kind
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	switch e.Rule {
	case "", "required", "nonblank":
		return fmt.Sprintf("migration: %s: %s is required", e.Op, e.Field)
	default:
		return fmt.Sprintf("migration: %s: %s failed %s", e.Op, e.Field, e.Rule)
	}
}

// NotFoundError reports a referenced element that is absent from the document.
type NotFoundError struct {
	// Element is "entity", "field", "action", "constraint" or "feature".
	Element string
	ID      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("migration: %s not found: %s", e.Element, e.ID)
}

// ConflictError reports an add operation whose id is already taken.
type ConflictError struct {
	Element string
	ID      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("migration: %s already exists: %s", e.Element, e.ID)
}

// NoReverseError reports a rollback of a forward-only migration.
type NoReverseError struct {
	ID string
}

func (e *NoReverseError) Error() string {
	return fmt.Sprintf("migration: %s has no down operations and cannot be rolled back", e.ID)
}

// DependentsAppliedError reports a strict rollback that would leave applied
// migrations depending on one that is being removed.
type DependentsAppliedError struct {
	ID         string
	Dependents []string
}

func (e *DependentsAppliedError) Error() string {
	return fmt.Sprintf("migration: cannot roll back %s while %s remain applied", e.ID, strings.Join(e.Dependents, ", "))
}

// IOError wraps a filesystem failure on a document, state file or backup.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("migration: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ErrorKind classifies err into the taxonomy above; unknown errors report "".
func ErrorKind(err error) string {
	var (
		loadErr       *LoadError
		cycleErr      *CycleError
		validationErr *ValidationError
		notFoundErr   *NotFoundError
		noReverseErr  *NoReverseError
		dependentsErr *DependentsAppliedError
		missingErr    *MissingDependencyError
		conflictErr   *ConflictError
		ioErr         *IOError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrLocked):
		return ErrKindLocked
	case errors.As(err, &loadErr):
		return ErrKindLoad
	case errors.As(err, &cycleErr):
		return ErrKindCycle
	case errors.As(err, &validationErr):
		return ErrKindValidation
	case errors.As(err, &notFoundErr):
		return ErrKindNotFound
	case errors.As(err, &noReverseErr):
		return ErrKindNoReverse
	case errors.As(err, &dependentsErr):
		return ErrKindDependents
	case errors.As(err, &missingErr):
		return ErrKindMissingDep
	case errors.As(err, &conflictErr):
		return ErrKindConflict
	case errors.As(err, &ioErr):
		return ErrKindIO
	default:
		return ""
	}
}
