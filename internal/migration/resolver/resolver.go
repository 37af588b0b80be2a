package resolver

import (
	"fmt"

	"github.com/kingrea/fdml/internal/migration"
)

type mark uint8

const (
	unvisited mark = iota
	inProgress
	done
)

// Resolver computes execution order over a fixed migration set.
type Resolver struct {
	all       migration.Set
	satisfied map[string]struct{}
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithSatisfied marks ids as already applied. Dependencies on these ids are
// accepted even when their definition files are no longer present.
func WithSatisfied(ids ...string) Option {
	return func(r *Resolver) {
		for _, id := range ids {
			r.satisfied[id] = struct{}{}
		}
	}
}

// New builds a resolver over all known migrations.
func New(all migration.Set, opts ...Option) *Resolver {
	r := &Resolver{all: all, satisfied: map[string]struct{}{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve is shorthand for New(all).Resolve(pending).
func Resolve(pending []string, all migration.Set) ([]string, error) {
	return New(all).Resolve(pending)
}

type frame struct {
	id   string
	next int
}

// Resolve returns pending ordered so dependencies precede dependents. Roots
// are visited in the order given and dependency edges in declaration order,
// so the result is stable for a fixed input. Dependencies outside pending
// influence ordering but are not emitted.
func (r *Resolver) Resolve(pending []string) ([]string, error) {
	wanted := make(map[string]struct{}, len(pending))
	for _, id := range pending {
		if _, ok := r.all[id]; !ok {
			return nil, fmt.Errorf("resolver: unknown migration %s", id)
		}
		wanted[id] = struct{}{}
	}
	marks := make(map[string]mark, len(r.all))
	order := make([]string, 0, len(pending))
	for _, root := range pending {
		if marks[root] != unvisited {
			continue
		}
		visited, err := r.visit(root, marks)
		if err != nil {
			return nil, err
		}
		order = append(order, visited...)
	}
	out := make([]string, 0, len(pending))
	for _, id := range order {
		if _, ok := wanted[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// visit runs one depth-first traversal from root and returns the ids it
// finished, in post-order.
func (r *Resolver) visit(root string, marks map[string]mark) ([]string, error) {
	var finished []string
	stack := []frame{{id: root}}
	marks[root] = inProgress
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		deps := r.all[top.id].Dependencies
		if top.next >= len(deps) {
			marks[top.id] = done
			finished = append(finished, top.id)
			stack = stack[:len(stack)-1]
			continue
		}
		dep := deps[top.next]
		top.next++
		switch marks[dep] {
		case done:
			continue
		case inProgress:
			return nil, &migration.CycleError{ID: dep, Path: cyclePath(stack, dep)}
		}
		if _, ok := r.all[dep]; !ok {
			if _, applied := r.satisfied[dep]; applied {
				marks[dep] = done
				continue
			}
			return nil, &migration.MissingDependencyError{ID: top.id, Dependency: dep}
		}
		marks[dep] = inProgress
		stack = append(stack, frame{id: dep})
	}
	return finished, nil
}

func cyclePath(stack []frame, closing string) []string {
	start := 0
	for i, f := range stack {
		if f.id == closing {
			start = i
			break
		}
	}
	path := make([]string, 0, len(stack)-start+1)
	for _, f := range stack[start:] {
		path = append(path, f.id)
	}
	return append(path, closing)
}
