package resolver

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kingrea/fdml/internal/migration"
)

func set(defs map[string][]string) migration.Set {
	out := migration.Set{}
	for id, deps := range defs {
		out[id] = migration.Migration{ID: id, Dependencies: deps}
	}
	return out
}

func TestResolveOrdersDependenciesFirst(t *testing.T) {
	all := set(map[string][]string{
		"001_add_user":    nil,
		"002_add_profile": {"001_add_user"},
		"003_add_avatar":  {"002_add_profile", "001_add_user"},
	})
	order, err := Resolve([]string{"003_add_avatar", "002_add_profile", "001_add_user"}, all)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := []string{"001_add_user", "002_add_profile", "003_add_avatar"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected order %v, want %v", order, want)
	}
}

func TestResolveHonorsAppliedDependenciesWithoutEmittingThem(t *testing.T) {
	all := set(map[string][]string{
		"001_base":  nil,
		"002_left":  {"001_base"},
		"003_right": {"002_left"},
	})
	order, err := Resolve([]string{"003_right"}, all)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(order) != 1 || order[0] != "003_right" {
		t.Fatalf("expected only pending id, got %v", order)
	}
}

func TestResolveDetectsMutualDependency(t *testing.T) {
	all := set(map[string][]string{
		"001_circular": {"002_circular"},
		"002_circular": {"001_circular"},
	})
	_, err := Resolve([]string{"001_circular", "002_circular"}, all)
	var cycle *migration.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	if cycle.ID != "001_circular" {
		t.Fatalf("expected cycle to name 001_circular, got %s", cycle.ID)
	}
	if !strings.Contains(err.Error(), "circular dependency") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestResolveDetectsLongCycleThroughAppliedNodes(t *testing.T) {
	all := set(map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
		"d": {"a"},
	})
	_, err := Resolve([]string{"d"}, all)
	var cycle *migration.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	if got := strings.Join(cycle.Path, "->"); got != "a->b->c->a" {
		t.Fatalf("unexpected cycle path %s", got)
	}
}

func TestResolveIsStableForIndependentMigrations(t *testing.T) {
	all := set(map[string][]string{
		"001_a": nil,
		"002_b": nil,
		"003_c": nil,
	})
	pending := []string{"001_a", "002_b", "003_c"}
	first, err := Resolve(pending, all)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := Resolve(pending, all)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if strings.Join(again, ",") != strings.Join(first, ",") {
			t.Fatalf("order changed between calls: %v vs %v", first, again)
		}
	}
	if strings.Join(first, ",") != "001_a,002_b,003_c" {
		t.Fatalf("expected traversal order, got %v", first)
	}
}

func TestResolveHandlesDeepChainsWithoutRecursion(t *testing.T) {
	all := migration.Set{}
	pending := make([]string, 0, 5000)
	for i := 0; i < 5000; i++ {
		id := fmt.Sprintf("%05d", i)
		m := migration.Migration{ID: id}
		if i > 0 {
			m.Dependencies = []string{fmt.Sprintf("%05d", i-1)}
		}
		all[id] = m
	}
	for i := 4999; i >= 0; i-- {
		pending = append(pending, fmt.Sprintf("%05d", i))
	}
	order, err := Resolve(pending, all)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(order) != 5000 || order[0] != "00000" || order[4999] != "04999" {
		t.Fatalf("unexpected chain order: first=%s last=%s len=%d", order[0], order[len(order)-1], len(order))
	}
}

func TestResolveUnknownDependency(t *testing.T) {
	all := set(map[string][]string{"002_b": {"001_gone"}})
	_, err := Resolve([]string{"002_b"}, all)
	var missing *migration.MissingDependencyError
	if !errors.As(err, &missing) || missing.Dependency != "001_gone" {
		t.Fatalf("expected missing dependency error, got %v", err)
	}
	order, err := New(all, WithSatisfied("001_gone")).Resolve([]string{"002_b"})
	if err != nil || len(order) != 1 {
		t.Fatalf("satisfied dependency should resolve, got %v %v", order, err)
	}
}

func TestResolveEveryMigrationFollowsItsDependencies(t *testing.T) {
	all := set(map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"a"},
		"d": {"b", "c"},
		"e": {"d", "a"},
		"f": nil,
	})
	pending := []string{"f", "e", "d", "c", "b", "a"}
	order, err := Resolve(pending, all)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	pos := map[string]int{}
	for i, id := range order {
		pos[id] = i
	}
	if len(pos) != len(pending) {
		t.Fatalf("expected every pending id exactly once, got %v", order)
	}
	for id, m := range all {
		for _, dep := range m.Dependencies {
			if pos[dep] > pos[id] {
				t.Fatalf("%s scheduled before its dependency %s: %v", id, dep, order)
			}
		}
	}
}
