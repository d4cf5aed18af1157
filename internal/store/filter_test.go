package store

import (
	"strings"
	"testing"
)

func TestBuildWhereEmpty(t *testing.T) {
	if where, args := buildWhere(nil); where != "" || args != nil {
		t.Fatalf("nil filter must render no clause, got %q with %d args", where, len(args))
	}
	if where, _ := buildWhere(&Filter{}); where != "" {
		t.Fatalf("empty filter must render no clause, got %q", where)
	}
}

func TestBuildWhereArgOrderMatchesPlaceholders(t *testing.T) {
	f := &Filter{
		Equals:      map[string]any{"lower(category)": "essays"},
		TagContains: "go",
		ExcludeID:   "a1",
	}
	where, args := buildWhere(f)

	if !strings.HasPrefix(where, " WHERE ") {
		t.Fatalf("expected a WHERE prefix, got %q", where)
	}
	if got, want := strings.Count(where, "?"), len(args); got != want {
		t.Fatalf("placeholder count %d must match arg count %d in %q", got, want, where)
	}
}

func TestBuildWhereIn(t *testing.T) {
	f := &Filter{In: map[string][]any{"id": {"a", "b", "c"}}}
	where, args := buildWhere(f)

	if !strings.Contains(where, "id IN (?,?,?)") {
		t.Fatalf("expected a three-placeholder IN clause, got %q", where)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
}
