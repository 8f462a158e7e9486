package registry

import (
	"testing"

	"github.com/agpm-dev/agpm/pkg/lockfile"
	"github.com/agpm-dev/agpm/pkg/manifest"
)

func key(lookup, source string) lockfile.ResourceKey {
	return lockfile.ResourceKey{Type: manifest.ResourceAgent, Lookup: lookup, Source: source}
}

func TestAllocateIsIdempotent(t *testing.T) {
	r := New()
	e1, created1 := r.Allocate(key("main-app", "community"))
	e2, created2 := r.Allocate(key("main-app", "community"))
	if !created1 {
		t.Fatal("first allocate should report created")
	}
	if created2 {
		t.Fatal("second allocate should not report created")
	}
	if e1 != e2 {
		t.Fatal("expected same entry pointer for same key")
	}
}

func TestAddEdgeRecordsRequirer(t *testing.T) {
	r := New()
	parent := key("main-app", "community")
	child := key("helper", "community")

	e, _ := r.AddEdge(child, parent, "v1.0.0")
	if len(e.RequiredBy) != 1 {
		t.Fatalf("expected 1 requirer, got %d", len(e.RequiredBy))
	}
	edge, ok := e.RequiredBy[parent]
	if !ok || edge.Constraint != "v1.0.0" {
		t.Fatalf("unexpected edge: %+v", edge)
	}
}

func TestIntersectConstraintsExactShaAgreement(t *testing.T) {
	key := key("shared", "community")
	edges := []ParentEdge{
		{ParentKey: key, Constraint: "abc123abc123abc123abc123abc123abc123abcd"},
		{ParentKey: key, Constraint: "abc123abc123abc123abc123abc123abc123abcd"},
	}
	c, err := IntersectConstraints(key, edges, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != nil {
		t.Errorf("exact-sha-only constraints should not produce a semver.Constraints")
	}
}

func TestIntersectConstraintsExactShaConflict(t *testing.T) {
	key := key("shared", "community")
	edges := []ParentEdge{
		{ParentKey: key, Constraint: "1111111111111111111111111111111111111111"},
		{ParentKey: key, Constraint: "2222222222222222222222222222222222222222"},
	}
	_, err := IntersectConstraints(key, edges, nil)
	if err == nil {
		t.Fatal("expected a conflict error for disagreeing exact shas")
	}
}

func TestIntersectConstraintsSemverRange(t *testing.T) {
	k := key("shared", "community")
	edges := []ParentEdge{
		{ParentKey: k, Constraint: ">=1.0.0"},
		{ParentKey: k, Constraint: ">=1.5.0"},
	}
	c, err := IntersectConstraints(k, edges, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c == nil {
		t.Fatal("expected a combined constraint set")
	}
}
