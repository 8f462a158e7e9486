package resolver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/agpm-dev/agpm/pkg/agpmerrors"
	"github.com/agpm-dev/agpm/pkg/gitbackend"
	"github.com/agpm-dev/agpm/pkg/gittest"
	"github.com/agpm-dev/agpm/pkg/lockfile"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/sourcecache"
)

func newTestResolver(t *testing.T, m *manifest.Manifest) *Resolver {
	t.Helper()
	root := t.TempDir()
	cache := sourcecache.New(filepath.Join(root, "cache"), gitbackend.New())
	return New(m, root, cache, gitbackend.New(), Options{})
}

func newSourceRepo(t *testing.T, files map[string]string, tag string) string {
	t.Helper()
	dir := t.TempDir()
	repo := gittest.NewRepo(t, dir)
	for path, content := range files {
		repo.WriteFile(path, content)
	}
	repo.Commit("initial")
	if tag != "" {
		repo.Tag(tag)
	}
	return dir
}

func TestResolveTransitive(t *testing.T) {
	srcDir := newSourceRepo(t, map[string]string{
		"agents/main-app.md": "---\ndependencies:\n  agents:\n    - path: agents/helper.md\n      version: v1.0.0\n---\n# main\n",
		"agents/helper.md":   "# helper\n",
	}, "v1.0.0")

	m := manifest.New()
	m.Sources["community"] = manifest.Source{Name: "community", URL: srcDir}
	m.Deps[manifest.ResourceAgent]["main-app"] = manifest.DependencySpec{
		Source: "community", Path: "agents/main-app.md", Version: "v1.0.0",
	}

	r := newTestResolver(t, m)
	result, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	names := map[string]string{}
	for _, res := range result.Lockfile.Resources {
		names[res.Name] = res.InstalledAt
	}
	if _, ok := names["main-app"]; !ok {
		t.Fatalf("expected main-app in lockfile, got %+v", names)
	}
	if _, ok := names["helper"]; !ok {
		t.Fatalf("expected helper in lockfile, got %+v", names)
	}
	for name, installedAt := range names {
		if filepath.ToSlash(installedAt) != ".claude/agents/agpm/"+name+".md" {
			t.Errorf("%s installed at %q, want .claude/agents/agpm/%s.md", name, installedAt, name)
		}
	}
}

func TestResolveDiamond(t *testing.T) {
	srcDir := newSourceRepo(t, map[string]string{
		"agents/a.md": "---\ndependencies:\n  agents:\n    - {path: agents/b.md, version: v1.0.0}\n    - {path: agents/c.md, version: v1.0.0}\n---\n",
		"agents/b.md": "---\ndependencies:\n  agents:\n    - {path: agents/d.md, version: v1.0.0}\n---\n",
		"agents/c.md": "---\ndependencies:\n  agents:\n    - {path: agents/d.md, version: v1.0.0}\n---\n",
		"agents/d.md": "# d\n",
	}, "v1.0.0")

	m := manifest.New()
	m.Sources["community"] = manifest.Source{Name: "community", URL: srcDir}
	m.Deps[manifest.ResourceAgent]["a"] = manifest.DependencySpec{Source: "community", Path: "agents/a.md", Version: "v1.0.0"}

	r := newTestResolver(t, m)
	result, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(result.Lockfile.Resources) != 4 {
		names := make([]string, 0)
		for _, res := range result.Lockfile.Resources {
			names = append(names, res.Name)
		}
		t.Fatalf("expected exactly 4 resources (a, b, c, d), got %d: %v", len(result.Lockfile.Resources), names)
	}

	dKey := lockfile.ResourceKey{Type: manifest.ResourceAgent, Lookup: "d", Source: "community"}
	dEntry, ok := r.Registry().Get(dKey)
	if !ok {
		t.Fatal("expected registry entry for d")
	}
	if len(dEntry.RequiredBy) != 2 {
		t.Errorf("expected d to have 2 requirers (b, c), got %d", len(dEntry.RequiredBy))
	}
}

func TestResolveCycleIsRejected(t *testing.T) {
	srcDir := newSourceRepo(t, map[string]string{
		"agents/a.md": "---\ndependencies:\n  agents:\n    - {path: agents/b.md, version: v1.0.0}\n---\n",
		"agents/b.md": "---\ndependencies:\n  agents:\n    - {path: agents/c.md, version: v1.0.0}\n---\n",
		"agents/c.md": "---\ndependencies:\n  agents:\n    - {path: agents/a.md, version: v1.0.0}\n---\n",
	}, "v1.0.0")

	m := manifest.New()
	m.Sources["community"] = manifest.Source{Name: "community", URL: srcDir}
	m.Deps[manifest.ResourceAgent]["a"] = manifest.DependencySpec{Source: "community", Path: "agents/a.md", Version: "v1.0.0"}

	r := newTestResolver(t, m)
	_, err := r.Resolve(context.Background())
	if err == nil {
		t.Fatal("expected a CircularDependency error")
	}
}

// TestResolveBacktrackConvergesToHighest sets up a genuine two-parent
// conflict on "shared": parent-a's own constraint, resolved alone, pins
// shared to the highest tag in its window (v3.0.0); parent-b's constraint
// excludes that exact pin, so the second AddEdge marks shared dirty and
// Phase D must actually intersect both constraints and repin to v2.0.0,
// the highest tag the two ranges agree on. parent-a and parent-b are
// themselves pinned by exact commit sha (not a tag) so shared's own
// resolution window only ever contains v1.0.0-v3.0.0.
func TestResolveBacktrackConvergesToHighest(t *testing.T) {
	dir := t.TempDir()
	repo := gittest.NewRepo(t, dir)

	repo.WriteFile("agents/shared.md", "---\ndependencies:\n  agents:\n    - {path: agents/old-dep.md}\n---\n")
	repo.WriteFile("agents/old-dep.md", "# old\n")
	repo.Commit("v1")
	repo.Tag("v1.0.0")

	repo.WriteFile("agents/shared.md", "---\ndependencies:\n  agents:\n    - {path: agents/new-dep.md}\n---\n")
	repo.WriteFile("agents/new-dep.md", "# new\n")
	repo.Commit("v2")
	repo.Tag("v2.0.0")

	repo.WriteFile("agents/shared.md", "---\ndependencies:\n  agents:\n    - {path: agents/new-dep.md}\n---\n# v3 bump\n")
	repo.Commit("v3")
	repo.Tag("v3.0.0")

	repo.WriteFile("agents/parent-a.md", "---\ndependencies:\n  agents:\n    - {path: agents/shared.md, version: \">=v1.0.0\"}\n---\n")
	repo.WriteFile("agents/parent-b.md", "---\ndependencies:\n  agents:\n    - {path: agents/shared.md, version: \"<v3.0.0\"}\n---\n")
	parentsSHA := repo.Commit("parents")

	m := manifest.New()
	m.Sources["community"] = manifest.Source{Name: "community", URL: dir}
	m.Deps[manifest.ResourceAgent]["parent-a"] = manifest.DependencySpec{Source: "community", Path: "agents/parent-a.md", Version: parentsSHA}
	m.Deps[manifest.ResourceAgent]["parent-b"] = manifest.DependencySpec{Source: "community", Path: "agents/parent-b.md", Version: parentsSHA}

	r := newTestResolver(t, m)
	result, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	sharedKey := lockfile.ResourceKey{Type: manifest.ResourceAgent, Lookup: "shared", Source: "community"}
	sharedEntry, ok := r.Registry().Get(sharedKey)
	if !ok {
		t.Fatal("expected registry entry for shared")
	}
	if sharedEntry.Dirty {
		t.Error("expected shared to no longer be dirty once backtracking converges")
	}

	var sawNewDep, sawOldDep bool
	var sharedVersion string
	for _, res := range result.Lockfile.Resources {
		if res.Name == "new-dep" {
			sawNewDep = true
		}
		if res.Name == "old-dep" {
			sawOldDep = true
		}
		if res.Name == "shared" {
			sharedVersion = res.Version
		}
	}
	if sharedVersion != "v2.0.0" {
		t.Errorf("expected shared to repin to v2.0.0 (highest tag satisfying both parents), got %q", sharedVersion)
	}
	if !sawNewDep {
		t.Error("expected new-dep to be installed")
	}
	if sawOldDep {
		t.Error("expected old-dep to be absent: shared's resolution never visits v1.0.0")
	}
}

// TestResolveTargetPathConflictAcrossSources reproduces the cross-source
// install-path collision: two unrelated sources each have a root resource
// with a transitive dependency on "agents/utils.md", so both resolve to the
// registry lookup-name "utils" and the same installed_at path, but with
// different content. Resolve must report a TargetPathConflict rather than
// silently letting one install clobber the other.
func TestResolveTargetPathConflictAcrossSources(t *testing.T) {
	srcA := newSourceRepo(t, map[string]string{
		"agents/main-a.md": "---\ndependencies:\n  agents:\n    - {path: agents/utils.md}\n---\n",
		"agents/utils.md":  "# utils from source A\n",
	}, "v1.0.0")
	srcB := newSourceRepo(t, map[string]string{
		"agents/main-b.md": "---\ndependencies:\n  agents:\n    - {path: agents/utils.md}\n---\n",
		"agents/utils.md":  "# utils from source B\n",
	}, "v1.0.0")

	m := manifest.New()
	m.Sources["source-a"] = manifest.Source{Name: "source-a", URL: srcA}
	m.Sources["source-b"] = manifest.Source{Name: "source-b", URL: srcB}
	m.Deps[manifest.ResourceAgent]["main-a"] = manifest.DependencySpec{Source: "source-a", Path: "agents/main-a.md", Version: "v1.0.0"}
	m.Deps[manifest.ResourceAgent]["main-b"] = manifest.DependencySpec{Source: "source-b", Path: "agents/main-b.md", Version: "v1.0.0"}

	r := newTestResolver(t, m)
	_, err := r.Resolve(context.Background())
	if err == nil {
		t.Fatal("expected a TargetPathConflict error")
	}

	agpmErr, ok := err.(*agpmerrors.Error)
	if !ok {
		t.Fatalf("expected *agpmerrors.Error, got %T: %v", err, err)
	}
	if agpmErr.Kind != agpmerrors.KindTargetPathConflict {
		t.Errorf("expected KindTargetPathConflict, got %v: %v", agpmErr.Kind, err)
	}
}
