// Package registry implements the ResourceRegistry: an arena of resolved
// resources keyed by (type, lookup-name, source), with edges recording
// which parents required each entry and at what constraint.
// IntersectConstraints is the actual conflict detector: it folds every
// parent edge for a key into one constraint set, erroring out when
// exact-sha edges disagree or the combined range does not parse. A combined
// range that parses but that no version can satisfy is returned as an
// ordinary constraint set, not as an error.
package registry

import (
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/agpm-dev/agpm/pkg/agpmerrors"
	"github.com/agpm-dev/agpm/pkg/lockfile"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/resolve/version"
)

// ParentEdge is one (requiring resource, original constraint string) pair
// recorded against a registry entry.
type ParentEdge struct {
	ParentKey  lockfile.ResourceKey
	Constraint string
}

// Entry is one arena-allocated resolved resource. Entries are mutated in
// place by the backtracking loop (Phase D); they are never removed, only
// re-pinned.
type Entry struct {
	Key lockfile.ResourceKey

	SourceURL       string
	ResolvedRef     string
	ResolvedSHA     string // "" for local resources
	ContentChecksum string
	ContextChecksum string

	Spec manifest.DependencySpec

	// RequiredBy is the set of edges that led to this entry's allocation
	// or constraint intersection, keyed by parent key to keep one edge
	// per (parent, key) pair.
	RequiredBy map[lockfile.ResourceKey]ParentEdge

	// Constraint is the current intersection of all parents' semver
	// constraints for this key, or nil if the key only has exact/named
	// point constraints.
	Constraint *semver.Constraints

	// Dirty marks an entry whose pin may need to change because a new
	// parent constraint was added after the entry was first resolved.
	Dirty bool

	// Dependencies is the set of direct child keys discovered the last
	// time this entry was extracted, in discovery order.
	Dependencies []lockfile.ResourceKey

	AppliedPatches []lockfile.AppliedPatch
	InstalledAt    string
}

// Registry is the arena: a slice of entries plus an index from key to slot,
// giving O(1) lookup and stable iteration order by insertion.
type Registry struct {
	entries []*Entry
	index   map[lockfile.ResourceKey]int
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{index: map[lockfile.ResourceKey]int{}}
}

// Get returns the entry for key, if any.
func (r *Registry) Get(key lockfile.ResourceKey) (*Entry, bool) {
	idx, ok := r.index[key]
	if !ok {
		return nil, false
	}
	return r.entries[idx], true
}

// Allocate creates a fresh entry for key if one does not already exist,
// returning the entry and whether it was newly created.
func (r *Registry) Allocate(key lockfile.ResourceKey) (*Entry, bool) {
	if e, ok := r.Get(key); ok {
		return e, false
	}
	e := &Entry{Key: key, RequiredBy: map[lockfile.ResourceKey]ParentEdge{}}
	r.index[key] = len(r.entries)
	r.entries = append(r.entries, e)
	return e, true
}

// AddEdge records that parent required key via constraint, returning the
// entry (allocating it if this is its first reference).
func (r *Registry) AddEdge(key lockfile.ResourceKey, parent lockfile.ResourceKey, constraint string) (*Entry, bool) {
	e, created := r.Allocate(key)
	e.RequiredBy[parent] = ParentEdge{ParentKey: parent, Constraint: constraint}
	return e, created
}

// All returns every entry in insertion order.
func (r *Registry) All() []*Entry {
	return r.entries
}

// DirtyKeys returns the keys of every entry currently marked dirty, in
// insertion order, for the backtracking loop to process.
func (r *Registry) DirtyKeys() []lockfile.ResourceKey {
	var out []lockfile.ResourceKey
	for _, e := range r.entries {
		if e.Dirty {
			out = append(out, e.Key)
		}
	}
	return out
}

// IntersectConstraints combines every parent edge's original constraint
// string for key into a single semver constraint set, per spec.md §4.6
// Phase D step 1. ExactSha edges must all agree on the same sha or this
// returns a VersionConflict error; NamedRef edges are treated as a point
// constraint pinned to resolvedSHAForRef (the sha that ref currently
// resolves to).
func IntersectConstraints(key lockfile.ResourceKey, edges []ParentEdge, resolvedSHAForRef map[string]string) (*semver.Constraints, error) {
	var shas []string
	var rangeParts []string

	for _, edge := range edges {
		c := version.Classify(edge.Constraint)
		switch c.Kind {
		case version.KindExactSha:
			shas = append(shas, c.Sha)
		case version.KindNamedRef:
			if sha, ok := resolvedSHAForRef[edge.Constraint]; ok {
				shas = append(shas, sha)
			}
		case version.KindSemver:
			rangeParts = append(rangeParts, c.Range)
		case version.KindWildcard:
			// no constraint contribution
		}
	}

	for i := 1; i < len(shas); i++ {
		if shas[i] != shas[0] {
			return nil, agpmerrors.VersionConflict(string(key.Type)+":"+key.Lookup, requirerNames(edges))
		}
	}

	if len(rangeParts) == 0 {
		return nil, nil
	}

	combined := joinRanges(rangeParts)
	constraints, err := semver.NewConstraint(combined)
	if err != nil {
		return nil, agpmerrors.VersionConflict(string(key.Type)+":"+key.Lookup, requirerNames(edges))
	}
	return constraints, nil
}

func joinRanges(parts []string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "," + p
	}
	return out
}

func requirerNames(edges []ParentEdge) []string {
	var names []string
	for _, e := range edges {
		names = append(names, e.ParentKey.String())
	}
	sort.Strings(names)
	return names
}
