package resolver

import (
	"context"

	"github.com/Masterminds/semver/v3"

	"github.com/agpm-dev/agpm/pkg/agpmerrors"
	"github.com/agpm-dev/agpm/pkg/registry"
	"github.com/agpm-dev/agpm/pkg/resolve/version"
)

// backtrack runs Phase D: repeatedly intersect dirty keys' parent
// constraints, re-pin to the highest satisfying version, and re-extract
// transitive metadata at the new pin, until no key is dirty or the safety
// bound is hit.
func (r *Resolver) backtrack(ctx context.Context) error {
	for iteration := 0; iteration < maxBacktrackIterations; iteration++ {
		dirty := r.reg.DirtyKeys()
		if len(dirty) == 0 {
			return nil
		}

		for _, key := range dirty {
			entry, _ := r.reg.Get(key)
			if err := r.repin(ctx, entry); err != nil {
				return err
			}
		}
	}
	return agpmerrors.ResolutionDidNotConverge(maxBacktrackIterations)
}

// repin intersects every parent edge's constraint for entry, re-pins it if
// the intersection selects a different sha, and re-extracts its transitive
// metadata at the new pin.
func (r *Resolver) repin(ctx context.Context, entry *registry.Entry) error {
	edges := make([]registry.ParentEdge, 0, len(entry.RequiredBy))
	for _, edge := range entry.RequiredBy {
		edges = append(edges, edge)
	}

	r.mu.Lock()
	bareRepo := r.bareRepos[entry.Key.Source]
	r.mu.Unlock()

	resolvedSHAForRef := map[string]string{}
	for _, edge := range edges {
		c := version.Classify(edge.Constraint)
		if c.Kind == version.KindNamedRef {
			if sha, err := r.backend.ResolveRef(ctx, bareRepo, c.Ref); err == nil {
				resolvedSHAForRef[edge.Constraint] = sha
			}
		}
	}

	constraints, err := registry.IntersectConstraints(entry.Key, edges, resolvedSHAForRef)
	if err != nil {
		return err
	}

	entry.Dirty = false

	newRef, newSHA := entry.ResolvedRef, entry.ResolvedSHA
	if constraints != nil {
		tags, err := r.backend.ListTags(ctx, bareRepo)
		if err != nil {
			return err
		}
		tag, err := highestSatisfying(tags, constraints)
		if err != nil {
			return agpmerrors.NoTagSatisfies(entry.Key.Source, constraints.String())
		}
		sha, err := r.backend.ResolveRef(ctx, bareRepo, tag)
		if err != nil {
			return err
		}
		newRef, newSHA = tag, sha
	}

	if newSHA == entry.ResolvedSHA {
		return nil
	}

	entry.ResolvedRef = newRef
	entry.ResolvedSHA = newSHA
	entry.Dependencies = nil
	if _, err := r.cache.WorktreeForSHA(ctx, entry.Key.Source, entry.SourceURL, newSHA); err != nil {
		return err
	}
	return r.extractFrom(ctx, entry.Key, nil)
}

// highestSatisfying returns the lexically-tie-broken highest semver tag
// satisfying constraints, mirroring version.SelectTag's tie-break rule.
func highestSatisfying(tags []string, constraints *semver.Constraints) (string, error) {
	var best string
	var bestVer *semver.Version

	for _, tag := range tags {
		v, ok := version.ParseTagVersion(tag)
		if !ok || !constraints.Check(v) {
			continue
		}
		if bestVer == nil {
			best, bestVer = tag, v
			continue
		}
		cmp := v.Compare(bestVer)
		if cmp > 0 || (cmp == 0 && tag < best) {
			best, bestVer = tag, v
		}
	}

	if bestVer == nil {
		return "", agpmerrors.NoTagSatisfies("", constraints.String())
	}
	return best, nil
}
