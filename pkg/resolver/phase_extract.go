package resolver

import (
	"context"
	"strings"

	"github.com/agpm-dev/agpm/pkg/agpmerrors"
	"github.com/agpm-dev/agpm/pkg/lockfile"
	"github.com/agpm-dev/agpm/pkg/registry"
	"github.com/agpm-dev/agpm/pkg/resolve/version"
	"github.com/agpm-dev/agpm/pkg/stringutil"
)

// frame is one entry on the Phase C DFS path stack, used for cycle
// detection within a single source: (source, manifest-relative path).
type frame struct {
	source string
	path   string
}

// extractFrom reads key's resource content, extracts its declared children,
// and recurses into each newly discovered child. stack is the current DFS
// path within key's source; revisiting a (source, path) frame on the stack
// is a CircularDependency error.
func (r *Resolver) extractFrom(ctx context.Context, key lockfile.ResourceKey, stack []frame) error {
	entry, ok := r.reg.Get(key)
	if !ok {
		return nil
	}

	if entry.Key.Source == "" {
		r.warn("local_transitive_unsupported", "local dependency "+key.Lookup+" has no transitive resolution")
		return nil
	}

	cur := frame{source: entry.Key.Source, path: entry.Spec.Path}
	for _, f := range stack {
		if f == cur {
			return agpmerrors.CircularDependency(cyclePath(stack, cur))
		}
	}
	nextStack := append(append([]frame{}, stack...), cur)

	worktree, err := r.cache.WorktreeForSHA(ctx, entry.Key.Source, entry.SourceURL, entry.ResolvedSHA)
	if err != nil {
		return err
	}

	children, warning, err := r.extractor.Extract(worktree, entry.Spec.Path, key.Type, key.Source)
	if err != nil {
		return err
	}
	if warning != "" {
		r.warn("transitive_metadata_malformed", warning)
	}

	entry.Dependencies = nil
	for _, child := range children {
		typeDir := child.Type.DirName()
		lookup := stringutil.LookupName(child.Spec.Path, typeDir)
		childKey := lockfile.ResourceKey{Type: child.Type, Lookup: lookup, Source: child.Spec.Source}

		childEntry, created := r.reg.AddEdge(childKey, key, defaultIfEmpty(child.Spec.Version))
		entry.Dependencies = append(entry.Dependencies, childKey)

		// An edge back to a frame on the current DFS path closes a cycle.
		childFrame := frame{source: childKey.Source, path: child.Spec.Path}
		for _, f := range nextStack {
			if f == childFrame {
				return agpmerrors.CircularDependency(cyclePath(nextStack, childFrame))
			}
		}

		if created {
			childEntry.Spec = child.Spec
			if childEntry.Key.Source != "" {
				if err := r.ensureSourceSynced(ctx, childEntry.Key.Source); err != nil {
					return err
				}
			}
			if err := r.resolveEntry(ctx, childEntry); err != nil {
				return err
			}
			if err := r.extractFrom(ctx, childKey, nextStack); err != nil {
				return err
			}
			continue
		}

		if !r.constraintSatisfied(ctx, childEntry, child.Spec.Version) {
			childEntry.Dirty = true
		}
	}

	return nil
}

// ensureSourceSynced lazily syncs a source discovered only through a
// transitive dependency (one the manifest itself never references
// directly), so first reference is still where its network I/O happens.
func (r *Resolver) ensureSourceSynced(ctx context.Context, name string) error {
	r.mu.Lock()
	_, known := r.bareRepos[name]
	r.mu.Unlock()
	if known {
		return nil
	}
	return r.syncSource(ctx, name)
}

// constraintSatisfied reports whether a registry entry's current pin still
// satisfies a newly observed requester's constraint string.
func (r *Resolver) constraintSatisfied(ctx context.Context, e *registry.Entry, constraintStr string) bool {
	c := version.Classify(defaultIfEmpty(constraintStr))
	switch c.Kind {
	case version.KindExactSha:
		return strings.EqualFold(c.Sha, e.ResolvedSHA)
	case version.KindNamedRef:
		r.mu.Lock()
		bareRepo := r.bareRepos[e.Key.Source]
		r.mu.Unlock()
		sha, err := r.backend.ResolveRef(ctx, bareRepo, c.Ref)
		return err == nil && strings.EqualFold(sha, e.ResolvedSHA)
	case version.KindWildcard:
		return true
	default: // KindSemver
		v, ok := version.ParseTagVersion(e.ResolvedRef)
		if !ok {
			return false
		}
		return c.SatisfiedBy(v)
	}
}

// cyclePath renders the DFS stack plus the closing (repeated) frame as a
// path of resource paths, e.g. [agents/a.md agents/b.md agents/c.md agents/a.md].
func cyclePath(stack []frame, closing frame) []string {
	out := make([]string, 0, len(stack)+1)
	for _, f := range stack {
		out = append(out, f.path)
	}
	out = append(out, closing.path)
	return out
}
