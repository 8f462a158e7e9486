package resolver

import (
	"context"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"github.com/agpm-dev/agpm/pkg/agpmerrors"
	"github.com/agpm-dev/agpm/pkg/lockfile"
	"github.com/agpm-dev/agpm/pkg/logger"
	"github.com/agpm-dev/agpm/pkg/registry"
	"github.com/agpm-dev/agpm/pkg/resolve/version"
	"github.com/agpm-dev/agpm/pkg/stringutil"
)

var resolverLog = logger.New("resolver:phase")

func (r *Resolver) newErrorPool() *pool.ErrorPool {
	p := pool.New().WithErrors()
	if r.opts.MaxParallel > 0 {
		p = p.WithMaxGoroutines(r.opts.MaxParallel)
	}
	return p
}

// phaseASourceSync walks the manifest for every unique remote source name
// referenced (directly; transitive sources are synced lazily as they're
// discovered in Phase C) and ensures each has a synced bare repo. All
// network I/O in a resolution run happens either here or in the lazy
// sync path transitive extraction uses for newly discovered sources.
func (r *Resolver) phaseASourceSync(ctx context.Context) error {
	names := map[string]bool{}
	for _, dep := range r.m.AllDependencies() {
		if dep.Spec.Source != "" {
			names[dep.Spec.Source] = true
		}
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	p := r.newErrorPool()
	for _, name := range sorted {
		name := name
		p.Go(func() error { return r.syncSource(ctx, name) })
	}
	return p.Wait()
}

// syncSource ensures a bare repo exists and is up to date for a declared
// source name, recording its local path for later phases. Safe to call
// more than once for the same name (the underlying cache coalesces).
func (r *Resolver) syncSource(ctx context.Context, name string) error {
	src, ok := r.m.Sources[name]
	if !ok {
		return agpmerrors.SourceNotFound(name)
	}
	resolverLog.Printf("syncing source %s", name)
	bareRepo, err := r.cache.BareRepoFor(ctx, name, src.URL)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.bareRepos[name] = bareRepo
	r.mu.Unlock()
	return nil
}

// phaseBInitialResolution allocates a registry entry for every manifest-root
// dependency, resolves its version constraint to a pinned SHA, and ensures a
// worktree exists for that SHA, in parallel across the root set.
func (r *Resolver) phaseBInitialResolution(ctx context.Context) error {
	for _, dep := range r.m.AllDependencies() {
		typeDir := dep.Type.DirName()
		lookup := stringutil.LookupName(dep.Spec.Path, typeDir)
		key := lockfile.ResourceKey{Type: dep.Type, Lookup: lookup, Source: dep.Spec.Source}

		entry, created := r.reg.AddEdge(key, rootParent, dep.Spec.Version)
		if created {
			entry.Spec = dep.Spec
			r.rootKeys = append(r.rootKeys, key)
		}
	}

	p := r.newErrorPool()
	for _, key := range r.rootKeys {
		key := key
		p.Go(func() error {
			entry, _ := r.reg.Get(key)
			return r.resolveEntry(ctx, entry)
		})
	}
	return p.Wait()
}

// resolveEntry pins a registry entry's version constraint to a concrete
// (ref, sha) and ensures the worktree for that sha exists. Local
// (sourceless) entries are left unresolved — they have no ref/sha.
func (r *Resolver) resolveEntry(ctx context.Context, e *registry.Entry) error {
	if e.Key.Source == "" {
		return nil
	}

	src := r.m.Sources[e.Key.Source]
	e.SourceURL = src.URL

	r.mu.Lock()
	bareRepo := r.bareRepos[e.Key.Source]
	r.mu.Unlock()

	c := version.Classify(defaultIfEmpty(e.Spec.Version))
	ref, sha, err := r.resolveConstraint(ctx, bareRepo, e.Key.Source, c)
	if err != nil {
		return err
	}
	e.ResolvedRef = ref
	e.ResolvedSHA = sha

	_, err = r.cache.WorktreeForSHA(ctx, e.Key.Source, e.SourceURL, sha)
	return err
}

// resolveConstraint resolves a classified constraint against a source's
// bare repo, per spec.md §4.3 resolution steps.
func (r *Resolver) resolveConstraint(ctx context.Context, bareRepo, sourceName string, c version.Constraint) (ref, sha string, err error) {
	switch c.Kind {
	case version.KindExactSha:
		sha, err = r.backend.ResolveRef(ctx, bareRepo, c.Sha)
		return c.Sha, sha, err
	case version.KindNamedRef:
		sha, err = r.backend.ResolveRef(ctx, bareRepo, c.Ref)
		return c.Ref, sha, err
	default: // KindWildcard, KindSemver
		tags, err := r.backend.ListTags(ctx, bareRepo)
		if err != nil {
			return "", "", err
		}
		tag, err := version.SelectTag(sourceName, c, tags)
		if err != nil {
			return "", "", err
		}
		sha, err = r.backend.ResolveRef(ctx, bareRepo, tag)
		return tag, sha, err
	}
}
