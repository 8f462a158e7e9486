// Package resolver implements the ResolutionCore and BacktrackingLoop: it
// orchestrates source sync, batch version resolution, transitive extraction,
// conflict detection, and backtracking to a fixpoint, then assigns
// deterministic install paths and builds the lockfile.
package resolver

import (
	"context"
	"sync"

	"github.com/agpm-dev/agpm/pkg/agpmerrors"
	"github.com/agpm-dev/agpm/pkg/gitbackend"
	"github.com/agpm-dev/agpm/pkg/lockfile"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/metadata"
	"github.com/agpm-dev/agpm/pkg/registry"
	"github.com/agpm-dev/agpm/pkg/sourcecache"
)

// rootType tags the synthetic registry entries used as the parent edge for
// manifest-root dependencies, so root requirements flow through the same
// RequiredBy/conflict machinery as transitive ones.
const rootType manifest.ResourceType = "__root__"

var rootParent = lockfile.ResourceKey{Type: rootType, Lookup: "__manifest__"}

// maxBacktrackIterations bounds the Phase D fixpoint loop per spec.md §4.6.
const maxBacktrackIterations = 64

// Options configures a resolution run.
type Options struct {
	// MaxParallel bounds concurrent Git/network work in Phases A and B.
	// Zero means unbounded (one goroutine per work item).
	MaxParallel int
}

// Result is the outcome of a successful Resolve call.
type Result struct {
	Lockfile *lockfile.Lockfile
	Warnings []agpmerrors.Warning
}

// Resolver holds everything needed to resolve one project manifest: the
// manifest itself, a Git backend and source cache, and the in-memory
// registry built up across phases.
type Resolver struct {
	m           *manifest.Manifest
	manifestDir string
	cache       *sourcecache.Cache
	backend     *gitbackend.Backend
	extractor   *metadata.Extractor
	reg         *registry.Registry
	opts        Options

	bareRepos map[string]string // source name -> bare repo path
	rootKeys  []lockfile.ResourceKey

	mu       sync.Mutex
	warnings []agpmerrors.Warning
}

// New returns a Resolver ready to resolve m. manifestDir is the directory
// containing the manifest, used to resolve local (sourceless) dependency
// paths.
func New(m *manifest.Manifest, manifestDir string, cache *sourcecache.Cache, backend *gitbackend.Backend, opts Options) *Resolver {
	return &Resolver{
		m:           m,
		manifestDir: manifestDir,
		cache:       cache,
		backend:     backend,
		extractor:   metadata.New(),
		reg:         registry.New(),
		opts:        opts,
		bareRepos:   map[string]string{},
	}
}

// Registry exposes the underlying registry for callers (e.g. the installer)
// that need the full resolved entry set after Resolve returns.
func (r *Resolver) Registry() *registry.Registry { return r.reg }

// ContentPath resolves the on-disk path an entry's content should be read
// from, so the installer can read resolved content without duplicating the
// worktree/local-path lookup this package already does for checksumming.
func (r *Resolver) ContentPath(ctx context.Context, e *registry.Entry) (string, error) {
	return r.contentPath(ctx, e)
}

func (r *Resolver) warn(kind, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, agpmerrors.Warning{Kind: kind, Message: message})
}

// Resolve runs Phases A through E and returns the resulting lockfile and any
// accumulated warnings.
func (r *Resolver) Resolve(ctx context.Context) (*Result, error) {
	if err := r.phaseASourceSync(ctx); err != nil {
		return nil, err
	}
	if err := r.phaseBInitialResolution(ctx); err != nil {
		return nil, err
	}
	for _, key := range r.rootKeys {
		if err := r.extractFrom(ctx, key, nil); err != nil {
			return nil, err
		}
	}
	if err := r.backtrack(ctx); err != nil {
		return nil, err
	}
	if err := r.computeChecksums(ctx); err != nil {
		return nil, err
	}
	entries, err := r.assignInstallPaths()
	if err != nil {
		return nil, err
	}

	lf := r.buildLockfile(entries)
	return &Result{Lockfile: lf, Warnings: r.warnings}, nil
}

func defaultIfEmpty(version string) string {
	if version == "" {
		return "*"
	}
	return version
}
