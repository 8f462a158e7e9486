// Package installer implements the Installer: it materializes resolved
// registry entries onto disk at their assigned install paths, applying
// patches in project-then-private order, writing atomically via a temp file
// plus rename, and recording managed paths in the project .gitignore.
package installer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/sourcegraph/conc/pool"

	"github.com/agpm-dev/agpm/pkg/agpmerrors"
	"github.com/agpm-dev/agpm/pkg/gitignoremgr"
	"github.com/agpm-dev/agpm/pkg/lockfile"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/registry"
)

// defaultMaxSkillBytes and defaultMaxSkillFiles bound a single skill
// directory's materialized size, per spec.md's SkillSizeExceeded invariant.
const (
	defaultMaxSkillBytes = 50 * 1024 * 1024
	defaultMaxSkillFiles = 1000
)

// ContentSource resolves a registry entry's resolved content to a path on
// disk (a cache worktree for remote entries, a manifest-relative path for
// local ones). *resolver.Resolver satisfies this after Resolve has run.
type ContentSource interface {
	ContentPath(ctx context.Context, e *registry.Entry) (string, error)
}

// Options configures an Installer.
type Options struct {
	// MaxParallel bounds concurrent install work. Zero means unbounded.
	MaxParallel int
	// PrivatePatches are applied after project and per-dependency patches,
	// typically sourced from agpm.private.toml.
	PrivatePatches []manifest.Patch
	MaxSkillBytes  int64
	MaxSkillFiles  int64
}

// Installer writes resolved entries to their installed_at path.
type Installer struct {
	src         ContentSource
	projectRoot string
	gitignore   *gitignoremgr.Manager
	opts        Options

	mcpMu    sync.Mutex
	mcpLocks map[string]*sync.Mutex
}

// New returns an Installer rooted at projectRoot, reading resolved content
// through src.
func New(src ContentSource, projectRoot string, opts Options) *Installer {
	if opts.MaxSkillBytes == 0 {
		opts.MaxSkillBytes = defaultMaxSkillBytes
	}
	if opts.MaxSkillFiles == 0 {
		opts.MaxSkillFiles = defaultMaxSkillFiles
	}
	return &Installer{
		src:         src,
		projectRoot: projectRoot,
		gitignore:   gitignoremgr.New(filepath.Join(projectRoot, ".gitignore")),
		opts:        opts,
		mcpLocks:    map[string]*sync.Mutex{},
	}
}

// lockFor returns the mutex serializing read-modify-write access to a
// single mcp-server merge-target document, creating it on first use.
func (in *Installer) lockFor(path string) *sync.Mutex {
	in.mcpMu.Lock()
	defer in.mcpMu.Unlock()
	mu, ok := in.mcpLocks[path]
	if !ok {
		mu = &sync.Mutex{}
		in.mcpLocks[path] = mu
	}
	return mu
}

// Result reports the outcome of installing one entry.
type Result struct {
	Key             lockfile.ResourceKey
	Installed       bool // false when skipped: install=false or content unchanged
	AppliedPatches  []lockfile.AppliedPatch
	ContextChecksum string
}

// contextChecksum hashes the applied-patch set deterministically, so the
// lockfile's context_checksum changes whenever the patches that produced a
// resource's installed content change, independent of content_checksum.
// Returns "" when no patches were applied, matching spec.md's "if any
// variant/patch input" qualifier.
func contextChecksum(applied []lockfile.AppliedPatch) string {
	if len(applied) == 0 {
		return ""
	}
	h, err := hashstructure.Hash(applied, hashstructure.FormatV2, nil)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("hashstructure:%016x", h)
}

// InstallAll installs every entry, bounded by Options.MaxParallel. A failure
// installing one entry does not block the others from being attempted; once
// all work completes, every error is returned combined into one, and the
// results of failed entries are omitted.
func (in *Installer) InstallAll(ctx context.Context, entries []*registry.Entry, projectPatches []manifest.Patch) ([]Result, error) {
	p := pool.NewWithResults[Result]().WithErrors()
	if in.opts.MaxParallel > 0 {
		p = p.WithMaxGoroutines(in.opts.MaxParallel)
	}
	for _, e := range entries {
		e := e
		p.Go(func() (Result, error) {
			return in.Install(ctx, e, projectPatches)
		})
	}
	return p.Wait()
}

// Install materializes a single entry, dispatching to the skill
// specialization for directory-shaped resources.
func (in *Installer) Install(ctx context.Context, e *registry.Entry, projectPatches []manifest.Patch) (Result, error) {
	if !e.Spec.InstallEnabled() {
		return Result{Key: e.Key, Installed: false}, nil
	}
	switch e.Key.Type {
	case manifest.ResourceSkill:
		return in.installSkill(ctx, e, projectPatches)
	case manifest.ResourceMCPServer:
		return in.installMCPServer(ctx, e)
	default:
		return in.installFile(ctx, e, projectPatches)
	}
}

func (in *Installer) installFile(ctx context.Context, e *registry.Entry, projectPatches []manifest.Patch) (Result, error) {
	srcPath, err := in.src.ContentPath(ctx, e)
	if err != nil {
		return Result{}, err
	}
	content, err := os.ReadFile(srcPath)
	if err != nil {
		return Result{}, agpmerrors.IoFailure("read", srcPath, agpmerrors.ClassifyIoErr(err), err)
	}

	ops := collectPatches(e.Key.Lookup, projectPatches, e.Spec.Patches, in.opts.PrivatePatches)
	content, applied := applyPatches(content, ops)
	ctxSum := contextChecksum(applied)

	dest := filepath.Join(in.projectRoot, filepath.FromSlash(e.InstalledAt))
	if existing, err := os.ReadFile(dest); err == nil && bytes.Equal(existing, content) {
		return Result{Key: e.Key, Installed: false, AppliedPatches: applied, ContextChecksum: ctxSum}, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Result{}, agpmerrors.IoFailure("mkdir", filepath.Dir(dest), agpmerrors.ClassifyIoErr(err), err)
	}
	if err := atomicWrite(dest, content); err != nil {
		return Result{}, err
	}
	if err := in.recordGitignore(e.InstalledAt); err != nil {
		return Result{}, err
	}

	return Result{Key: e.Key, Installed: true, AppliedPatches: applied, ContextChecksum: ctxSum}, nil
}

// atomicWrite writes content to a uuid-suffixed sibling of dest and renames
// it into place, so a concurrent reader never observes a partial file.
func atomicWrite(dest string, content []byte) error {
	tmp := dest + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return agpmerrors.IoFailure("write", tmp, agpmerrors.ClassifyIoErr(err), err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return agpmerrors.IoFailure("rename", dest, agpmerrors.ClassifyIoErr(err), err)
	}
	return nil
}

// recordGitignore adds the managed agpm/ subdirectory containing installedAt
// to .gitignore. Entries installed under an explicit `target` override live
// outside any agpm/ subdirectory and are left to the user to ignore (or not).
func (in *Installer) recordGitignore(installedAt string) error {
	idx := strings.Index(installedAt, "/agpm/")
	if idx < 0 {
		return nil
	}
	return in.gitignore.Add(installedAt[:idx] + "/agpm/")
}
