package resolver

import (
	"context"
	"path"
	"path/filepath"
	"sort"

	"github.com/agpm-dev/agpm/pkg/agpmerrors"
	"github.com/agpm-dev/agpm/pkg/constants"
	"github.com/agpm-dev/agpm/pkg/gitbackend"
	"github.com/agpm-dev/agpm/pkg/lockfile"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/registry"
)

const defaultTool = "claude-code"

// computeChecksums reads the resolved content for every non-root entry and
// records its content checksum, so Phase E can detect TargetPathConflict by
// comparing checksums rather than just paths.
func (r *Resolver) computeChecksums(ctx context.Context) error {
	for _, e := range r.reg.All() {
		if e.Key.Type == rootType {
			continue
		}

		full, err := r.contentPath(ctx, e)
		if err != nil {
			return err
		}

		var checksum string
		if e.Key.Type == manifest.ResourceSkill {
			checksum, err = gitbackend.DirectoryChecksum(full)
		} else {
			checksum, err = gitbackend.FileChecksum(full)
		}
		if err != nil {
			return err
		}
		e.ContentChecksum = checksum
	}
	return nil
}

// contentPath resolves the on-disk path to read an entry's content from:
// a worktree path for remote entries, a manifest-relative path for local
// ones.
func (r *Resolver) contentPath(ctx context.Context, e *registry.Entry) (string, error) {
	if e.Key.Source == "" {
		return filepath.Join(r.manifestDir, filepath.FromSlash(e.Spec.Path)), nil
	}
	worktree, err := r.cache.WorktreeForSHA(ctx, e.Key.Source, e.SourceURL, e.ResolvedSHA)
	if err != nil {
		return "", err
	}
	return filepath.Join(worktree, filepath.FromSlash(e.Spec.Path)), nil
}

// assignInstallPaths computes each entry's deterministic install path per
// spec.md §4.6 Phase E, then checks for TargetPathConflict: two entries
// sharing installed_at with differing content_checksum.
func (r *Resolver) assignInstallPaths() ([]*registry.Entry, error) {
	entries := r.reg.All()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key.Less(entries[j].Key) })

	byPath := map[string][]*registry.Entry{}
	var nonRoot []*registry.Entry

	for _, e := range entries {
		if e.Key.Type == rootType {
			continue
		}
		e.InstalledAt = installPathFor(e)
		nonRoot = append(nonRoot, e)

		// mcp-server entries merge independently into a shared target
		// document (pkg/mcpconfig); sharing installed_at is expected, not a
		// TargetPathConflict.
		if e.Key.Type == manifest.ResourceMCPServer {
			continue
		}
		byPath[e.InstalledAt] = append(byPath[e.InstalledAt], e)
	}

	var conflictPaths []string
	for p := range byPath {
		conflictPaths = append(conflictPaths, p)
	}
	sort.Strings(conflictPaths)

	for _, p := range conflictPaths {
		es := byPath[p]
		if len(es) < 2 {
			continue
		}
		checksum := es[0].ContentChecksum
		conflict := false
		var names []string
		for _, e := range es {
			names = append(names, e.Key.String())
			if e.ContentChecksum != checksum {
				conflict = true
			}
		}
		if conflict {
			return nil, agpmerrors.TargetPathConflict(p, names)
		}
	}

	return nonRoot, nil
}

// installPathFor computes a single entry's installed_at per the rules in
// spec.md §4.6 Phase E.
func installPathFor(e *registry.Entry) string {
	tool := e.Spec.Tool
	if tool == "" {
		tool = defaultTool
	}
	typeDir := constants.DefaultToolDir(tool, e.Key.Type)

	// mcp-server resources don't get their own file: every such dependency
	// for a tool merges into that tool's single shared config document.
	if e.Key.Type == manifest.ResourceMCPServer {
		if e.Spec.Target != "" {
			return e.Spec.Target
		}
		return typeDir
	}

	subpath := e.Key.Lookup + path.Ext(e.Spec.Path)
	if e.Spec.Filename != "" {
		dir := path.Dir(subpath)
		if dir == "." {
			subpath = e.Spec.Filename
		} else {
			subpath = path.Join(dir, e.Spec.Filename)
		}
	}

	if e.Spec.Target != "" {
		return path.Join(typeDir, e.Spec.Target, subpath)
	}
	return path.Join(typeDir, "agpm", subpath)
}

// buildLockfile assembles the final Lockfile document from resolved
// entries, sorted deterministically by lockfile.Lockfile.Sort.
func (r *Resolver) buildLockfile(entries []*registry.Entry) *lockfile.Lockfile {
	lf := lockfile.New()
	for name, src := range r.m.Sources {
		lf.Sources[name] = src.URL
	}

	for _, e := range entries {
		deps := make([]string, 0, len(e.Dependencies))
		for _, d := range e.Dependencies {
			deps = append(deps, d.String())
		}
		lf.Resources = append(lf.Resources, lockfile.LockedResource{
			Name:            e.Key.Lookup,
			ResourceType:    e.Key.Type,
			Source:          e.Key.Source,
			URL:             e.SourceURL,
			Path:            e.Spec.Path,
			Version:         e.ResolvedRef,
			ResolvedCommit:  e.ResolvedSHA,
			Checksum:        e.ContentChecksum,
			ContextChecksum: e.ContextChecksum,
			InstalledAt:     e.InstalledAt,
			Tool:            tool(e),
			Dependencies:    deps,
			AppliedPatches:  e.AppliedPatches,
		})
	}

	lf.Sort()
	return lf
}

func tool(e *registry.Entry) string {
	if e.Spec.Tool != "" {
		return e.Spec.Tool
	}
	return defaultTool
}
