// Package cli implements AGPM's cobra command tree: install, update,
// validate, add, and a migrate stub, each a thin wrapper around
// pkg/resolver and pkg/installer.
package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agpm-dev/agpm/pkg/constants"
	"github.com/agpm-dev/agpm/pkg/gitbackend"
	"github.com/agpm-dev/agpm/pkg/installer"
	"github.com/agpm-dev/agpm/pkg/lockfile"
	"github.com/agpm-dev/agpm/pkg/logger"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/resolver"
	"github.com/agpm-dev/agpm/pkg/sourcecache"
)

var cliLog = logger.New("cli:run")

// runFlags collects the flags shared by install and update.
type runFlags struct {
	frozen      bool
	noLock      bool
	force       bool
	maxParallel int
}

func bindRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().BoolVar(&f.frozen, "frozen", false, fmt.Sprintf("fail instead of updating %s if resolution would change it", constants.LockfileName))
	cmd.Flags().BoolVar(&f.noLock, "no-lock", false, fmt.Sprintf("resolve and install without writing %s", constants.LockfileName))
	cmd.Flags().BoolVar(&f.force, "force", false, "bypass the source cache and re-sync every source from scratch")
	cmd.Flags().IntVar(&f.maxParallel, "max-parallel", 0, "bound concurrent resolve/install work (0 = unbounded)")
}

// findProjectRoot walks up from the working directory looking for
// agpm.toml, the way `git` walks up looking for .git.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, constants.ManifestFileName)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found in %q or any parent directory", constants.ManifestFileName, dir)
		}
		dir = parent
	}
}

func cacheRoot() string {
	if dir := os.Getenv("AGPM_CACHE_DIR"); dir != "" {
		return dir
	}
	cacheHome, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), constants.DefaultCacheDirName)
	}
	return filepath.Join(cacheHome, constants.DefaultCacheDirName)
}

// loadPrivateOverlay reads agpm.private.toml for its patches, which apply on
// top of the project manifest's own patches but are never committed to the
// shared lockfile's applied_patches provenance as non-private.
func loadPrivateOverlay(root string) (*manifest.Manifest, error) {
	path := filepath.Join(root, constants.PrivateManifestFileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return manifest.New(), nil
		}
		return nil, err
	}
	return manifest.Load(path)
}

// runResult bundles what install/update report back to their Run functions.
type runResult struct {
	resolution *resolver.Result
	installs   []installer.Result
}

// resolveAndInstall runs Phases A-E against the project manifest rooted at
// root, then materializes every resolved entry, honoring --frozen/--no-lock/
// --force/--max-parallel from f.
func resolveAndInstall(ctx context.Context, root string, f runFlags) (*runResult, error) {
	m, err := manifest.Load(filepath.Join(root, constants.ManifestFileName))
	if err != nil {
		return nil, err
	}
	private, err := loadPrivateOverlay(root)
	if err != nil {
		return nil, err
	}

	if f.force {
		cliLog.Printf("force: removing source cache at %s", cacheRoot())
		if err := os.RemoveAll(cacheRoot()); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	cache := sourcecache.New(cacheRoot(), gitbackend.New())
	r := resolver.New(m, root, cache, gitbackend.New(), resolver.Options{MaxParallel: f.maxParallel})

	result, err := r.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	lockPath := filepath.Join(root, constants.LockfileName)
	if f.frozen {
		if changed, err := lockfileWouldChange(lockPath, result.Lockfile); err != nil {
			return nil, err
		} else if changed {
			return nil, fmt.Errorf("resolution would change %s; rerun without --frozen to update it", constants.LockfileName)
		}
	}

	in := installer.New(r, root, installer.Options{
		MaxParallel:    f.maxParallel,
		PrivatePatches: private.Patches,
	})
	installResults, err := in.InstallAll(ctx, r.Registry().All(), m.Patches)
	if err != nil {
		return nil, err
	}
	applyInstallResultsToLockfile(result.Lockfile, installResults)

	if !f.noLock {
		if err := lockfile.Save(result.Lockfile, lockPath); err != nil {
			return nil, err
		}
	}

	return &runResult{resolution: result, installs: installResults}, nil
}

// applyInstallResultsToLockfile copies each install's applied-patch
// provenance and context checksum back onto the lockfile document Resolve
// already built. Patches are only known once the installer has actually
// applied them, which happens after resolution, so the lockfile Resolve
// returns is reconciled here rather than built with this data up front.
func applyInstallResultsToLockfile(lf *lockfile.Lockfile, results []installer.Result) {
	byKey := make(map[lockfile.ResourceKey]installer.Result, len(results))
	for _, res := range results {
		byKey[res.Key] = res
	}
	for i := range lf.Resources {
		r := &lf.Resources[i]
		key := lockfile.ResourceKey{Type: r.ResourceType, Lookup: r.Name, Source: r.Source}
		res, ok := byKey[key]
		if !ok {
			continue
		}
		r.AppliedPatches = res.AppliedPatches
		r.ContextChecksum = res.ContextChecksum
	}
}

// lockfileWouldChange reports whether resolving again would produce a
// different agpm.lock than what's on disk. A missing lockfile counts as a
// change (first install).
func lockfileWouldChange(path string, next *lockfile.Lockfile) (bool, error) {
	existing, err := lockfile.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	existingBytes, err := lockfile.Encode(existing)
	if err != nil {
		return false, err
	}
	nextBytes, err := lockfile.Encode(next)
	if err != nil {
		return false, err
	}
	return !bytes.Equal(existingBytes, nextBytes), nil
}
