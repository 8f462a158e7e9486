// Package sourcecache maps (source, url) pairs to bare Git repositories and
// (bare repo, sha) pairs to on-disk worktrees, coalescing concurrent callers
// onto a single underlying operation per key.
package sourcecache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"

	"github.com/agpm-dev/agpm/pkg/gitbackend"
	"github.com/agpm-dev/agpm/pkg/logger"
	"github.com/agpm-dev/agpm/pkg/repoutil"
)

var cacheLog = logger.New("sourcecache:cache")

// Cache coalesces Git source synchronization and worktree creation across
// concurrent callers within a single process. Only calls that overlap in
// time are coalesced; nothing is remembered in memory once a call returns,
// so every later BareRepoFor call fetches again.
type Cache struct {
	root    string
	backend *gitbackend.Backend

	syncGroup     singleflight.Group
	worktreeGroup singleflight.Group
}

// New returns a Cache rooted at root (typically AGPM_CACHE_DIR or the
// platform cache-home default).
func New(root string, backend *gitbackend.Backend) *Cache {
	return &Cache{root: root, backend: backend}
}

func normalizeURL(url string) string {
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimSuffix(url, ".git")
	if idx := strings.Index(url, "://"); idx >= 0 {
		scheme := strings.ToLower(url[:idx])
		rest := url[idx+3:]
		if hostEnd := strings.IndexAny(rest, "/"); hostEnd >= 0 {
			rest = strings.ToLower(rest[:hostEnd]) + rest[hostEnd:]
		} else {
			rest = strings.ToLower(rest)
		}
		return scheme + "://" + rest
	}
	return url
}

func (c *Cache) bareRepoPath(name, url string) string {
	sanitized := repoutil.SanitizeForFilename(name)
	return filepath.Join(c.root, "sources", sanitized)
}

// BareRepoFor ensures a bare repo exists and is up to date for (name, url),
// coalescing concurrent callers for the same normalized key into a single
// clone (when no bare repo exists yet) or fetch. Returns the bare repo path.
func (c *Cache) BareRepoFor(ctx context.Context, name, url string) (string, error) {
	key := name + "\x00" + normalizeURL(url)
	bareRepo := c.bareRepoPath(name, url)

	v, err, _ := c.syncGroup.Do(key, func() (interface{}, error) {
		cacheLog.Printf("syncing source %s (%s)", name, url)
		if _, statErr := os.Stat(filepath.Join(bareRepo, "HEAD")); statErr != nil {
			lock := flock.New(bareRepo + ".lock")
			if err := lock.Lock(); err != nil {
				return nil, fmt.Errorf("lock %s: %w", name, err)
			}
			defer lock.Unlock()

			if err := c.backend.CloneBare(ctx, name, url, bareRepo); err != nil {
				return nil, err
			}
			return bareRepo, nil
		}

		lock := flock.New(bareRepo + ".lock")
		if err := lock.Lock(); err != nil {
			return nil, fmt.Errorf("lock %s: %w", name, err)
		}
		defer lock.Unlock()

		if err := c.backend.Fetch(ctx, name, bareRepo); err != nil {
			return nil, err
		}
		return bareRepo, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// worktreePath derives a deterministic worktree directory from a sha:
// <cache>/worktrees/<source-sanitized>/<sha-first-12>/<sha-last-8>.
func (c *Cache) worktreePath(name, sha string) string {
	sanitized := repoutil.SanitizeForFilename(name)
	return filepath.Join(c.root, "worktrees", sanitized, sha[:12], sha[len(sha)-8:])
}

// WorktreeForSHA returns the worktree path for (name, url, sha), creating it
// if necessary. Coalesces concurrent callers for the same (bareRepo, sha).
func (c *Cache) WorktreeForSHA(ctx context.Context, name, url, sha string) (string, error) {
	bareRepo, err := c.BareRepoFor(ctx, name, url)
	if err != nil {
		return "", err
	}

	path := c.worktreePath(name, sha)
	key := bareRepo + "\x00" + sha

	v, err, _ := c.worktreeGroup.Do(key, func() (interface{}, error) {
		if err := c.backend.CreateWorktree(ctx, bareRepo, sha, path); err != nil {
			return nil, err
		}
		return path, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// CleanupWorktree best-effort removes a worktree, tolerating NotFound.
func (c *Cache) CleanupWorktree(ctx context.Context, name, url, path string) error {
	bareRepo := c.bareRepoPath(name, url)
	return c.backend.RemoveWorktree(ctx, bareRepo, path)
}
