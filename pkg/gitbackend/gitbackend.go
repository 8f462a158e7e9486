// Package gitbackend wraps the git binary with the small set of operations
// AGPM needs: bare-repo clone/fetch, ref listing and resolution, worktree
// creation, and content checksums. CloneBare, Fetch, ResolveRef and the
// checksum helpers return a *agpmerrors.Error with a stable kind on failure;
// ListTags, ListBranches and a failed `git worktree add` in CreateWorktree
// return plain wrapped errors that carry no kind. CloneBare and Fetch run git
// once; a failed clone or fetch is not retried.
package gitbackend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/cli/go-gh/v2/pkg/auth"

	"github.com/agpm-dev/agpm/pkg/agpmerrors"
	"github.com/agpm-dev/agpm/pkg/gitutil"
	"github.com/agpm-dev/agpm/pkg/logger"
)

var gitLog = logger.New("gitbackend:git")

// Backend executes git operations against bare repositories and their
// worktrees.
type Backend struct{}

// New returns a ready-to-use Backend.
func New() *Backend { return &Backend{} }

func (b *Backend) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// authenticatedURL injects a host's GitHub token (via cli/go-gh's auth
// lookup) into an HTTPS URL's userinfo for the duration of a single
// subprocess call. The token is never logged or returned to the caller.
func authenticatedURL(rawURL string) string {
	if !strings.HasPrefix(rawURL, "https://") {
		return rawURL
	}
	host := strings.TrimPrefix(rawURL, "https://")
	if idx := strings.IndexAny(host, "/:"); idx >= 0 {
		host = host[:idx]
	}
	token, source := auth.TokenForHost(host)
	if token == "" || source == "" {
		return rawURL
	}
	return "https://x-access-token:" + token + "@" + strings.TrimPrefix(rawURL, "https://")
}

// CloneBare clones url as a bare repository at destPath. Idempotent: if a
// bare repo already exists at destPath, this is a no-op.
func (b *Backend) CloneBare(ctx context.Context, name, url, destPath string) error {
	if info, err := os.Stat(filepath.Join(destPath, "HEAD")); err == nil && !info.IsDir() {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return agpmerrors.IoFailure("mkdir", filepath.Dir(destPath), classifyIoErr(err), err)
	}

	gitLog.Printf("cloning %s (bare) into %s", name, destPath)
	_, err := b.run(ctx, "", "clone", "--bare", authenticatedURL(url), destPath)
	if err != nil {
		if gitutil.IsAuthError(err.Error()) {
			return agpmerrors.SourceUnauthenticated(name)
		}
		return agpmerrors.SourceUnreachable(name, url, err)
	}
	return nil
}

// Fetch updates refs in an existing bare repo.
func (b *Backend) Fetch(ctx context.Context, name, bareRepo string) error {
	gitLog.Printf("fetching %s in %s", name, bareRepo)
	_, err := b.run(ctx, bareRepo, "fetch", "--prune", "origin", "+refs/*:refs/*")
	if err != nil {
		if gitutil.IsAuthError(err.Error()) {
			return agpmerrors.SourceUnauthenticated(name)
		}
		return agpmerrors.SourceUnreachable(name, bareRepo, err)
	}
	return nil
}

// ListTags returns every tag name in the bare repo.
func (b *Backend) ListTags(ctx context.Context, bareRepo string) ([]string, error) {
	out, err := b.run(ctx, bareRepo, "tag", "--list")
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return splitNonEmptyLines(out), nil
}

// ListBranches returns every local branch name in the bare repo.
func (b *Backend) ListBranches(ctx context.Context, bareRepo string) ([]string, error) {
	out, err := b.run(ctx, bareRepo, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return splitNonEmptyLines(out), nil
}

var shortShaPattern = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)

// ResolveRef resolves a tag, branch, SHA prefix, or HEAD to a full 40-hex
// commit SHA.
func (b *Backend) ResolveRef(ctx context.Context, bareRepo, ref string) (string, error) {
	if shortShaPattern.MatchString(ref) {
		out, err := b.run(ctx, bareRepo, "rev-parse", "--verify", ref+"^{commit}")
		if err != nil {
			return "", agpmerrors.RefNotFound(bareRepo, ref)
		}
		if len(ref) < 40 && isAmbiguous(ctx, b, bareRepo, ref) {
			return "", agpmerrors.AmbiguousShortSha(bareRepo, ref)
		}
		return strings.ToLower(out), nil
	}

	for _, candidate := range []string{"refs/tags/" + ref, "refs/heads/" + ref, ref} {
		out, err := b.run(ctx, bareRepo, "rev-parse", "--verify", candidate+"^{commit}")
		if err == nil {
			return strings.ToLower(out), nil
		}
	}
	return "", agpmerrors.RefNotFound(bareRepo, ref)
}

func isAmbiguous(ctx context.Context, b *Backend, bareRepo, prefix string) bool {
	out, err := b.run(ctx, bareRepo, "rev-parse", "--disambiguate="+prefix)
	if err != nil {
		return false
	}
	return len(splitNonEmptyLines(out)) > 1
}

// CreateWorktree checks out exactly sha as a detached HEAD at worktreePath.
// Fails if worktreePath already exists with a different HEAD.
func (b *Backend) CreateWorktree(ctx context.Context, bareRepo, sha, worktreePath string) error {
	if out, err := b.run(ctx, worktreePath, "rev-parse", "HEAD"); err == nil {
		if strings.EqualFold(out, sha) {
			return nil
		}
		return fmt.Errorf("worktree %s already exists at a different commit (%s != %s)", worktreePath, out, sha)
	}

	if err := os.MkdirAll(filepath.Dir(worktreePath), 0o755); err != nil {
		return agpmerrors.IoFailure("mkdir", filepath.Dir(worktreePath), classifyIoErr(err), err)
	}

	gitLog.Printf("creating worktree at %s for sha %s", worktreePath, sha)
	_, err := b.run(ctx, bareRepo, "worktree", "add", "--detach", worktreePath, sha)
	if err != nil {
		return fmt.Errorf("create worktree: %w", err)
	}
	return nil
}

// RemoveWorktree tolerates NotFound.
func (b *Backend) RemoveWorktree(ctx context.Context, bareRepo, worktreePath string) error {
	_, err := b.run(ctx, bareRepo, "worktree", "remove", "--force", worktreePath)
	if err != nil && !os.IsNotExist(err) {
		_ = os.RemoveAll(worktreePath)
	}
	return nil
}

// FileChecksum returns "sha256:<hex>" over the file's contents.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", agpmerrors.IoFailure("read", path, classifyIoErr(err), err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", agpmerrors.IoFailure("read", path, classifyIoErr(err), err)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

// DirectoryChecksum computes a checksum over a canonical serialization of
// (relative-path, mode-bit, file-checksum) triples, sorted lexicographically
// by relative path.
func DirectoryChecksum(root string) (string, error) {
	type entry struct {
		relPath string
		mode    os.FileMode
		sum     string
	}
	var entries []entry

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		sum, err := FileChecksum(path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{relPath: filepath.ToSlash(rel), mode: info.Mode().Perm(), sum: sum})
		return nil
	})
	if err != nil {
		return "", agpmerrors.IoFailure("walk", root, classifyIoErr(err), err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].relPath < entries[j].relPath })

	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s\x00%o\x00%s\n", e.relPath, e.mode, e.sum)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

func classifyIoErr(err error) agpmerrors.IoFailureKind {
	switch {
	case os.IsNotExist(err):
		return agpmerrors.IoNotFound
	case os.IsPermission(err):
		return agpmerrors.IoPermissionDenied
	default:
		return agpmerrors.IoOther
	}
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
