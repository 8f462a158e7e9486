package gitbackend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/agpm-dev/agpm/pkg/gittest"
)

func TestCloneFetchResolveAndWorktree(t *testing.T) {
	root := t.TempDir()
	srcDir := filepath.Join(root, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	repo := gittest.NewRepo(t, srcDir)
	repo.WriteFile("agents/main-app.md", "# main app\n")
	firstSHA := repo.Commit("initial")
	repo.Tag("v1.0.0")

	bareDir := filepath.Join(root, "bare")
	ctx := context.Background()
	b := New()

	if err := b.CloneBare(ctx, "test", srcDir, bareDir); err != nil {
		t.Fatalf("CloneBare: %v", err)
	}
	// idempotent re-clone
	if err := b.CloneBare(ctx, "test", srcDir, bareDir); err != nil {
		t.Fatalf("CloneBare (second call): %v", err)
	}

	tags, err := b.ListTags(ctx, bareDir)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if len(tags) != 1 || tags[0] != "v1.0.0" {
		t.Fatalf("tags = %v", tags)
	}

	sha, err := b.ResolveRef(ctx, bareDir, "v1.0.0")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if sha != firstSHA {
		t.Errorf("resolved sha = %s, want %s", sha, firstSHA)
	}

	worktreeDir := filepath.Join(root, "worktree")
	if err := b.CreateWorktree(ctx, bareDir, sha, worktreeDir); err != nil {
		t.Fatalf("CreateWorktree: %v", err)
	}
	if _, err := os.Stat(filepath.Join(worktreeDir, "agents/main-app.md")); err != nil {
		t.Errorf("expected file in worktree: %v", err)
	}
	// idempotent re-create at the same sha
	if err := b.CreateWorktree(ctx, bareDir, sha, worktreeDir); err != nil {
		t.Fatalf("CreateWorktree (second call): %v", err)
	}

	// add a second commit and fetch it
	repo.WriteFile("agents/helper.md", "# helper\n")
	repo.Commit("add helper")
	repo.Tag("v2.0.0")
	if err := b.Fetch(ctx, "test", bareDir); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	tags, err = b.ListTags(ctx, bareDir)
	if err != nil {
		t.Fatalf("ListTags after fetch: %v", err)
	}
	if len(tags) != 2 {
		t.Errorf("tags after fetch = %v", tags)
	}
}

func TestResolveRefNotFound(t *testing.T) {
	root := t.TempDir()
	srcDir := filepath.Join(root, "src")
	os.MkdirAll(srcDir, 0o755)
	repo := gittest.NewRepo(t, srcDir)
	repo.WriteFile("a.md", "a")
	repo.Commit("init")

	bareDir := filepath.Join(root, "bare")
	ctx := context.Background()
	b := New()
	if err := b.CloneBare(ctx, "test", srcDir, bareDir); err != nil {
		t.Fatalf("CloneBare: %v", err)
	}

	if _, err := b.ResolveRef(ctx, bareDir, "does-not-exist"); err == nil {
		t.Fatal("expected error for missing ref")
	}
}

func TestFileAndDirectoryChecksum(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	sum1, err := FileChecksum(filepath.Join(root, "a.txt"))
	if err != nil {
		t.Fatalf("FileChecksum: %v", err)
	}
	sum2, err := FileChecksum(filepath.Join(root, "a.txt"))
	if err != nil {
		t.Fatalf("FileChecksum: %v", err)
	}
	if sum1 != sum2 {
		t.Errorf("checksum not stable: %s vs %s", sum1, sum2)
	}
	if sum1[:7] != "sha256:" {
		t.Errorf("expected sha256: prefix, got %s", sum1)
	}

	subdir := filepath.Join(root, "dir")
	os.MkdirAll(subdir, 0o755)
	os.WriteFile(filepath.Join(subdir, "b.txt"), []byte("world"), 0o644)
	os.WriteFile(filepath.Join(subdir, "c.txt"), []byte("!"), 0o644)

	dsum1, err := DirectoryChecksum(subdir)
	if err != nil {
		t.Fatalf("DirectoryChecksum: %v", err)
	}
	dsum2, err := DirectoryChecksum(subdir)
	if err != nil {
		t.Fatalf("DirectoryChecksum: %v", err)
	}
	if dsum1 != dsum2 {
		t.Errorf("directory checksum not stable: %s vs %s", dsum1, dsum2)
	}
}
