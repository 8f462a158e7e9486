package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agpm-dev/agpm/pkg/constants"
	"github.com/agpm-dev/agpm/pkg/gittest"
)

// withProjectDir chdirs into a fresh temp directory for the duration of the
// test and points AGPM_CACHE_DIR at an isolated cache, so install/update
// commands never touch the real user cache.
func withProjectDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	t.Cleanup(func() { os.Chdir(cwd) })
	if err := os.Chdir(root); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Setenv("AGPM_CACHE_DIR", filepath.Join(root, ".cache"))
	return root
}

func TestInstallCommandEndToEnd(t *testing.T) {
	srcDir := t.TempDir()
	repo := gittest.NewRepo(t, srcDir)
	repo.WriteFile("agents/helper.md", "# helper\n")
	repo.Commit("initial")
	repo.Tag("v1.0.0")

	root := withProjectDir(t)
	manifestContent := "[sources.community]\nurl = \"" + srcDir + "\"\n\n" +
		"[agents.helper]\nsource = \"community\"\npath = \"agents/helper.md\"\nversion = \"v1.0.0\"\n"
	if err := os.WriteFile(filepath.Join(root, constants.ManifestFileName), []byte(manifestContent), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	cmd := NewInstallCommand()
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("install: %v", err)
	}

	installed := filepath.Join(root, ".claude/agents/agpm/helper.md")
	if _, err := os.Stat(installed); err != nil {
		t.Fatalf("expected helper.md installed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, constants.LockfileName)); err != nil {
		t.Fatalf("expected %s written: %v", constants.LockfileName, err)
	}
}

func TestInstallCommandNoLockSkipsWritingLockfile(t *testing.T) {
	srcDir := t.TempDir()
	repo := gittest.NewRepo(t, srcDir)
	repo.WriteFile("agents/helper.md", "# helper\n")
	repo.Commit("initial")
	repo.Tag("v1.0.0")

	root := withProjectDir(t)
	manifestContent := "[sources.community]\nurl = \"" + srcDir + "\"\n\n" +
		"[agents.helper]\nsource = \"community\"\npath = \"agents/helper.md\"\nversion = \"v1.0.0\"\n"
	os.WriteFile(filepath.Join(root, constants.ManifestFileName), []byte(manifestContent), 0o644)

	cmd := NewInstallCommand()
	cmd.SetArgs([]string{"--no-lock"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("install: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, constants.LockfileName)); !os.IsNotExist(err) {
		t.Errorf("expected no %s with --no-lock, stat err = %v", constants.LockfileName, err)
	}
}

func TestValidateCommandDoesNotInstall(t *testing.T) {
	srcDir := t.TempDir()
	repo := gittest.NewRepo(t, srcDir)
	repo.WriteFile("agents/helper.md", "# helper\n")
	repo.Commit("initial")
	repo.Tag("v1.0.0")

	root := withProjectDir(t)
	manifestContent := "[sources.community]\nurl = \"" + srcDir + "\"\n\n" +
		"[agents.helper]\nsource = \"community\"\npath = \"agents/helper.md\"\nversion = \"v1.0.0\"\n"
	os.WriteFile(filepath.Join(root, constants.ManifestFileName), []byte(manifestContent), 0o644)

	cmd := NewValidateCommand()
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, ".claude/agents/agpm/helper.md")); !os.IsNotExist(err) {
		t.Errorf("expected validate not to install anything, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, constants.LockfileName)); !os.IsNotExist(err) {
		t.Errorf("expected validate not to write %s, stat err = %v", constants.LockfileName, err)
	}
}
