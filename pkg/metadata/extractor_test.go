package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agpm-dev/agpm/pkg/manifest"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExtractMarkdownDeps(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "agents/main-app.md", "---\ndependencies:\n  agents:\n    - path: agents/helper.md\n      version: v1.0.0\n---\n# Main\n")

	e := New()
	deps, warn, err := e.Extract(root, "agents/main-app.md", manifest.ResourceAgent, "community")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if warn != "" {
		t.Fatalf("unexpected warning: %s", warn)
	}
	if len(deps) != 1 {
		t.Fatalf("expected 1 dep, got %d", len(deps))
	}
	if deps[0].Type != manifest.ResourceAgent || deps[0].Spec.Path != "agents/helper.md" {
		t.Errorf("unexpected dep: %+v", deps[0])
	}
	if deps[0].Spec.Source != "community" {
		t.Errorf("expected inherited source, got %q", deps[0].Spec.Source)
	}
}

func TestExtractChildOverridesSource(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "agents/main-app.md", "---\ndependencies:\n  agents:\n    - path: agents/helper.md\n      source: other\n---\n")

	e := New()
	deps, _, err := e.Extract(root, "agents/main-app.md", manifest.ResourceAgent, "community")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if deps[0].Spec.Source != "other" {
		t.Errorf("expected override source, got %q", deps[0].Spec.Source)
	}
}

func TestExtractMalformedMetadataIsWarningNotError(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "agents/broken.md", "no frontmatter at all\n")

	e := New()
	deps, warn, err := e.Extract(root, "agents/broken.md", manifest.ResourceAgent, "community")
	if err != nil {
		t.Fatalf("expected no hard error, got %v", err)
	}
	if warn == "" {
		t.Error("expected a warning for malformed metadata")
	}
	if deps != nil {
		t.Errorf("expected no deps, got %v", deps)
	}
}

func TestExtractGlobExpansion(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "snippets/parent.md", "---\ndependencies:\n  commands:\n    - path: \"commands/helper-*.md\"\n---\n")
	writeFile(t, root, "commands/helper-one.md", "# one\n")
	writeFile(t, root, "commands/helper-two.md", "# two\n")

	e := New()
	deps, _, err := e.Extract(root, "snippets/parent.md", manifest.ResourceSnippet, "community")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(deps) != 2 {
		t.Fatalf("expected 2 expanded deps, got %d: %+v", len(deps), deps)
	}
}

func TestExtractSkillReadsSkillMD(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "skills/my-skill/SKILL.md", "---\ndependencies:\n  snippets:\n    - path: snippets/helper.md\n---\n")

	e := New()
	deps, _, err := e.Extract(root, "skills/my-skill", manifest.ResourceSkill, "community")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(deps) != 1 || deps[0].Type != manifest.ResourceSnippet {
		t.Fatalf("unexpected deps: %+v", deps)
	}
}

func TestExtractMCPServerJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "mcp-servers/github.json", `{"command": "npx", "dependencies": {"snippets": [{"path": "snippets/auth.md"}]}}`)

	e := New()
	deps, _, err := e.Extract(root, "mcp-servers/github.json", manifest.ResourceMCPServer, "community")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(deps) != 1 || deps[0].Spec.Path != "snippets/auth.md" {
		t.Fatalf("unexpected deps: %+v", deps)
	}
}
