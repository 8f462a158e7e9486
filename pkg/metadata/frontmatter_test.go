package metadata

import "testing"

func TestSplitFrontmatter(t *testing.T) {
	content := "---\ntitle: hello\n---\n# Body\n"
	yamlBlock, body, ok := SplitFrontmatter(content)
	if !ok {
		t.Fatal("expected frontmatter to be found")
	}
	if yamlBlock != "title: hello" {
		t.Errorf("yamlBlock = %q", yamlBlock)
	}
	if body != "# Body\n" {
		t.Errorf("body = %q", body)
	}
}

func TestSplitFrontmatterMissing(t *testing.T) {
	content := "# Just a heading\nNo frontmatter here.\n"
	_, body, ok := SplitFrontmatter(content)
	if ok {
		t.Fatal("expected no frontmatter")
	}
	if body != content {
		t.Errorf("expected body to equal original content")
	}
}

func TestParseMarkdownMetadata(t *testing.T) {
	content := "---\ndependencies:\n  agents:\n    - path: agents/helper.md\n      version: v1.0.0\n---\n# Main\n"
	deps, ok := ParseMarkdownMetadata(content)
	if !ok {
		t.Fatal("expected metadata to parse")
	}
	if len(deps.Dependencies.Agents) != 1 {
		t.Fatalf("expected 1 agent dep, got %d", len(deps.Dependencies.Agents))
	}
	if deps.Dependencies.Agents[0].Path != "agents/helper.md" {
		t.Errorf("path = %q", deps.Dependencies.Agents[0].Path)
	}
	if deps.Dependencies.Agents[0].Version != "v1.0.0" {
		t.Errorf("version = %q", deps.Dependencies.Agents[0].Version)
	}
}

func TestParseMarkdownMetadataNoFrontmatter(t *testing.T) {
	_, ok := ParseMarkdownMetadata("# just markdown\n")
	if ok {
		t.Error("expected ok=false for a document with no frontmatter")
	}
}
