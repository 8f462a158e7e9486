// Package metadata implements the TransitiveExtractor: given a worktree
// path and a resource-relative path, it reads the artifact, parses its
// structured metadata (YAML frontmatter for markdown, top-level JSON for
// JSON-shaped resources), and returns the child dependency specs it
// declares.
package metadata

import (
	"strings"

	"github.com/goccy/go-yaml"
)

const frontmatterDelim = "---"

// SplitFrontmatter separates a markdown document's YAML frontmatter block
// from its body. Returns ("", content, false) if the document has no
// frontmatter block (no leading "---" line).
func SplitFrontmatter(content string) (yamlBlock, body string, ok bool) {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(normalized, frontmatterDelim+"\n") && normalized != frontmatterDelim {
		return "", content, false
	}

	rest := strings.TrimPrefix(normalized, frontmatterDelim+"\n")
	idx := strings.Index(rest, "\n"+frontmatterDelim)
	if idx < 0 {
		return "", content, false
	}

	yamlBlock = rest[:idx]
	body = strings.TrimPrefix(rest[idx+len("\n"+frontmatterDelim):], "\n")
	return yamlBlock, body, true
}

// frontmatterDeps is the shape of the `dependencies` section AGPM looks for
// inside a markdown resource's YAML frontmatter.
type frontmatterDeps struct {
	Dependencies struct {
		Agents     []rawChildDep `yaml:"agents" json:"agents"`
		Snippets   []rawChildDep `yaml:"snippets" json:"snippets"`
		Commands   []rawChildDep `yaml:"commands" json:"commands"`
		Scripts    []rawChildDep `yaml:"scripts" json:"scripts"`
		Hooks      []rawChildDep `yaml:"hooks" json:"hooks"`
		MCPServers []rawChildDep `yaml:"mcp-servers" json:"mcp-servers"`
		Skills     []rawChildDep `yaml:"skills" json:"skills"`
	} `yaml:"dependencies" json:"dependencies"`
}

type rawChildDep struct {
	Path    string `yaml:"path" json:"path"`
	Source  string `yaml:"source" json:"source"`
	Version string `yaml:"version" json:"version"`
	Target  string `yaml:"target" json:"target"`
	Install *bool  `yaml:"install" json:"install"`
}

// ParseMarkdownMetadata parses the frontmatter of a markdown resource. A
// document with no frontmatter block, or a malformed one, returns a zero
// frontmatterDeps and ok=false — the caller treats this as a warning, not an error.
func ParseMarkdownMetadata(content string) (deps frontmatterDeps, ok bool) {
	block, _, hasBlock := SplitFrontmatter(content)
	if !hasBlock {
		return frontmatterDeps{}, false
	}
	if err := yaml.Unmarshal([]byte(block), &deps); err != nil {
		return frontmatterDeps{}, false
	}
	return deps, true
}
