package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/agpm-dev/agpm/pkg/logger"
	"github.com/agpm-dev/agpm/pkg/manifest"
)

var extractLog = logger.New("metadata:extractor")

// ChildDep is one transitive dependency discovered inside a parent
// resource's metadata, already expanded from any glob pattern into a
// concrete path.
type ChildDep struct {
	Type manifest.ResourceType
	Spec manifest.DependencySpec
}

// Extractor reads resource files from worktrees and extracts their
// declared transitive dependencies.
type Extractor struct{}

// New returns a ready-to-use Extractor.
func New() *Extractor { return &Extractor{} }

// globChars are the characters that mark a path as a glob pattern per the
// spec's glob-expansion rule.
const globChars = "*?["

// Extract reads the resource at worktreeRoot/relPath (or, for skills, its
// SKILL.md) and returns its declared children. A resource with no parsable
// metadata returns (nil, warning, nil) — malformed metadata is never a hard
// error.
func (e *Extractor) Extract(worktreeRoot, relPath string, rt manifest.ResourceType, parentSource string) ([]ChildDep, string, error) {
	readPath := relPath
	if rt == manifest.ResourceSkill {
		readPath = filepath.Join(relPath, "SKILL.md")
	}

	data, err := os.ReadFile(filepath.Join(worktreeRoot, readPath))
	if err != nil {
		return nil, "", err
	}

	var deps frontmatterDeps
	var ok bool

	if rt == manifest.ResourceMCPServer {
		deps, ok = parseJSONMetadata(data)
	} else {
		deps, ok = ParseMarkdownMetadata(string(data))
	}
	if !ok {
		return nil, "malformed or missing transitive metadata in " + relPath, nil
	}

	var out []ChildDep
	tableByType := map[manifest.ResourceType][]rawChildDep{
		manifest.ResourceAgent:     deps.Dependencies.Agents,
		manifest.ResourceSnippet:   deps.Dependencies.Snippets,
		manifest.ResourceCommand:   deps.Dependencies.Commands,
		manifest.ResourceScript:    deps.Dependencies.Scripts,
		manifest.ResourceHook:      deps.Dependencies.Hooks,
		manifest.ResourceMCPServer: deps.Dependencies.MCPServers,
		manifest.ResourceSkill:     deps.Dependencies.Skills,
	}

	for childType, rawDeps := range tableByType {
		for _, raw := range rawDeps {
			source := raw.Source
			if source == "" {
				source = parentSource
			}

			expanded, err := e.expandGlob(worktreeRoot, raw.Path)
			if err != nil {
				extractLog.Printf("glob expansion failed for %s: %v", raw.Path, err)
				continue
			}

			for _, path := range expanded {
				out = append(out, ChildDep{
					Type: childType,
					Spec: manifest.DependencySpec{
						Name:    path,
						Source:  source,
						Path:    path,
						Version: raw.Version,
						Target:  raw.Target,
						Install: raw.Install,
					},
				})
			}
		}
	}

	return out, "", nil
}

func (e *Extractor) expandGlob(worktreeRoot, path string) ([]string, error) {
	if !strings.ContainsAny(path, globChars) {
		return []string{path}, nil
	}

	matches, err := doublestar.Glob(os.DirFS(worktreeRoot), path)
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// parseJSONMetadata parses a JSON-shaped resource (mcp-server) for a
// top-level "dependencies" object with the same shape as frontmatter.
func parseJSONMetadata(data []byte) (frontmatterDeps, bool) {
	var wrapper struct {
		Dependencies json.RawMessage `json:"dependencies"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil || wrapper.Dependencies == nil {
		return frontmatterDeps{}, false
	}

	var deps frontmatterDeps
	if err := json.Unmarshal(wrapper.Dependencies, &deps.Dependencies); err != nil {
		return frontmatterDeps{}, false
	}
	return deps, true
}
