// Package manifest defines the AGPM project manifest format: sources,
// per-type dependency tables, and patch declarations, decoded from and
// encoded to TOML.
package manifest

import "sort"

// ResourceType is the closed set of artifact kinds AGPM resolves and
// installs. Every type is an ordinary file except ResourceSkill, which is a
// directory containing a SKILL.md plus supporting files.
type ResourceType string

const (
	ResourceAgent     ResourceType = "agent"
	ResourceSnippet   ResourceType = "snippet"
	ResourceCommand   ResourceType = "command"
	ResourceScript    ResourceType = "script"
	ResourceHook      ResourceType = "hook"
	ResourceMCPServer ResourceType = "mcp-server"
	ResourceSkill     ResourceType = "skill"
)

// AllResourceTypes lists every ResourceType in manifest table order.
var AllResourceTypes = []ResourceType{
	ResourceAgent,
	ResourceSnippet,
	ResourceCommand,
	ResourceScript,
	ResourceHook,
	ResourceMCPServer,
	ResourceSkill,
}

// DirName returns the canonical on-disk directory name for a resource type
// (plural, hyphenated for mcp-server) — both the manifest table name and the
// directory component TransitiveExtractor/resolver strip from a lookup-name.
func (rt ResourceType) DirName() string {
	switch rt {
	case ResourceAgent:
		return "agents"
	case ResourceSnippet:
		return "snippets"
	case ResourceCommand:
		return "commands"
	case ResourceScript:
		return "scripts"
	case ResourceHook:
		return "hooks"
	case ResourceMCPServer:
		return "mcp-servers"
	case ResourceSkill:
		return "skills"
	default:
		return string(rt) + "s"
	}
}

// Source is a named Git repository (or local directory) dependencies are
// drawn from.
type Source struct {
	Name string `toml:"-"`
	URL  string `toml:"url"`
}

// Patch is a structured modification applied to installed content.
type Patch struct {
	Target string `toml:"target,omitempty"` // resource lookup-name this patch applies to; empty means manifest-scoped default
	Find   string `toml:"find,omitempty"`
	Replace string `toml:"replace,omitempty"`
}

// DependencySpec is one manifest-level dependency entry.
type DependencySpec struct {
	// Name is the manifest key this entry was declared under; it is not
	// itself part of the TOML payload.
	Name string `toml:"-"`

	Source  string         `toml:"source,omitempty"`
	Path    string         `toml:"path"`
	Version string         `toml:"version,omitempty"`
	Target  string         `toml:"target,omitempty"`
	Filename string        `toml:"filename,omitempty"`
	Tool    string         `toml:"tool,omitempty"`
	Install *bool          `toml:"install,omitempty"`
	Patches []Patch        `toml:"patches,omitempty"`
	VariantInputs map[string]any `toml:"variant_inputs,omitempty"`
}

// InstallEnabled reports whether this dependency should be materialized on
// disk. A nil Install field defaults to true.
func (d DependencySpec) InstallEnabled() bool {
	return d.Install == nil || *d.Install
}

// Manifest is the decoded form of agpm.toml (or agpm.private.toml).
type Manifest struct {
	Sources map[string]Source                        `toml:"sources"`
	Deps    map[ResourceType]map[string]DependencySpec `toml:"-"`
	Tools   map[string]ToolConfig                     `toml:"tools,omitempty"`
	Patches []Patch                                   `toml:"patches,omitempty"`
}

// ToolConfig is a manifest-level override for one tool's installation
// behavior (e.g. a custom base directory).
type ToolConfig struct {
	Path string `toml:"path,omitempty"`
}

// New returns an empty manifest ready for population.
func New() *Manifest {
	m := &Manifest{
		Sources: map[string]Source{},
		Deps:    map[ResourceType]map[string]DependencySpec{},
		Tools:   map[string]ToolConfig{},
	}
	for _, rt := range AllResourceTypes {
		m.Deps[rt] = map[string]DependencySpec{}
	}
	return m
}

// AllDependencies returns every declared dependency across all resource
// types, in type-table order then lexical name order, each annotated with
// its resource type.
func (m *Manifest) AllDependencies() []ResolvedSpec {
	var out []ResolvedSpec
	for _, rt := range AllResourceTypes {
		deps := m.Deps[rt]
		names := sortedKeys(deps)
		for _, name := range names {
			spec := deps[name]
			spec.Name = name
			out = append(out, ResolvedSpec{Type: rt, Spec: spec})
		}
	}
	return out
}

// ResolvedSpec pairs a DependencySpec with the resource type of the manifest
// table it was declared under.
type ResolvedSpec struct {
	Type ResourceType
	Spec DependencySpec
}

func sortedKeys(m map[string]DependencySpec) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
