package manifest

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// rawManifest mirrors the on-disk shape: dependency tables are named by
// their plural table name, not by ResourceType, so they round-trip through
// BurntSushi/toml directly.
type rawManifest struct {
	Sources map[string]rawSource `toml:"sources"`

	Agents     map[string]rawDep `toml:"agents"`
	Snippets   map[string]rawDep `toml:"snippets"`
	Commands   map[string]rawDep `toml:"commands"`
	Scripts    map[string]rawDep `toml:"scripts"`
	Hooks      map[string]rawDep `toml:"hooks"`
	MCPServers map[string]rawDep `toml:"mcp-servers"`
	Skills     map[string]rawDep `toml:"skills"`

	Tools   map[string]ToolConfig `toml:"tools"`
	Patches []Patch               `toml:"patches"`
}

type rawSource struct {
	URL string `toml:"url"`
}

type rawDep struct {
	// Every dependency entry decodes as a table into these fields; an entry
	// written as a bare string is not accepted and fails to decode.
	Source        string         `toml:"source,omitempty"`
	Path          string         `toml:"path,omitempty"`
	Version       string         `toml:"version,omitempty"`
	Target        string         `toml:"target,omitempty"`
	Filename      string         `toml:"filename,omitempty"`
	Tool          string         `toml:"tool,omitempty"`
	Install       *bool          `toml:"install,omitempty"`
	Patches       []Patch        `toml:"patches,omitempty"`
	VariantInputs map[string]any `toml:"variant_inputs,omitempty"`
}

func (d rawDep) toSpec(name string) DependencySpec {
	return DependencySpec{
		Name:          name,
		Source:        d.Source,
		Path:          d.Path,
		Version:       d.Version,
		Target:        d.Target,
		Filename:      d.Filename,
		Tool:          d.Tool,
		Install:       d.Install,
		Patches:       d.Patches,
		VariantInputs: d.VariantInputs,
	}
}

func fromSpec(spec DependencySpec) rawDep {
	return rawDep{
		Source:        spec.Source,
		Path:          spec.Path,
		Version:       spec.Version,
		Target:        spec.Target,
		Filename:      spec.Filename,
		Tool:          spec.Tool,
		Install:       spec.Install,
		Patches:       spec.Patches,
		VariantInputs: spec.VariantInputs,
	}
}

// Decode parses TOML manifest bytes into a Manifest.
func Decode(data []byte) (*Manifest, error) {
	var raw rawManifest
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("manifest: malformed toml: %w", err)
	}

	m := New()
	for name, src := range raw.Sources {
		m.Sources[name] = Source{Name: name, URL: src.URL}
	}

	tables := map[ResourceType]map[string]rawDep{
		ResourceAgent:     raw.Agents,
		ResourceSnippet:   raw.Snippets,
		ResourceCommand:   raw.Commands,
		ResourceScript:    raw.Scripts,
		ResourceHook:      raw.Hooks,
		ResourceMCPServer: raw.MCPServers,
		ResourceSkill:     raw.Skills,
	}
	for rt, table := range tables {
		for name, dep := range table {
			m.Deps[rt][name] = dep.toSpec(name)
		}
	}

	m.Tools = raw.Tools
	if m.Tools == nil {
		m.Tools = map[string]ToolConfig{}
	}
	m.Patches = raw.Patches

	return m, nil
}

// Load reads and decodes the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	return Decode(data)
}

// Encode serializes a Manifest back to canonical TOML.
func Encode(m *Manifest) ([]byte, error) {
	raw := rawManifest{
		Sources:    map[string]rawSource{},
		Agents:     toRawTable(m.Deps[ResourceAgent]),
		Snippets:   toRawTable(m.Deps[ResourceSnippet]),
		Commands:   toRawTable(m.Deps[ResourceCommand]),
		Scripts:    toRawTable(m.Deps[ResourceScript]),
		Hooks:      toRawTable(m.Deps[ResourceHook]),
		MCPServers: toRawTable(m.Deps[ResourceMCPServer]),
		Skills:     toRawTable(m.Deps[ResourceSkill]),
		Tools:      m.Tools,
		Patches:    m.Patches,
	}
	for name, src := range m.Sources {
		raw.Sources[name] = rawSource{URL: src.URL}
	}

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(raw); err != nil {
		return nil, fmt.Errorf("manifest: encode toml: %w", err)
	}
	return buf.Bytes(), nil
}

// Save encodes m and writes it to path.
func Save(m *Manifest, path string) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func toRawTable(deps map[string]DependencySpec) map[string]rawDep {
	out := make(map[string]rawDep, len(deps))
	for name, spec := range deps {
		out[name] = fromSpec(spec)
	}
	return out
}
