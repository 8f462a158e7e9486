// Package lockfile defines the AGPM lockfile format: a deterministic,
// byte-stable TOML document recording every resolved resource's pin,
// checksum, and installation path.
package lockfile

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/agpm-dev/agpm/pkg/manifest"
)

// CurrentVersion is the lockfile schema version written by this package.
const CurrentVersion = 1

// ResourceKey is the canonical identity of a resource: its type, its
// lookup-name derived from the manifest path, and the source it came from
// ("" for local resources).
type ResourceKey struct {
	Type   manifest.ResourceType
	Lookup string
	Source string
}

func (k ResourceKey) String() string {
	return fmt.Sprintf("%s:%s@%s", k.Type, k.Lookup, k.Source)
}

// Less orders keys by (type, lookup-name, source-or-empty), the order the
// spec requires for deterministic lockfile output.
func (k ResourceKey) Less(other ResourceKey) bool {
	if k.Type != other.Type {
		return k.Type < other.Type
	}
	if k.Lookup != other.Lookup {
		return k.Lookup < other.Lookup
	}
	return k.Source < other.Source
}

// AppliedPatch records one patch that was applied to a resource's installed
// content, in application order.
type AppliedPatch struct {
	Target  string `toml:"target"`
	Find    string `toml:"find"`
	Replace string `toml:"replace"`
	Private bool   `toml:"private,omitempty"`
}

// LockedResource is one persisted lockfile entry: a ResolvedResource minus
// its transient required-by set, plus an explicit list of direct children.
type LockedResource struct {
	Name            string                `toml:"name"`
	ResourceType    manifest.ResourceType `toml:"resource_type"`
	Source          string                `toml:"source,omitempty"`
	URL             string                `toml:"url,omitempty"`
	Path            string                `toml:"path"`
	Version         string                `toml:"version,omitempty"`
	ResolvedCommit  string                `toml:"resolved_commit,omitempty"`
	Checksum        string                `toml:"checksum"`
	ContextChecksum string                `toml:"context_checksum,omitempty"`
	InstalledAt     string                `toml:"installed_at"`
	Tool            string                `toml:"tool,omitempty"`
	Dependencies    []string              `toml:"dependencies,omitempty"`
	AppliedPatches  []AppliedPatch        `toml:"applied_patches,omitempty"`
}

// Key reconstructs this entry's ResourceKey. Lookup-name is Name; source is
// Source (possibly empty for local resources).
func (r LockedResource) Key() ResourceKey {
	return ResourceKey{Type: r.ResourceType, Lookup: r.Name, Source: r.Source}
}

// Lockfile is the full decoded agpm.lock document.
type Lockfile struct {
	Version   int               `toml:"version"`
	Sources   map[string]string `toml:"sources,omitempty"` // name -> url
	Resources []LockedResource  `toml:"resources"`
}

// New returns an empty lockfile at the current schema version.
func New() *Lockfile {
	return &Lockfile{Version: CurrentVersion, Sources: map[string]string{}}
}

// Sort orders Resources and the iteration-stable parts of each entry
// (Dependencies) deterministically, per spec: resources by
// (type, lookup-name, source-or-empty); sources are a map and TOML encodes
// map keys in sorted order already.
func (l *Lockfile) Sort() {
	sort.SliceStable(l.Resources, func(i, j int) bool {
		return l.Resources[i].Key().Less(l.Resources[j].Key())
	})
	for i := range l.Resources {
		sort.Strings(l.Resources[i].Dependencies)
	}
}

// Decode parses lockfile TOML bytes.
func Decode(data []byte) (*Lockfile, error) {
	var lf Lockfile
	if _, err := toml.Decode(string(data), &lf); err != nil {
		return nil, fmt.Errorf("lockfile: malformed toml: %w", err)
	}
	if lf.Sources == nil {
		lf.Sources = map[string]string{}
	}
	return &lf, nil
}

// Load reads and decodes the lockfile at path. A missing file is reported
// via the returned error (use os.IsNotExist to detect it).
func Load(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Encode serializes the lockfile to canonical, byte-stable TOML. The
// lockfile is sorted before encoding so repeated Encode calls over
// equivalent data are byte-identical (Testable Property 1).
func Encode(l *Lockfile) ([]byte, error) {
	sorted := *l
	sorted.Resources = append([]LockedResource(nil), l.Resources...)
	sorted.Sort()

	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(sorted); err != nil {
		return nil, fmt.Errorf("lockfile: encode toml: %w", err)
	}
	return buf.Bytes(), nil
}

// Save encodes and writes the lockfile to path.
func Save(l *Lockfile, path string) error {
	data, err := Encode(l)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
