// Package mcpconfig defines the typed shape of one MCP server entry and the
// read-modify-write merge AGPM performs into a project's .mcp.json (or
// .claude/settings.local.json) target file. Unlike every other resource
// type, an mcp-server resource's installed form is a section of a shared
// JSON document, not a standalone file.
package mcpconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/agpm-dev/agpm/pkg/agpmerrors"
)

// Transport distinguishes how AGPM's resolved config launches or dials the
// server once merged into the target file.
type Transport string

const (
	TransportStdio Transport = "stdio"
	TransportHTTP  Transport = "http"
	TransportSSE   Transport = "sse"
)

// rawServerConfig is the on-disk shape of a declared mcp-server resource
// file: a plain JSON document, schema-validated before being classified
// into a ServerConfig.
type rawServerConfig struct {
	Type    string            `json:"type,omitempty"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ServerConfig is one resolved MCP server entry ready to merge into a
// target document.
type ServerConfig struct {
	Transport Transport
	Command   string
	Args      []string
	Env       map[string]string
	URL       string
	Headers   map[string]string

	// Implementation identifies the server using the same name/version
	// shape the MCP SDK's client and server constructors take, so the merged
	// entry's provenance can be inspected with the SDK's own types.
	Implementation *mcp.Implementation
}

var configSchema = mustResolve[rawServerConfig]()

func mustResolve[T any]() *jsonschema.Resolved {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("mcpconfig: building schema: %v", err))
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("mcpconfig: resolving schema: %v", err))
	}
	return resolved
}

// Parse decodes and validates an mcp-server resource's content, classifying
// its transport from the fields present. name and version populate the
// resulting Implementation.
func Parse(name, version string, content []byte) (ServerConfig, error) {
	var generic any
	if err := json.Unmarshal(content, &generic); err != nil {
		return ServerConfig{}, agpmerrors.ManifestMalformed(fmt.Sprintf("mcp-server %q content is not valid JSON", name), err)
	}
	if err := configSchema.Validate(generic); err != nil {
		return ServerConfig{}, agpmerrors.ManifestMalformed(fmt.Sprintf("mcp-server %q config failed schema validation", name), err)
	}

	var raw rawServerConfig
	if err := json.Unmarshal(content, &raw); err != nil {
		return ServerConfig{}, agpmerrors.ManifestMalformed(fmt.Sprintf("mcp-server %q content is not valid JSON", name), err)
	}

	cfg := ServerConfig{
		Command:        raw.Command,
		Args:           raw.Args,
		Env:            raw.Env,
		URL:            raw.URL,
		Headers:        raw.Headers,
		Implementation: &mcp.Implementation{Name: name, Version: version},
	}

	switch {
	case raw.Type == "sse":
		cfg.Transport = TransportSSE
	case raw.URL != "":
		cfg.Transport = TransportHTTP
	case raw.Command != "":
		cfg.Transport = TransportStdio
	default:
		return ServerConfig{}, agpmerrors.ManifestMalformed(fmt.Sprintf("mcp-server %q declares neither command nor url", name), nil)
	}
	return cfg, nil
}

// toRaw renders cfg back to the on-disk shape used inside a target
// document's "mcpServers" map.
func (c ServerConfig) toRaw() rawServerConfig {
	raw := rawServerConfig{Command: c.Command, Args: c.Args, Env: c.Env, URL: c.URL, Headers: c.Headers}
	if c.Transport == TransportSSE {
		raw.Type = "sse"
	}
	return raw
}

// Document is a decoded merge-target file. Top-level keys other than
// "mcpServers" keep their values across Load/Write (only re-indented) so
// AGPM never clobbers unrelated settings sharing the file.
type Document struct {
	other   map[string]json.RawMessage
	servers map[string]rawServerConfig
}

// Load reads a target document, or returns an empty Document if path does
// not exist yet.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Document{other: map[string]json.RawMessage{}, servers: map[string]rawServerConfig{}}, nil
		}
		return nil, agpmerrors.IoFailure("read", path, agpmerrors.ClassifyIoErr(err), err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, agpmerrors.ManifestMalformed(fmt.Sprintf("%s is not a valid JSON object", path), err)
	}

	servers := map[string]rawServerConfig{}
	if raw, ok := top["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &servers); err != nil {
			return nil, agpmerrors.ManifestMalformed(fmt.Sprintf("%s: mcpServers is not an object of server configs", path), err)
		}
		delete(top, "mcpServers")
	}
	if top == nil {
		top = map[string]json.RawMessage{}
	}
	return &Document{other: top, servers: servers}, nil
}

// Set inserts or replaces the named server entry.
func (d *Document) Set(name string, cfg ServerConfig) {
	d.servers[name] = cfg.toRaw()
}

// Remove deletes the named server entry, if present.
func (d *Document) Remove(name string) {
	delete(d.servers, name)
}

// Has reports whether name is currently present.
func (d *Document) Has(name string) bool {
	_, ok := d.servers[name]
	return ok
}

// Write serializes the document back to path, preserving unrelated
// top-level keys, via a uuid-suffixed temp file and rename so a reader never
// observes a partially written file.
func (d *Document) Write(path string) error {
	out := make(map[string]json.RawMessage, len(d.other)+1)
	for k, v := range d.other {
		out[k] = v
	}

	names := make([]string, 0, len(d.servers))
	for name := range d.servers {
		names = append(names, name)
	}
	sort.Strings(names)

	// Encode through an ordered intermediate so repeated Write calls over an
	// unchanged server set produce byte-identical output.
	serversJSON, err := marshalOrdered(names, d.servers)
	if err != nil {
		return agpmerrors.ManifestMalformed(fmt.Sprintf("encoding mcpServers for %s", path), err)
	}
	out["mcpServers"] = serversJSON

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return agpmerrors.ManifestMalformed(fmt.Sprintf("encoding %s", path), err)
	}
	data = append(data, '\n')

	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return agpmerrors.IoFailure("write", tmp, agpmerrors.ClassifyIoErr(err), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return agpmerrors.IoFailure("rename", path, agpmerrors.ClassifyIoErr(err), err)
	}
	return nil
}

func marshalOrdered(names []string, servers map[string]rawServerConfig) (json.RawMessage, error) {
	var b []byte
	b = append(b, '{')
	for i, name := range names {
		if i > 0 {
			b = append(b, ',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(servers[name])
		if err != nil {
			return nil, err
		}
		b = append(b, key...)
		b = append(b, ':')
		b = append(b, val...)
	}
	b = append(b, '}')
	return json.RawMessage(b), nil
}
