package installer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/agpm-dev/agpm/pkg/lockfile"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/registry"
)

func TestInstallMCPServerMergesIntoSharedDocument(t *testing.T) {
	srcRoot := t.TempDir()
	writeFixture(t, srcRoot, "mcp/fetch.json", `{"command": "npx", "args": ["-y", "fetch-mcp"]}`)
	writeFixture(t, srcRoot, "mcp/search.json", `{"type": "sse", "url": "https://search.example.com/mcp"}`)

	projectRoot := t.TempDir()
	in := New(dirSource(srcRoot), projectRoot, Options{})

	fetch := &registry.Entry{
		Key:         lockfile.ResourceKey{Type: manifest.ResourceMCPServer, Lookup: "fetch", Source: "community"},
		Spec:        manifest.DependencySpec{Path: "mcp/fetch.json"},
		ResolvedRef: "v1.0.0",
		InstalledAt: ".mcp.json",
	}
	search := &registry.Entry{
		Key:         lockfile.ResourceKey{Type: manifest.ResourceMCPServer, Lookup: "search", Source: "community"},
		Spec:        manifest.DependencySpec{Path: "mcp/search.json"},
		ResolvedRef: "v2.0.0",
		InstalledAt: ".mcp.json",
	}

	if _, err := in.Install(context.Background(), fetch, nil); err != nil {
		t.Fatalf("install fetch: %v", err)
	}
	if _, err := in.Install(context.Background(), search, nil); err != nil {
		t.Fatalf("install search: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(projectRoot, ".mcp.json"))
	if err != nil {
		t.Fatalf("read .mcp.json: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	servers, ok := doc["mcpServers"].(map[string]any)
	if !ok {
		t.Fatalf("expected mcpServers object, got %+v", doc)
	}
	if _, ok := servers["fetch"]; !ok {
		t.Error("expected fetch server merged")
	}
	if _, ok := servers["search"]; !ok {
		t.Error("expected search server merged")
	}
}
