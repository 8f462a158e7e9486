package installer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/agpm-dev/agpm/pkg/agpmerrors"
	"github.com/agpm-dev/agpm/pkg/mcpconfig"
	"github.com/agpm-dev/agpm/pkg/registry"
)

// installMCPServer merges one mcp-server resource's config into its
// assigned target document, rather than writing the resource's own content
// verbatim: a document can hold several independently-resolved servers, so
// the write is a read-modify-write under a per-document lock, not a plain
// atomic file replace.
func (in *Installer) installMCPServer(ctx context.Context, e *registry.Entry) (Result, error) {
	srcPath, err := in.src.ContentPath(ctx, e)
	if err != nil {
		return Result{}, err
	}
	content, err := os.ReadFile(srcPath)
	if err != nil {
		return Result{}, agpmerrors.IoFailure("read", srcPath, agpmerrors.ClassifyIoErr(err), err)
	}

	cfg, err := mcpconfig.Parse(e.Key.Lookup, e.ResolvedRef, content)
	if err != nil {
		return Result{}, err
	}

	target := filepath.Join(in.projectRoot, filepath.FromSlash(e.InstalledAt))
	mu := in.lockFor(target)
	mu.Lock()
	defer mu.Unlock()

	doc, err := mcpconfig.Load(target)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Result{}, agpmerrors.IoFailure("mkdir", filepath.Dir(target), agpmerrors.ClassifyIoErr(err), err)
	}

	doc.Set(e.Key.Lookup, cfg)
	if err := doc.Write(target); err != nil {
		return Result{}, err
	}

	return Result{Key: e.Key, Installed: true}, nil
}
