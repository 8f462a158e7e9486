package installer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/copy"

	"github.com/agpm-dev/agpm/pkg/agpmerrors"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/registry"
)

// installSkill materializes a skill as a directory: copy the whole resolved
// tree, then apply patches to the installed SKILL.md only. Unlike file
// resources this cannot be compared for idempotence cheaply, so it always
// removes and recopies the destination (remove-then-copy is still atomic
// from the caller's perspective: the old tree only disappears once the new
// one's source has already passed the size check).
func (in *Installer) installSkill(ctx context.Context, e *registry.Entry, projectPatches []manifest.Patch) (Result, error) {
	srcPath, err := in.src.ContentPath(ctx, e)
	if err != nil {
		return Result{}, err
	}

	totalBytes, fileCount, err := dirStats(srcPath)
	if err != nil {
		return Result{}, err
	}
	if totalBytes > in.opts.MaxSkillBytes || fileCount > in.opts.MaxSkillFiles {
		return Result{}, agpmerrors.SkillSizeExceeded(e.Key.Lookup, totalBytes, fileCount, in.opts.MaxSkillBytes, in.opts.MaxSkillFiles)
	}

	dest := filepath.Join(in.projectRoot, filepath.FromSlash(strings.TrimSuffix(e.InstalledAt, ".md")))

	if err := os.RemoveAll(dest); err != nil && !os.IsNotExist(err) {
		return Result{}, agpmerrors.IoFailure("remove", dest, agpmerrors.ClassifyIoErr(err), err)
	}
	if err := copy.Copy(srcPath, dest); err != nil {
		os.RemoveAll(dest)
		return Result{}, agpmerrors.IoFailure("copy", dest, agpmerrors.IoOther, err)
	}

	skillMD := filepath.Join(dest, "SKILL.md")
	content, err := os.ReadFile(skillMD)
	if err != nil {
		return Result{}, agpmerrors.IoFailure("read", skillMD, agpmerrors.ClassifyIoErr(err), err)
	}

	ops := collectPatches(e.Key.Lookup, projectPatches, e.Spec.Patches, in.opts.PrivatePatches)
	patched, applied := applyPatches(content, ops)
	if !bytes.Equal(patched, content) {
		if err := atomicWrite(skillMD, patched); err != nil {
			return Result{}, err
		}
	}

	if err := in.recordGitignore(e.InstalledAt); err != nil {
		return Result{}, err
	}

	return Result{Key: e.Key, Installed: true, AppliedPatches: applied, ContextChecksum: contextChecksum(applied)}, nil
}

// dirStats walks root, totaling regular-file sizes and counts for the
// SkillSizeExceeded check.
func dirStats(root string) (totalBytes, fileCount int64, err error) {
	err = filepath.Walk(root, func(path string, info os.FileInfo, werr error) error {
		if werr != nil {
			return werr
		}
		if info.IsDir() {
			return nil
		}
		totalBytes += info.Size()
		fileCount++
		return nil
	})
	if err != nil {
		return 0, 0, agpmerrors.IoFailure("walk", root, agpmerrors.ClassifyIoErr(err), err)
	}
	return totalBytes, fileCount, nil
}
