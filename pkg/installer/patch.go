package installer

import (
	"bytes"

	"github.com/agpm-dev/agpm/pkg/lockfile"
	"github.com/agpm-dev/agpm/pkg/manifest"
)

// patchOp pairs a declared patch with whether it came from the private
// overlay, so applyPatches can record that in the resulting AppliedPatch.
type patchOp struct {
	p       manifest.Patch
	private bool
}

// collectPatches gathers every patch applicable to lookup, in the stable
// order project patches, then the dependency's own declared patches, then
// private patches — applied in that order so a private patch can override
// what a project-wide one already changed.
func collectPatches(lookup string, project, own, private []manifest.Patch) []patchOp {
	var ops []patchOp
	for _, p := range project {
		if p.Target == "" || p.Target == lookup {
			ops = append(ops, patchOp{p: p})
		}
	}
	for _, p := range own {
		ops = append(ops, patchOp{p: p})
	}
	for _, p := range private {
		if p.Target == "" || p.Target == lookup {
			ops = append(ops, patchOp{p: p, private: true})
		}
	}
	return ops
}

// applyPatches applies each op's find/replace in order, skipping no-op
// patches (empty Find), and records every applied patch for the lockfile.
func applyPatches(content []byte, ops []patchOp) ([]byte, []lockfile.AppliedPatch) {
	out := content
	var applied []lockfile.AppliedPatch
	for _, op := range ops {
		if op.p.Find == "" {
			continue
		}
		out = bytes.ReplaceAll(out, []byte(op.p.Find), []byte(op.p.Replace))
		applied = append(applied, lockfile.AppliedPatch{
			Target:  op.p.Target,
			Find:    op.p.Find,
			Replace: op.p.Replace,
			Private: op.private,
		})
	}
	return out, applied
}
