// Package constants holds fixed tables shared across AGPM packages: per-tool
// default install directories and the canonical on-disk directory for each
// resource type.
package constants

import "github.com/agpm-dev/agpm/pkg/manifest"

// DefaultToolDir returns the default install directory for a given tool and
// resource type, per the tool's conventions. Returns "" if the tool/type
// combination has no built-in default and the manifest must specify target
// explicitly.
func DefaultToolDir(tool string, rt manifest.ResourceType) string {
	dirs, ok := toolResourceDirs[tool]
	if !ok {
		return ""
	}
	return dirs[rt]
}

// toolResourceDirs is the canonical install-directory table for each
// supported tool.
var toolResourceDirs = map[string]map[manifest.ResourceType]string{
	"claude-code": {
		manifest.ResourceAgent:     ".claude/agents",
		manifest.ResourceCommand:   ".claude/commands",
		manifest.ResourceSnippet:   ".claude/snippets",
		manifest.ResourceScript:    ".claude/scripts",
		manifest.ResourceHook:      ".claude/hooks",
		manifest.ResourceMCPServer: ".mcp.json",
		manifest.ResourceSkill:     ".claude/skills",
	},
	"opencode": {
		manifest.ResourceAgent:     ".opencode/agent",
		manifest.ResourceCommand:   ".opencode/command",
		manifest.ResourceSnippet:   ".opencode/snippet",
		manifest.ResourceScript:    ".opencode/script",
		manifest.ResourceHook:      ".opencode/hook",
		manifest.ResourceMCPServer: ".opencode.json",
		manifest.ResourceSkill:     ".opencode/skill",
	},
	"agpm": {
		manifest.ResourceAgent:     "agpm/agents",
		manifest.ResourceCommand:   "agpm/commands",
		manifest.ResourceSnippet:   "agpm/snippets",
		manifest.ResourceScript:    "agpm/scripts",
		manifest.ResourceHook:      "agpm/hooks",
		manifest.ResourceMCPServer: "agpm/mcp-servers.json",
		manifest.ResourceSkill:     "agpm/skills",
	},
}

// DefaultCacheDirName is the cache-root directory name under the user's cache
// home, overridable by AGPM_CACHE_DIR.
const DefaultCacheDirName = "agpm"

// ManifestFileName and LockfileName are the well-known project-root file names.
const (
	ManifestFileName        = "agpm.toml"
	LockfileName             = "agpm.lock"
	PrivateManifestFileName = "agpm.private.toml"
	PrivateLockfileName     = "agpm.private.lock"
)
