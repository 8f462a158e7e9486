package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agpm-dev/agpm/pkg/constants"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/sliceutil"
)

// NewAddCommand appends one dependency entry to agpm.toml and then runs the
// same resolve+install pipeline as install.
func NewAddCommand() *cobra.Command {
	var (
		resourceType string
		source       string
		path         string
		version      string
		target       string
		filename     string
		tool         string
		f            runFlags
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a dependency to agpm.toml and install it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			rt := manifest.ResourceType(resourceType)
			if !isKnownResourceType(rt) {
				return fmt.Errorf("unknown resource type %q (want one of agent, snippet, command, script, hook, mcp-server, skill)", resourceType)
			}
			if path == "" {
				return fmt.Errorf("--path is required")
			}

			root, err := findProjectRoot()
			if err != nil {
				return err
			}

			manifestPath := filepath.Join(root, constants.ManifestFileName)
			m, err := manifest.Load(manifestPath)
			if err != nil {
				return err
			}

			m.Deps[rt][name] = manifest.DependencySpec{
				Name:     name,
				Source:   source,
				Path:     path,
				Version:  version,
				Target:   target,
				Filename: filename,
				Tool:     tool,
			}

			if err := manifest.Save(m, manifestPath); err != nil {
				return err
			}

			_, err = resolveAndInstall(cmd.Context(), root, f)
			return err
		},
	}

	cmd.Flags().StringVar(&resourceType, "type", "agent", "resource type (agent, snippet, command, script, hook, mcp-server, skill)")
	cmd.Flags().StringVar(&source, "source", "", "source name declared in [sources] ('' for a local path)")
	cmd.Flags().StringVar(&path, "path", "", "path to the resource within the source (required)")
	cmd.Flags().StringVar(&version, "version", "", "version constraint (tag, semver range, or sha); defaults to '*'")
	cmd.Flags().StringVar(&target, "target", "", "install under this subdirectory instead of the default agpm/ isolation dir")
	cmd.Flags().StringVar(&filename, "filename", "", "override the installed file's leaf name")
	cmd.Flags().StringVar(&tool, "tool", "", "target tool (claude-code, opencode, agpm); defaults to claude-code")
	bindRunFlags(cmd, &f)
	return cmd
}

func isKnownResourceType(rt manifest.ResourceType) bool {
	names := make([]string, 0, len(manifest.AllResourceTypes))
	for _, known := range manifest.AllResourceTypes {
		names = append(names, string(known))
	}
	return sliceutil.Contains(names, string(rt))
}
