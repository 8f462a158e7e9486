package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agpm-dev/agpm/pkg/console"
)

// NewInstallCommand resolves every dependency declared in agpm.toml and
// materializes it on disk, writing agpm.lock unless --no-lock is set.
func NewInstallCommand() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Resolve and install every dependency declared in agpm.toml",
		Long: `install resolves every dependency declared in agpm.toml (and any
transitive dependency it pulls in), writes the result to agpm.lock, and
materializes each resource at its installed_at path.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := findProjectRoot()
			if err != nil {
				return err
			}

			result, err := resolveAndInstall(cmd.Context(), root, f)
			if err != nil {
				return err
			}

			installed := 0
			for _, r := range result.installs {
				if r.Installed {
					installed++
				}
			}
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf(
				"resolved %d resources, installed %d, skipped %d",
				len(result.resolution.Lockfile.Resources), installed, len(result.installs)-installed,
			)))
			for _, w := range result.resolution.Warnings {
				fmt.Println(console.FormatWarningMessage(w.Message))
			}
			return nil
		},
	}

	bindRunFlags(cmd, &f)
	return cmd
}
