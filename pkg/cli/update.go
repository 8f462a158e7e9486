package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agpm-dev/agpm/pkg/console"
)

// NewUpdateCommand re-resolves every dependency to the freshest ref
// satisfying its manifest constraint. Every source is fetched before
// resolution (pkg/sourcecache.BareRepoFor always fetches), so update and
// install differ only in intent, not in which refs end up pinned: there is
// no separate "respect the existing lockfile's pins" resolution mode.
func NewUpdateCommand() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Re-resolve every dependency to the latest version satisfying its constraint",
		Long: `update fetches every declared source and re-resolves each dependency,
writing a new agpm.lock (unless --no-lock) and reinstalling anything whose
resolved commit or content changed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := findProjectRoot()
			if err != nil {
				return err
			}

			result, err := resolveAndInstall(cmd.Context(), root, f)
			if err != nil {
				return err
			}

			changed := 0
			for _, r := range result.installs {
				if r.Installed {
					changed++
				}
			}
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf(
				"resolved %d resources, %d changed", len(result.resolution.Lockfile.Resources), changed,
			)))
			return nil
		},
	}

	bindRunFlags(cmd, &f)
	return cmd
}
