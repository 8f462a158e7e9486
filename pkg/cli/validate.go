package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agpm-dev/agpm/pkg/console"
	"github.com/agpm-dev/agpm/pkg/constants"
	"github.com/agpm-dev/agpm/pkg/gitbackend"
	"github.com/agpm-dev/agpm/pkg/manifest"
	"github.com/agpm-dev/agpm/pkg/resolver"
	"github.com/agpm-dev/agpm/pkg/sourcecache"
)

// NewValidateCommand runs manifest decoding and full resolution without
// installing anything or writing agpm.lock, surfacing malformed-manifest,
// version-conflict, cycle, and target-path-conflict errors in one pass.
func NewValidateCommand() *cobra.Command {
	var maxParallel int

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that agpm.toml resolves cleanly without installing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := findProjectRoot()
			if err != nil {
				return err
			}

			m, err := manifest.Load(filepath.Join(root, constants.ManifestFileName))
			if err != nil {
				return err
			}

			cache := sourcecache.New(cacheRoot(), gitbackend.New())
			r := resolver.New(m, root, cache, gitbackend.New(), resolver.Options{MaxParallel: maxParallel})

			result, err := r.Resolve(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf(
				"agpm.toml resolves cleanly: %d resources", len(result.Lockfile.Resources),
			)))
			for _, w := range result.Warnings {
				fmt.Println(console.FormatWarningMessage(w.Message))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "bound concurrent resolve work (0 = unbounded)")
	return cmd
}
