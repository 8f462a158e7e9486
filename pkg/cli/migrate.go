package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCommand is a stub: importing dependencies from another AI-tool
// package manager's manifest format is out of scope (see DESIGN.md Open
// Questions), but the subcommand is wired up so `agpm migrate` fails with a
// clear message instead of "unknown command".
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:    "migrate",
		Short:  "Not yet implemented",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("agpm migrate is not yet implemented")
		},
	}
}
