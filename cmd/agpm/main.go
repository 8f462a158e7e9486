package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agpm-dev/agpm/pkg/cli"
	"github.com/agpm-dev/agpm/pkg/console"
)

// version is set by the release build; dev builds report "dev".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:     "agpm",
	Short:   "AGPM manages AI-assistant configuration artifacts as versioned dependencies",
	Version: version,
	Long: `agpm resolves and installs agents, snippets, commands, scripts, hooks,
mcp-servers, and skills declared in agpm.toml, pinning every resolved Git
commit and content checksum in agpm.lock.

Common tasks:
  agpm install           # resolve agpm.toml and install everything
  agpm update             # re-resolve to the latest satisfying versions
  agpm validate           # check that agpm.toml resolves cleanly
  agpm add <name> --path agents/reviewer.md --source community`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.SetOut(os.Stderr)
	rootCmd.SetVersionTemplate(fmt.Sprintf("%s\n", console.FormatInfoMessage("agpm version {{.Version}}")))

	rootCmd.AddCommand(cli.NewInstallCommand())
	rootCmd.AddCommand(cli.NewUpdateCommand())
	rootCmd.AddCommand(cli.NewValidateCommand())
	rootCmd.AddCommand(cli.NewAddCommand())
	rootCmd.AddCommand(cli.NewMigrateCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		os.Exit(1)
	}
}
