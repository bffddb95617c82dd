package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finbot-dev/finbot/internal/buildinfo"
	"github.com/finbot-dev/finbot/internal/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var dir string

	rootCmd := &cobra.Command{
		Use:     "finbot",
		Short:   "Personal finance chat bot",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dir, "dir", ".", "project directory holding "+config.FileName)

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newChatCommand(&dir))
	rootCmd.AddCommand(newServeCommand(&dir))
	rootCmd.AddCommand(newDashboardCommand(&dir))
	rootCmd.AddCommand(newExportCommand(&dir))
	rootCmd.AddCommand(newRemindCommand(&dir))

	return rootCmd
}
