package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/finbot-dev/finbot/internal/config"
)

func newChatCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the bot in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *dir, "console")
		},
	}
}

func newServeCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot on the configured transport",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *dir, "")
		},
	}
}

// runServe runs the bot until interrupted. A non-empty kind overrides the configured transport.
func runServe(cmd *cobra.Command, dir, kind string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openProject(ctx, dir, func(cfg *config.Config) {
		if kind != "" {
			cfg.Transport.Kind = kind
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.Transport(cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := a.Serve(ctx, t); err != nil {
		return fmt.Errorf("serving %s: %w", a.Config.Transport.Kind, err)
	}
	return nil
}
