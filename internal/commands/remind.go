package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/finbot-dev/finbot/internal/config"
)

func newRemindCommand(dir *string) *cobra.Command {
	var toStdout bool

	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Deliver due reminders once, for use from cron",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openProject(cmd.Context(), *dir, func(cfg *config.Config) {
				if toStdout {
					cfg.Transport.Kind = "console"
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
			if err := a.NotifyDue(cmd.Context(), t); err != nil {
				return fmt.Errorf("delivering reminders: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&toStdout, "stdout", false, "print reminders instead of sending them on the configured transport")

	return cmd
}
