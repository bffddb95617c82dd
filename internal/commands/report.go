package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/finbot-dev/finbot/internal/ledger"
	"github.com/finbot-dev/finbot/internal/period"
	"github.com/finbot-dev/finbot/internal/report"
)

// reportFlags are shared by the reporting commands.
type reportFlags struct {
	user   int64
	period string
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.user, "user", 1, "user id")
	cmd.Flags().StringVar(&f.period, "period", "", "period as YYYY-MM (default current month)")
}

func (f *reportFlags) resolve(now time.Time) (period.Period, error) {
	if f.period == "" {
		return period.Of(now), nil
	}
	return period.Parse(f.period)
}

func newDashboardCommand(dir *string) *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the monthly dashboard for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openProject(cmd.Context(), *dir, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := flags.resolve(time.Now().In(a.Config.Location()))
			if err != nil {
				return err
			}
			res, err := a.Evaluator.Evaluate(cmd.Context(), flags.user, p)
			if err != nil {
				return fmt.Errorf("evaluating %s: %w", p, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Dashboard(res))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newExportCommand(dir *string) *cobra.Command {
	var flags reportFlags
	var format, view, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a report file for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openProject(cmd.Context(), *dir, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := flags.resolve(time.Now().In(a.Config.Location()))
			if err != nil {
				return err
			}
			res, err := a.Evaluator.Evaluate(cmd.Context(), flags.user, p)
			if err != nil {
				return fmt.Errorf("evaluating %s: %w", p, err)
			}
			txs, err := a.Ledger.Collect(cmd.Context(), ledger.ForPeriod(flags.user, p))
			if err != nil {
				return fmt.Errorf("reading transactions: %w", err)
			}
			doc, err := report.DefaultRegistry().Render(format, report.Payload{
				View:         report.View(view),
				Result:       res,
				Transactions: txs,
			})
			if err != nil {
				return err
			}

			if out == "" {
				out = filepath.Join(*dir, "exports")
			}
			if err := os.MkdirAll(out, 0o755); err != nil {
				return fmt.Errorf("creating directory %s: %w", out, err)
			}
			path := filepath.Join(out, doc.Name)
			if err := os.WriteFile(path, doc.Data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", "csv", "report format: "+strings.Join(report.DefaultRegistry().Formats(), ", "))
	cmd.Flags().StringVar(&view, "view", string(report.ViewDetailed), "text view: dashboard, summary or detailed")
	cmd.Flags().StringVar(&out, "out", "", "output directory (default <dir>/exports)")
	return cmd
}
