package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"nseoptions/internal/store"
	"nseoptions/pkg/utils"
)

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [symbol]",
		Short: "Show stored snapshot history",
		Long: `List snapshots previously recorded by the watch command, newest
first, with the put-call ratio trend across them.`,
		Example: `  nseoptions history
  nseoptions history NIFTY --limit 50
  nseoptions history BANKNIFTY --expiry 30-Sep-2026 --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			st, err := app.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			filter := store.Filter{}
			if len(args) > 0 {
				filter.Symbol = strings.ToUpper(args[0])
			}
			filter.Expiry, _ = cmd.Flags().GetString("expiry")
			filter.Limit, _ = cmd.Flags().GetInt("limit")

			snapshots, err := st.GetSnapshots(cmd.Context(), filter)
			if err != nil {
				output.Error("Failed to read history: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(snapshots)
			}
			if len(snapshots) == 0 {
				output.Info("No snapshots recorded yet")
				return nil
			}

			output.Bold("Snapshot history (%d)", len(snapshots))
			table := NewTable(output,
				"Time", "Symbol", "Expiry", "Spot", "ATM", "PCR", "Near PCR")
			for _, s := range snapshots {
				table.AddRow(
					s.FetchedAt,
					s.Symbol,
					s.Expiry,
					utils.FormatIndianCurrency(s.Underlying),
					utils.FormatIndianCurrency(s.ATM),
					formatPCR(output, s.PCR),
					formatPCR(output, s.NearPCR),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().String("expiry", "", "filter by expiry date")
	cmd.Flags().Int("limit", 20, "maximum snapshots to show")
	return cmd
}
