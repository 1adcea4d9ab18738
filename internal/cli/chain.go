package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"nseoptions/internal/chain"
	apperrors "nseoptions/internal/errors"
	"nseoptions/internal/poller"
	"nseoptions/internal/sink"
	"nseoptions/pkg/utils"
)

func newFetchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [symbol]",
		Short: "Fetch and display the option chain once",
		Long: `Fetch the option chain for a symbol, filter it to strikes near the
at-the-money price for one expiry, and display the paired table.

Without an expiry flag the nearest listed expiry is used.`,
		Example: `  nseoptions fetch NIFTY
  nseoptions fetch BANKNIFTY --expiry 30-Sep-2026 --strikes 5
  nseoptions fetch NIFTY --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			opts, err := app.chainOptions(cmd, args, false)
			if err != nil {
				return err
			}

			client, err := app.newClient(cmd)
			if err != nil {
				return err
			}

			payload, err := client.OptionChain(ctx, opts.Symbol)
			if err != nil {
				output.Error("Failed to fetch option chain: %v", err)
				return err
			}
			if opts.Expiry == "" {
				opts.Expiry, err = nearestExpiry(payload)
				if err != nil {
					return err
				}
			}

			rows, metrics, err := chain.Transform(payload, opts)
			if err != nil {
				output.Error("Malformed option chain: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(struct {
					Metrics chain.Metrics `json:"metrics"`
					Rows    []chain.Row   `json:"rows"`
				}{metrics, rows})
			}
			displayChain(output, rows, metrics)
			return nil
		},
	}

	addChainFlags(cmd)
	return cmd
}

func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [symbol]",
		Short: "Poll the option chain on a fixed interval",
		Long: `Poll the option chain continuously, writing each cycle to the
configured sinks: timestamped JSON snapshots, a session CSV that is
rewritten in place, and the SQLite history database.

When symbol or expiry are not given, they are prompted for
interactively. The loop runs until interrupted with CTRL+C.`,
		Example: `  nseoptions watch
  nseoptions watch NIFTY --expiry 30-Sep-2026
  nseoptions watch BANKNIFTY --interval 60s --no-csv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			opts, err := app.chainOptions(cmd, args, true)
			if err != nil {
				return err
			}

			client, err := app.newClient(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if opts.Expiry == "" {
				payload, err := client.OptionChain(ctx, opts.Symbol)
				if err != nil {
					output.Error("Failed to list expiries: %v", err)
					return err
				}
				opts.Expiry, err = nearestExpiry(payload)
				if err != nil {
					return err
				}
				output.Info("Using nearest expiry: %s", opts.Expiry)
			}

			pollCfg := poller.Config{
				Interval:    app.Config.Poll.Interval,
				RetryWait:   app.Config.Poll.RetryWait,
				MaxAttempts: app.Config.Poll.MaxAttempts,
				MaxFailures: app.Config.Poll.MaxFailures,
			}
			if interval, _ := cmd.Flags().GetDuration("interval"); interval > 0 {
				pollCfg.Interval = interval
			}

			p := poller.New(client, opts, pollCfg, app.Logger)
			if err := app.attachSinks(cmd, p, opts, output); err != nil {
				return err
			}

			cycles := 0
			p.OnCycle(func(rows []chain.Row, m chain.Metrics) {
				cycles++
				displayCycleBanner(output, rows, m, cycles)
			})
			if !output.IsJSON() {
				p.OnWait(func(done, total int) {
					output.Progress(done, total, "Waiting to refresh")
				})
			}

			if status := utils.GetMarketStatus(); status != utils.MarketOpen {
				output.Warning("Market status: %s, data may be stale", output.MarketStatus(status))
			}
			output.Bold("Polling %s (%s) every %s, CTRL+C to stop", opts.Symbol, opts.Expiry, pollCfg.Interval)

			err = p.Run(ctx)
			if ctx.Err() != nil {
				output.Println()
				output.Info("Interrupted after %d cycles", cycles)
				return nil
			}
			output.Error("Polling aborted: %v", err)
			return err
		},
	}

	addChainFlags(cmd)
	cmd.Flags().Duration("interval", 0, "override poll interval")
	cmd.Flags().Bool("no-csv", false, "disable the session CSV sink")
	cmd.Flags().Bool("no-json", false, "disable JSON snapshot sinks")
	cmd.Flags().Bool("no-store", false, "disable the SQLite history sink")
	return cmd
}

func newExpiriesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "expiries <symbol>",
		Short: "List available expiry dates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			client, err := app.newClient(cmd)
			if err != nil {
				return err
			}

			symbol := strings.ToUpper(args[0])
			expiries, err := client.ExpiryDates(ctx, symbol)
			if err != nil {
				output.Error("Failed to fetch expiries: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"symbol": symbol, "expiries": expiries})
			}
			output.Bold("Expiries for %s", symbol)
			for _, e := range expiries {
				output.Printf("  %s\n", e)
			}
			return nil
		},
	}
}

func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().String("expiry", "", "expiry date in NSE format (DD-MMM-YYYY)")
	cmd.Flags().Int("strikes", 0, "strikes to keep on each side of ATM (default from config)")
	cmd.Flags().Int("multiple", 0, "strike step override (default per symbol)")
}

// chainOptions resolves symbol, expiry and window parameters from
// args, flags, config, and (for watch) interactive prompts.
func (app *App) chainOptions(cmd *cobra.Command, args []string, interactive bool) (chain.Options, error) {
	var symbol string
	if len(args) > 0 {
		symbol = strings.ToUpper(args[0])
	} else if interactive {
		symbol = strings.ToUpper(prompt("Enter the Symbol [NIFTY]: ", "NIFTY"))
	} else {
		symbol = "NIFTY"
	}

	expiry, _ := cmd.Flags().GetString("expiry")
	if expiry == "" && interactive {
		expiry = prompt("Enter the Expiry (DD-MMM-YYYY, empty for nearest): ", "")
	}

	nstrikes, _ := cmd.Flags().GetInt("strikes")
	if nstrikes <= 0 {
		nstrikes = app.Config.Chain.NStrikes
	}

	multiple, _ := cmd.Flags().GetInt("multiple")
	if multiple <= 0 {
		multiple = app.Config.Multiple(symbol)
	}
	if multiple <= 0 {
		multiple = chain.DefaultMultiple(symbol)
	}

	return chain.Options{
		Symbol:   symbol,
		Expiry:   expiry,
		NStrikes: nstrikes,
		Multiple: multiple,
	}, nil
}

// attachSinks wires the configured output sinks onto the poller.
func (app *App) attachSinks(cmd *cobra.Command, p *poller.Poller, opts chain.Options, output *Output) error {
	cfg := app.Config.Output

	noJSON, _ := cmd.Flags().GetBool("no-json")
	if cfg.JSON && !noJSON {
		js := sink.NewJSONSink(cfg.Dir, app.Logger)
		p.AddSink(js)
		if cfg.RawJSON {
			p.SetRawWriter(js)
		}
	}

	noCSV, _ := cmd.Flags().GetBool("no-csv")
	if cfg.CSV && !noCSV {
		name := fmt.Sprintf("%s #%s OP %s for %s.csv",
			time.Now().Format("2006-01-02"),
			strings.ToUpper(uuid.NewString()[:3]),
			opts.Symbol, opts.Expiry)
		path := filepath.Join(cfg.Dir, name)
		p.AddSink(sink.NewCSVSink(path))
		output.Dim("Session file: %s", path)
	}

	noStore, _ := cmd.Flags().GetBool("no-store")
	if cfg.SQLite && !noStore {
		st, err := app.openStore()
		if err != nil {
			return apperrors.Wrap(err, "opening history database")
		}
		p.AddSink(sink.NewStoreSink(st))
	}

	return nil
}

// nearestExpiry picks the first expiry NSE lists for the symbol.
func nearestExpiry(payload *chain.Payload) (string, error) {
	if len(payload.Records.ExpiryDates) == 0 {
		return "", apperrors.ErrExpiryNotFound
	}
	return payload.Records.ExpiryDates[0], nil
}

// prompt reads one line from stdin, falling back to a default.
func prompt(label, fallback string) string {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fallback
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return fallback
	}
	return line
}

// displayCycleBanner prints the per-cycle summary the poller emits
// between refreshes.
func displayCycleBanner(output *Output, rows []chain.Row, m chain.Metrics, cycle int) {
	output.Println()
	output.Bold("%s cycle %d at %s", m.Symbol, cycle, m.Timestamp)
	output.Printf("  Underlying:  %s\n", utils.FormatIndianCurrency(m.Underlying))
	output.Printf("  ATM Strike:  %s\n", utils.FormatIndianCurrency(m.ATM))
	output.Printf("  Window:      %s to %s (%d strikes)\n",
		utils.FormatIndianCurrency(m.LowStrike), utils.FormatIndianCurrency(m.HighStrike), len(rows))
	output.Printf("  PCR:         %s (near %s)\n", formatPCR(output, m.PCR), formatPCR(output, m.NearPCR))
	output.Printf("  OI CE/PE:    %s / %s\n",
		utils.FormatCompact(m.TotOICE), utils.FormatCompact(m.TotOIPE))
}

// displayChain renders the full paired table, calls on the left, puts
// on the right, ATM row marked.
func displayChain(output *Output, rows []chain.Row, m chain.Metrics) {
	output.Bold("Option Chain %s (%s)", m.Symbol, m.Expiry)
	output.Printf("  Spot: %s  ATM: %s  Time: %s\n",
		utils.FormatIndianCurrency(m.Underlying), utils.FormatIndianCurrency(m.ATM), m.Timestamp)
	output.Printf("  PCR: %s  Near PCR: %s\n\n", formatPCR(output, m.PCR), formatPCR(output, m.NearPCR))

	table := NewTable(output,
		"OI CE", "Chg OI CE", "Vol CE", "IV CE", "LTP CE",
		"Strike",
		"LTP PE", "IV PE", "Vol PE", "Chg OI PE", "OI PE")

	for _, r := range rows {
		strike := fmt.Sprintf("%.0f", r.Strike)
		if r.Strike == m.ATM {
			strike = output.Yellow(strike + " *")
		}
		table.AddRow(
			utils.FormatCompact(r.CE.OpenInterest),
			utils.FormatCompact(r.CE.ChangeInOI),
			utils.FormatCompact(r.CE.TotalTradedVolume),
			fmt.Sprintf("%.1f", r.CE.ImpliedVolatility),
			fmt.Sprintf("%.2f", r.CE.LastPrice),
			strike,
			fmt.Sprintf("%.2f", r.PE.LastPrice),
			fmt.Sprintf("%.1f", r.PE.ImpliedVolatility),
			utils.FormatCompact(r.PE.TotalTradedVolume),
			utils.FormatCompact(r.PE.ChangeInOI),
			utils.FormatCompact(r.PE.OpenInterest),
		)
	}
	table.Render()

	if len(rows) == 0 {
		output.Warning("No strikes with both sides inside the window")
	}
}

// formatPCR colors the ratio by sentiment; indeterminate ratios stay
// plain.
func formatPCR(output *Output, r chain.Ratio) string {
	if !r.Valid {
		return output.Yellow("n/a")
	}
	s := r.String()
	if r.Value > 1 {
		return output.Green(s)
	}
	return output.Red(s)
}
