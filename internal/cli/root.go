package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"nseoptions/internal/config"
	"nseoptions/internal/logging"
	"nseoptions/internal/nse"
	"nseoptions/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-08-30"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "nseoptions",
		Short: "NSE option-chain fetcher and poller",
		Long: `nseoptions fetches the public NSE India option chain for an index or
stock symbol, filters it to strikes near the at-the-money price, and
pairs call and put quotes into a single flat table with put-call-ratio
metrics.

The watch command polls on a fixed interval and writes each cycle to
JSON snapshots, a session CSV, and a SQLite history database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/nseoptions)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("insecure", false, "skip TLS certificate verification")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newFetchCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newExpiriesCmd(app))
	rootCmd.AddCommand(newHistoryCmd(app))

	return rootCmd
}

// newClient builds an NSE client, merging the --insecure flag into the
// configured fetcher settings.
func (app *App) newClient(cmd *cobra.Command) (*nse.Client, error) {
	fc := app.Config.FetcherConfig()
	if insecure, _ := cmd.Flags().GetBool("insecure"); insecure {
		fc.Insecure = true
	}
	return nse.NewClient(fc, app.Logger)
}

// openStore opens the snapshot history database.
func (app *App) openStore() (*store.Store, error) {
	return store.New(app.Config.Output.DBPath)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("nseoptions v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("API")
	output.Printf("  Base:     %s\n", cfg.API.Base)
	output.Printf("  Type:     %s\n", cfg.API.Type)
	if cfg.API.URI != "" {
		output.Printf("  URI:      %s\n", cfg.API.URI)
	}
	output.Printf("  Timeout:  %s\n", cfg.API.Timeout)
	output.Printf("  Insecure: %v\n", cfg.API.Insecure)
	output.Println()

	output.Bold("Polling")
	output.Printf("  Interval:     %s\n", cfg.Poll.Interval)
	output.Printf("  Retry Wait:   %s\n", cfg.Poll.RetryWait)
	output.Printf("  Max Attempts: %d\n", cfg.Poll.MaxAttempts)
	output.Printf("  Max Failures: %d\n", cfg.Poll.MaxFailures)
	output.Println()

	output.Bold("Chain")
	output.Printf("  Strikes around ATM: %d\n", cfg.Chain.NStrikes)
	output.Println()

	output.Bold("Output")
	output.Printf("  Dir:    %s\n", cfg.Output.Dir)
	output.Printf("  JSON:   %v (raw: %v)\n", cfg.Output.JSON, cfg.Output.RawJSON)
	output.Printf("  CSV:    %v\n", cfg.Output.CSV)
	output.Printf("  SQLite: %v (%s)\n", cfg.Output.SQLite, cfg.Output.DBPath)

	return nil
}
