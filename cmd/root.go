// =============================================================================
// GDEC Price Checker - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (pricecheck)
//   ├── reconcileCmd (pricecheck reconcile)
//   ├── promosCmd    (pricecheck promos)
//   ├── inspectCmd   (pricecheck inspect)
//   ├── serveCmd     (pricecheck serve)
//   └── versionCmd   (pricecheck version)
//
// SETUP (before any command that needs it):
//   1. Load config.yaml, .env and PRICECHECK_* variables
//   2. Build the logger
//   3. Build the policy registry and layer the platform override files on it
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/config"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/logging"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/policy"
	"github.com/Charlesssyyy/GDEC-Price-Checker/pkg/utils"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging.
var verbose bool

// logFormat overrides the configured log format.
var logFormat string

// Populated by setup.
var (
	appConfig *config.MainConfig
	logger    zerolog.Logger
	registry  *policy.Registry
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "pricecheck",
	Short: "GDEC Price Checker - Reconcile marketplace campaign uploads against brand promotions",
	Long: `GDEC Price Checker reconciles a marketplace campaign export (Lazada, Shopee
or TikTok Shop) against the brand's campaign list and produces the workbook
to upload, plus the rows that need follow-up.

Output sheets:
  - Eligible rows, ready to upload, in the marketplace's own template
  - Escalations, with the reason each row was held back
  - Unaffected rows (regular mode), for the brand to review

Example Usage:
  pricecheck promos --platform lazada --promotion campaign.xlsx
  pricecheck reconcile --platform lazada --target export.xlsx \
      --promotion campaign.xlsx --promo "Mega Sale"
  pricecheck serve`,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case !cmd.HasParent(), cmd.Name() == "version", cmd.Name() == "help":
			return nil
		}
		return setup(cmd)
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)

	rootCmd.PersistentFlags().StringVar(
		&logFormat,
		"log-format",
		"",
		"Log format: json, console or auto (overrides config)",
	)
}

// setup loads the configuration, logger and policies shared by the commands.
func setup(cmd *cobra.Command) error {
	path := cfgFile
	if flag := cmd.Flag("config"); (flag == nil || !flag.Changed) && !utils.FileExists(path) {
		// The default config.yaml is optional.
		path = ""
	}

	cfg, err := config.LoadMainConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}
	appConfig = cfg

	lc := logging.DefaultConfig()
	lc.Level = cfg.LogLevel
	lc.Format = cfg.LogFormat
	lc.Output = cfg.LogOutput
	if verbose {
		lc.Level = "debug"
	}
	if logFormat != "" {
		lc.Format = logFormat
	}
	logger = logging.NewLogger(lc)

	overrides, err := config.LoadPlatformConfigs(cfg.ConfigsDir)
	if err != nil {
		return fmt.Errorf("failed to load platform configs: %w", err)
	}
	registry = policy.NewRegistry()
	if err := registry.Apply(overrides); err != nil {
		return fmt.Errorf("failed to apply platform configs: %w", err)
	}

	logger.Debug().
		Str("config", path).
		Str("configs_dir", cfg.ConfigsDir).
		Int("overrides", len(overrides)).
		Msg("configuration loaded")
	return nil
}

// lookupPolicy resolves the --platform and --mode flags.
func lookupPolicy(platform, mode string, manual bool) (*policy.Policy, error) {
	pl, err := policy.ParsePlatform(platform)
	if err != nil {
		return nil, err
	}
	m, err := policy.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	if manual {
		m = policy.Manual
	}
	return registry.Lookup(pl, m)
}
