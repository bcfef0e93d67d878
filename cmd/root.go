// =============================================================================
// ledgersync - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// (run, run-all, diff, validate, version) is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (ledgersync)
//   ├── runCmd      (ledgersync run <job>)
//   ├── runAllCmd   (ledgersync run-all)
//   ├── diffCmd     (ledgersync diff <job>)
//   ├── validateCmd (ledgersync validate)
//   └── versionCmd  (ledgersync version)
//
// CONFIGURATION PRECEDENCE (highest first):
//   1. Command-line flags
//   2. LEDGERSYNC_* environment variables
//   3. .env / .env.local in the working directory
//   4. The YAML configuration file (--config)
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/ginjaninja78/ledgersync/internal/config"
	"github.com/ginjaninja78/ledgersync/internal/ledgerpath"
	"github.com/ginjaninja78/ledgersync/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
var cfgFile string

// verbose enables debug logging.
var verbose bool

// logFormat selects the diagnostic log format: auto, console or json.
var logFormat string

// envPrefix is prepended to every environment override.
const envPrefix = "LEDGERSYNC"

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ledgersync",
	Short: "ledgersync - Merge broker exports into the customer ledger workbook",
	Long: `ledgersync reconciles the daily broker exports (FOK, Samsung, NH,
Hanwha) with the password-protected customer ledger workbook.

Each job in the configuration locates the newest matching export in the
download folder, loads it, and applies it to one sheet or a few summary
cells of the ledger. The ledger is saved in place; an open Excel window
holding the file makes ledgersync wait and retry.

Example Usage:
  ledgersync run fok                 # Merge the newest FOK export
  ledgersync run sam --dry-run       # Show what would change, save nothing
  ledgersync run-all                 # Run the configured sequence
  ledgersync diff fok-check          # Write a diff report, leave the ledger alone
  ledgersync validate                # Check config, exports and ledger columns`,

	SilenceUsage:  true,
	SilenceErrors: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		config.DefaultPath,
		"Path to the configuration file",
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
		"auto",
		"Diagnostic log format: auto, console or json",
	)

	for _, name := range []string{"config", "verbose", "log-format"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind %s flag: %v", name, err))
		}
	}
}

// initConfig loads .env files and sets up the environment overrides.
func initConfig() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// loadConfig reads the configuration file, applies the environment
// overrides and configures logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return nil, err
	}

	// LEDGERSYNC_LEDGER_PATH
	if path := viper.GetString("ledger.path"); path != "" {
		cfg.Ledger.Path = path
	}
	// LEDGERSYNC_LOG_LEVEL
	if level := viper.GetString("log.level"); level != "" {
		cfg.LogLevel = level
	}
	if viper.GetBool("verbose") {
		cfg.LogLevel = "debug"
	}

	logging.Setup(cfg.LogLevel, viper.GetString("log-format"))
	logging.Default().Debug().Str("config", viper.GetString("config")).Str("log_level", cfg.LogLevel).Msg("configuration loaded")
	return cfg, nil
}

// resolveLedger finds the ledger workbook and reports where it is.
func resolveLedger(cmd *cobra.Command, cfg *config.Config) (string, error) {
	path, err := ledgerpath.Resolve(cfg.Ledger)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Ledger: %s\n", path)
	return path, nil
}

// forwardedFlags returns the global flags to pass on to child processes.
func forwardedFlags() []string {
	args := []string{"--config", viper.GetString("config"), "--log-format", viper.GetString("log-format")}
	if viper.GetBool("verbose") {
		args = append(args, "--verbose")
	}
	return args
}
