package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/finvoice-bridge/internal/config"
	"github.com/rezonia/finvoice-bridge/internal/logger"
)

var (
	version = "1.0.0"

	// Global flags
	cfgFile      string
	verbose      bool
	logLevel     string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "finvoice-bridge",
	Short: "Exchange Finvoice e-invoices between Odoo and Maventa",
	Long: `Finvoice Bridge sends Odoo customer invoices to the Maventa network as
Finvoice 3.0 messages and imports invoices received from Maventa as Odoo vendor bills.

Profiles pairing a Maventa company with an Odoo company are read from
profiles.json (or the file named by --config / FINVOICE_CONFIG).

Examples:
  # Run every enabled profile
  finvoice-bridge run

  # Run one profile, importing invoices from the last 30 days
  finvoice-bridge run --profile acme --days 30

  # Decode a received Finvoice file
  finvoice-bridge decode invoice.xml -f table

  # Render a Finvoice message from a JSON document
  finvoice-bridge encode invoice.json --envelope -o payload.xml`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Profile configuration file (env: FINVOICE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (env: FINVOICE_LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, table)")

	// Load from environment variables if not set via flags
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	cfgFile = config.Path(cfgFile)
	if logLevel == "" {
		logLevel = os.Getenv(config.EnvLogLevel)
	}

	lc := logger.DefaultConfig()
	lc.Level = "warn"
	if verbose {
		lc.Level = "debug"
	}
	if logLevel != "" {
		lc.Level = logLevel
	}
	if err := logger.Setup(lc); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid log level %q, using warn\n", lc.Level)
		lc.Level = "warn"
		_ = logger.Setup(lc)
	}
}

// loadConfig reads the profile file and reconfigures logging from it
func loadConfig() (*config.Config, error) {
	printVerbose("Loading configuration from %s\n", cfgFile)
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := logger.Setup(cfg.LoggerConfig()); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	return cfg, nil
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
