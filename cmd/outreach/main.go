package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/foxzi/outreach/internal/config"
)

var (
	cfgFile   string
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	// Credentials and overrides may live in a local .env during
	// development; a missing file is not an error.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "outreach",
	Short: "Outreach - throttled recruiter email campaigns",
	Long: `Outreach sends a personalized email with a fixed attachment to a list
of recipients, throttled in randomized batches, skipping addresses it
has already written to its sent log.`,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("outreach version %s\n", version)
		if commit != "unknown" {
			fmt.Printf("  commit: %s\n", commit)
		}
		if buildTime != "unknown" {
			fmt.Printf("  built:  %s\n", buildTime)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")

	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd, versionCmd)
}

// loadConfig reads the configured file, or builds a default config
// from the environment when no file is given.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	return config.Default()
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("config file is required (use -c flag)")
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Sender:     %s\n", cfg.Sender.Address)
	fmt.Printf("  SMTP relay: %s:%d\n", cfg.SMTP.Host, cfg.SMTP.Port)
	fmt.Printf("  Recipients: %s (columns: %v)\n", cfg.Recipients.File, cfg.Recipients.Columns)
	fmt.Printf("  Sent log:   %s (%s)\n", cfg.SentLog.Path, cfg.SentLog.Backend)
	fmt.Printf("  Throttle:   batches of %d, %s-%s between batches\n",
		cfg.Throttle.BatchSize, cfg.Throttle.MinDelay, cfg.Throttle.MaxDelay)

	return nil
}
