package main

import (
	"fmt"
	"os"
	"time"

	"evidencer/internal/config"
	"evidencer/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	// Loaded once in PersistentPreRunE
	cfg    config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "evidencer",
	Short: "evidencer - audit evidence collection over a persistent console session",
	Long: `evidencer drives one persistent browser session through SSO login,
console navigation and screenshot capture, and records every artifact
in a local evidence ledger.

The browser profile survives restarts, so a completed MFA approval is
reused across runs instead of prompting on every capture.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		if err := logging.Init(level); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logging.Named("cli")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".evidencer/config.yaml", "path to config file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall operation timeout")

	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(evidenceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
