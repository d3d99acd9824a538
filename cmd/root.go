package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel string // Log verbosity level
	cacheDir string // Directory-backed simulation cache
	cacheDB  string // SQLite-backed simulation cache (takes precedence over cacheDir)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "etmc",
	Short: "Monte Carlo energy-transfer simulation and decay-curve fitting",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the CLI root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// init sets up persistent flags; subcommands register themselves in their own files.
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "etmc-cache", "Directory holding cached simulation results")
	rootCmd.PersistentFlags().StringVar(&cacheDB, "cache-db", "", "SQLite file holding cached simulation results (overrides --cache-dir)")
}
