// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"vidframe/internal/config"
	"vidframe/internal/log"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagProvider string
	flagBrowser  string
	flagJSON     bool
	flagDebug    bool
)

// cfg holds the loaded configuration (merged: defaults < config file < flags).
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "vidframe",
	Short: "Resolve and watch movies and series through embed providers",
	Long: `vidframe maps a movie or episode to the embed URL of a third-party
provider, keeps track of where you are in a series, and serves a
sandboxed player page that blocks the providers' popups.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "vidframe", Version)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagProvider, "provider", "p", "", "Embed provider id (see `vidframe providers`)")
	rootCmd.PersistentFlags().StringVar(&flagBrowser, "browser", "", "Browser used to open embed URLs")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "Machine-readable output")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")

	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads and merges configuration: defaults < config file < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if flagProvider != "" {
		cfg.Provider = flagProvider
	}
	if flagBrowser != "" {
		cfg.Browser = flagBrowser
	}
	if flagDebug {
		cfg.Debug = true
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log.Configure(log.Config{
		Level:   cfg.Level(),
		Console: term.IsTerminal(int(os.Stderr.Fd())),
	})
	return nil
}

// debugf logs a message at debug level.
func debugf(format string, args ...any) {
	logger := log.WithComponent("cli")
	logger.Debug().Msgf(format, args...)
}
