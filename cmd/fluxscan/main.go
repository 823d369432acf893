// FluxScan - web application vulnerability scanner
// Passive header/reflection checks and active XSS, SQLi and SSTI probing.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fluxfuzzer/fluxscan/internal/config"
)

var (
	version = "0.1.0-dev"

	// Global flags
	configFile string
	verbose    bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fluxscan",
		Short: "FluxScan - web application vulnerability scanner",
		Long: `FluxScan inspects HTTP exchanges passively and mutates requests
with payloads to find injection vulnerabilities.

Checks:
  - Missing security headers, reflected parameters, version disclosure
  - Reflected XSS, SQL error disclosure, template injection`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(newScanCmd(), newServeCmd(), &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "FluxScan version %s\n", version)
		},
	})
	return rootCmd
}

// loadConfig returns the defaults or the file given by --config
func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(configFile)
}

// newLogger builds the process logger; verbose enables debug output
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
