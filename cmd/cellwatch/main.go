// Cellwatch detects IMSI catchers from a phone's diagnostic interface.
//
// It decodes the baseband's diagnostic log stream, tracks the serving cell
// and connection state, and runs heuristic analyzers that flag downgrades,
// null ciphering, plaintext identity requests and other patterns typical of
// rogue base stations. Captures can be analyzed offline, recorded live from
// the diagnostic device, served over HTTP, or exported to pcap for
// Wireshark.
//
// Usage:
//
//	cellwatch [command] [flags]
//
// See 'cellwatch --help' for available commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/cellwatch/internal/config"
	"github.com/muurk/cellwatch/internal/logging"
	"github.com/muurk/cellwatch/internal/version"
)

// exitFindings is the exit status when analysis reaches the --fail-on
// severity.
const exitFindings = 3

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if errors.Is(err, errFindings) {
		os.Exit(exitFindings)
	}
	os.Exit(1)
}

// Global flags
var (
	configPath string
	logLevel   string
	logFile    string
)

// cfg is loaded before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "cellwatch",
	Short: "IMSI catcher detection from baseband diagnostics",
	Long: `Cellwatch reads the diagnostic log stream of a cellular modem and flags
behavior typical of IMSI catchers: forced downgrades to 2G, null ciphering,
identity requests answered in plaintext, suspicious cell parameters and
unexpected connection redirects.

Configuration is read from config.yaml in the user config directory unless
--config is given. Flags override file values.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		opts := cfg.LoggingOptions()
		if cmd.Flags().Changed("log-level") {
			opts.Level = logLevel
		}
		if cmd.Flags().Changed("log-file") {
			opts.File = logFile
		}
		if opts.Level != "" {
			if _, err := logging.ParseLevel(opts.Level); err != nil {
				return err
			}
		}
		return logging.InitializeWithOptions(opts)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <config dir>/cellwatch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent if unset")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file, rotated by size")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("cellwatch %s\n", version.Full())
	},
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
