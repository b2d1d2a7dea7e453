// Command derive runs, validates and serves reactive graph scenarios.
package main

import (
	"os"

	"github.com/spf13/cobra"

	errs "github.com/vango-dev/derive/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errs.Print(os.Stderr, err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	noColor    bool
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "derive",
		Short: "Run and serve fine-grained reactive graphs",
		Long: `derive builds graphs of sources, derived values and effects from
scenario files, and checks how they recompute.

  • run      executes a scenario's steps and checks their expectations
  • validate checks scenario files without running them
  • serve    exposes a scenario graph over HTTP and WebSocket`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.noColor || !isTerminal(cmd.ErrOrStderr()) {
				errs.DisableColors()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to derive.json (default: nearest one above the working directory)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		runCmd(&flags),
		validateCmd(),
		serveCmd(&flags),
		versionCmd(),
	)
	return rootCmd
}
