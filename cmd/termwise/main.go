// Package main provides the termwise command-line tool: ask for shell
// commands, explain command output, or serve the assistant over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/termwise/termwise/internal/logging"
	"github.com/termwise/termwise/internal/version"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "termwise",
		Short:         "termwise: natural-language shell assistant",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.SetupWriter(cmd.ErrOrStderr(), flags.logLevel, flags.logFormat)
		},
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", os.Getenv("TERMWISE_CONFIG"),
		"path to config file (JSON/YAML); defaults to $TERMWISE_CONFIG")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", envOr("LOG_FORMAT", "text"), "log format: json or text")

	root.AddCommand(
		newAskCmd(flags),
		newExplainCmd(flags),
		newREPLCmd(flags),
		newServeCmd(flags),
		newValidateCmd(),
		newLogCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
