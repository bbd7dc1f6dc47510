// Package cli provides the command-line interface for annomine.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tkral/annomine/internal/config"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	logFile string
	verbose bool

	logger     *slog.Logger
	logCleanup func() error
)

var rootCmd = &cobra.Command{
	Use:   "annomine",
	Short: "Resumable compound-annotation mining and similarity",
	Long: `Annomine retrieves structured annotations about chemical compounds from
slow, rate-limited external providers and computes pairwise compound
similarity from shared annotations.

Runs are checkpointed: a crashed or interrupted run resumes with --proceed
without re-querying finished compounds, and every finished artifact carries
a content-hash completeness marker so partial output is never mistaken for
complete output.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger, logCleanup = config.SetupLogger(logFile, level)
		slog.SetDefault(logger)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command and returns its error.
func Execute() error {
	return rootCmd.Execute()
}
