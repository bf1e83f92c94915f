// Package cmd provides the CLI commands for bookrag.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bookrag/bookrag/internal/logging"
	"github.com/bookrag/bookrag/pkg/version"
)

// Debug logging flag
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the bookrag CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookrag",
		Short: "Hybrid retrieval engine for book corpora",
		Long: `bookrag provides hybrid retrieval (BM25 + dense embeddings) over
pre-chunked book corpora for RAG pipelines.

It fuses lexical and semantic rankings with Reciprocal Rank Fusion,
filters by chapter metadata, and diversifies the final list with MMR.

Run 'bookrag index' on a corpus file, then 'bookrag retrieve --q "..."'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.SetVersionTemplate("bookrag version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.bookrag/logs/")

	cmd.PersistentPreRunE = startDebugLogging
	cmd.PersistentPostRunE = stopDebugLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newRetrieveCmd())
	cmd.AddCommand(newEvalCmd())
	cmd.AddCommand(newQrelsCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startDebugLogging enables file logging at debug level if --debug is set.
func startDebugLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))
	return nil
}

func stopDebugLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
