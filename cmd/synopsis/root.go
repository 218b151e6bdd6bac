package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/synopsis/internal/report"
	"github.com/jackzampolin/synopsis/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string

	format report.OutputFormat
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "synopsis",
	Short: "Chapter-by-chapter book summaries with a rolling story context",
	Long: `Synopsis summarizes a book one chapter at a time. Each chapter is
extracted, summarized to roughly 13% of its length, analyzed, and folded
into a rolling context that informs the next chapter.

A book is a directory of chapter .txt files (first line is the title)
plus a .metadata JSON file. Summaries are written to <book>/summaries/.

The pipeline includes:
  - Token-bounded chunking of long chapters
  - Structured extraction with per-segment merge
  - Length-targeted summaries and thematic analysis
  - A run ledger for history and resume`,
	Version:      version.GitRelease,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		f, err := report.ParseOutputFormat(outputFormat)
		if err != nil {
			return err
		}
		format = f

		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.synopsis/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "synopsis home directory (default: ~/.synopsis)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn, error",
	)

	rootCmd.AddCommand(versionCmd)
}

// printReport writes data to stdout in the --output format.
func printReport(data any) error {
	return report.OutputTo(os.Stdout, format, data)
}
