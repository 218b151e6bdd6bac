package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/synopsis/internal/llmcall"
)

var (
	historyLimit int
	historyRun   string
	historyCalls bool
	historyStage string
)

var historyCmd = &cobra.Command{
	Use:   "history [book-dir]",
	Short: "Show past runs from the ledger",
	Long: `Show runs recorded in the ledger, newest first.

With a book directory, only that book's runs are listed. With --run, the
chapters of one run are shown instead; add --calls for its LLM calls.

Examples:
  synopsis history
  synopsis history ./books/dune --limit 5
  synopsis history --run 2f6c... --calls --stage extract`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := requireLedger(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if historyRun != "" {
			if historyCalls {
				calls, err := a.ledger.Calls(ctx, llmcall.QueryFilter{
					RunID: historyRun,
					Stage: historyStage,
					Limit: historyLimit,
				})
				if err != nil {
					return err
				}
				return printReport(calls)
			}
			chapters, err := a.ledger.Chapters(ctx, historyRun)
			if err != nil {
				return err
			}
			return printReport(chapters)
		}

		var bookID string
		if len(args) == 1 {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			bookID = filepath.Base(abs)
		}
		runs, err := a.ledger.Runs(ctx, bookID, historyLimit)
		if err != nil {
			return err
		}
		return printReport(runs)
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum rows to show (0 for all)")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Show one run's chapters")
	historyCmd.Flags().BoolVar(&historyCalls, "calls", false, "With --run, show LLM calls instead of chapters")
	historyCmd.Flags().StringVar(&historyStage, "stage", "", "With --calls, filter by stage")
	rootCmd.AddCommand(historyCmd)
}
