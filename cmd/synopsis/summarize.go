package main

import (
	"github.com/spf13/cobra"
)

var summarizeOpts runOptions

var summarizeCmd = &cobra.Command{
	Use:   "summarize <book-dir>",
	Short: "Summarize every chapter of one book",
	Long: `Summarize a book directory chapter by chapter.

Chapters are processed strictly in order; each chapter's summary and
analysis are written as soon as it completes, and the rolling context is
written to summaries/book_context.json when the book finishes.

With --resume, chapters already persisted by an earlier run (as recorded
in the ledger) are not re-summarized and their context is restored.

Examples:
  synopsis summarize ./books/and_then_there_were_none
  synopsis summarize ./books/dreams --category nonfiction
  synopsis summarize ./books/dune --resume --provider anthropic`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		runner, err := a.runner(ctx, summarizeOpts)
		if err != nil {
			return err
		}

		rep, err := runner.RunBook(ctx, args[0])
		if rep != nil {
			if perr := printReport(rep); perr != nil {
				return perr
			}
		}
		return err
	},
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().StringVar(&opts.provider, "provider", "", "LLM provider (default: defaults.llm_provider)")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model override for the provider")
	cmd.Flags().StringVar(&opts.category, "category", "", "Force the book category: fiction or nonfiction")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "Skip chapters a previous run already persisted")
}

func init() {
	addRunFlags(summarizeCmd, &summarizeOpts)
	rootCmd.AddCommand(summarizeCmd)
}
