package main

import (
	"github.com/spf13/cobra"
)

var (
	runAllOpts        runOptions
	runAllConcurrency int
)

var runAllCmd = &cobra.Command{
	Use:   "run-all <library-dir>",
	Short: "Summarize every book in a library directory",
	Long: `Summarize every book directory under a library directory.

A book directory is any sub-directory holding a .metadata file or chapter
.txt files. Books run in parallel, each with its own rolling context; a
failing book is reported and does not stop the others.

Examples:
  synopsis run-all ./books
  synopsis run-all ./books --concurrency 4 --resume`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		runner, err := a.runner(ctx, runAllOpts)
		if err != nil {
			return err
		}
		runner.Concurrency = a.cfg.Defaults.MaxBooks
		if cmd.Flags().Changed("concurrency") {
			runner.Concurrency = runAllConcurrency
		}

		rep, err := runner.RunAll(ctx, args[0])
		if rep != nil {
			if perr := printReport(rep); perr != nil {
				return perr
			}
		}
		return err
	},
}

func init() {
	addRunFlags(runAllCmd, &runAllOpts)
	runAllCmd.Flags().IntVar(&runAllConcurrency, "concurrency", 0, "Books processed at once (default: defaults.max_books)")
	rootCmd.AddCommand(runAllCmd)
}
