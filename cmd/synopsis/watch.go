package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/synopsis/internal/config"
	"github.com/jackzampolin/synopsis/internal/library"
	"github.com/jackzampolin/synopsis/internal/prompts"
	"github.com/jackzampolin/synopsis/internal/report"
	"github.com/jackzampolin/synopsis/internal/sink"
)

var (
	watchOpts        runOptions
	watchDebounce    time.Duration
	watchInitialScan bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <library-dir>",
	Short: "Summarize books as they are added to a library directory",
	Long: `Watch a library directory and summarize each book once its folder has
been quiet for the debounce period. Books are processed one at a time.
Runs until interrupted.

Examples:
  synopsis watch ./books
  synopsis watch ./books --initial-scan --resume`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		runner, err := a.runner(ctx, watchOpts)
		if err != nil {
			return err
		}

		a.manager.OnChange(func(*config.Config) {
			a.logger.Warn("config file changed; restart watch to apply it", "file", a.manager.ConfigFile())
		})
		if a.manager.ConfigFile() != "" {
			a.manager.WatchConfig()
		}

		ignore := []string{sink.DefaultDirName, prompts.OverrideDirName}
		if d := a.cfg.Output.DirName; d != "" && d != sink.DefaultDirName {
			ignore = append(ignore, d)
		}

		w := &library.Watcher{
			Runner:      runner,
			Debounce:    watchDebounce,
			InitialScan: watchInitialScan,
			Ignore:      ignore,
			Logger:      a.logger,
			OnReport: func(rep *report.Book, err error) {
				if rep != nil {
					if perr := printReport(rep); perr != nil {
						a.logger.Error("failed to print report", "error", perr)
					}
				}
			},
		}
		a.logger.Info("watching library", "dir", args[0])
		return w.Watch(ctx, args[0])
	},
}

func init() {
	addRunFlags(watchCmd, &watchOpts)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", library.DefaultDebounce, "Quiet period before a changed book runs")
	watchCmd.Flags().BoolVar(&watchInitialScan, "initial-scan", false, "Queue every existing book at startup")
	rootCmd.AddCommand(watchCmd)
}
