package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/synopsis/internal/home"
	"github.com/jackzampolin/synopsis/internal/prompts"
)

var (
	promptsBook  string
	promptsForce bool
)

// promptInfo is one row of prompts list.
type promptInfo struct {
	Key         string   `json:"key" yaml:"key"`
	Description string   `json:"description" yaml:"description"`
	Variables   []string `json:"variables" yaml:"variables"`
	Source      string   `json:"source" yaml:"source"`
	Hash        string   `json:"hash" yaml:"hash"`
}

func promptResolver() (*prompts.Resolver, *home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, nil, err
	}
	return newResolver(h, logger), h, nil
}

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Inspect and export stage prompts",
	Long: `Prompts are Go templates. Each can be overridden by placing <key>.tmpl in
<book-dir>/prompts/ (one book) or ~/.synopsis/prompts/ (all books).`,
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List prompts and where each resolves from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, _, err := promptResolver()
		if err != nil {
			return err
		}
		var rows []promptInfo
		for _, p := range r.AllEmbedded() {
			resolved, err := r.Resolve(cmd.Context(), p.Key, promptsBook)
			if err != nil {
				return err
			}
			rows = append(rows, promptInfo{
				Key:         p.Key,
				Description: p.Description,
				Variables:   resolved.Variables,
				Source:      resolved.Source,
				Hash:        resolved.Hash,
			})
		}
		return printReport(rows)
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print the template a prompt key resolves to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, _, err := promptResolver()
		if err != nil {
			return err
		}
		resolved, err := r.Resolve(cmd.Context(), args[0], promptsBook)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "# %s (%s)\n", resolved.Key, resolved.Source)
		fmt.Fprint(cmd.OutOrStdout(), resolved.Text)
		return nil
	},
}

var promptsExportCmd = &cobra.Command{
	Use:   "export [dir]",
	Short: "Write the embedded prompts as override templates",
	Long: `Write every embedded prompt to dir (default ~/.synopsis/prompts) as
<key>.tmpl. Existing files are kept unless --force is given.

Examples:
  synopsis prompts export
  synopsis prompts export ./books/dune/prompts`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, h, err := promptResolver()
		if err != nil {
			return err
		}
		dir := h.PromptsDir()
		if len(args) == 1 {
			dir = args[0]
		}
		written, err := prompts.Export(dir, r.AllEmbedded(), promptsForce)
		for _, path := range written {
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", path)
		}
		return err
	},
}

func init() {
	promptsCmd.PersistentFlags().StringVar(&promptsBook, "book", "", "Resolve overrides for this book directory")
	promptsExportCmd.Flags().BoolVar(&promptsForce, "force", false, "Overwrite existing files")

	promptsCmd.AddCommand(promptsListCmd)
	promptsCmd.AddCommand(promptsShowCmd)
	promptsCmd.AddCommand(promptsExportCmd)
	rootCmd.AddCommand(promptsCmd)
}
