package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var searchK int

var searchCmd = &cobra.Command{
	Use:   "search <question>",
	Short: "Show the tables retrieved for a question",
	Long: `Search runs only the retrieval step: it embeds the question and lists the
closest tables and CSV files with their similarity scores. No language model
is called and nothing is executed.

Example:
  goask search -k 10 "customer addresses"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchK, "top", "k", 0,
		"Number of results (default retrieval.top_k)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := commandContext(cmd, log)
	defer stop()

	app, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.EnsureIndex(ctx); err != nil {
		return err
	}

	docs, err := app.Retriever.Retrieve(ctx, strings.Join(args, " "), searchK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(docs) == 0 {
		cmd.Println("No documents in the index")
		return nil
	}

	rows := make([][]string, len(docs))
	for i, d := range docs {
		s := d.Source
		rows[i] = []string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(float64(s.Score), 'f', 4, 32),
			s.Source,
			string(s.Kind),
			s.Database,
			s.Table,
			strconv.Itoa(len(s.Schema)),
		}
	}
	printTable(cmd.OutOrStdout(), []string{"#", "SCORE", "SOURCE", "KIND", "DATABASE", "TABLE", "COLUMNS"}, rows)
	return nil
}
