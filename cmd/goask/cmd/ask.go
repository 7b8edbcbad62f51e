package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goask/internal/answer"
	"github.com/dbsmedya/goask/internal/dispatch"
	"github.com/dbsmedya/goask/internal/llm"
	"github.com/dbsmedya/goask/internal/orchestrator"
	"github.com/dbsmedya/goask/internal/sqlutil"
)

var (
	askRefresh bool
	askFresh   bool
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a natural-language question",
	Long: `Ask retrieves the tables most relevant to the question, asks the language
model for a statement, and runs it against the source that owns those tables.

The index is built on first use. Answers are cached by exact question text;
--fresh bypasses the cached answer and stores the new one.

Example:
  goask ask "how many orders were placed in March?"
  goask ask --json "top 5 customers by revenue"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askRefresh, "refresh", false,
		"Re-extract sources and update the index before answering")
	askCmd.Flags().BoolVar(&askFresh, "fresh", false,
		"Ignore a cached answer for this question")
	askCmd.Flags().BoolVar(&askJSON, "json", false,
		"Print the result as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	question := strings.Join(args, " ")
	res, err := app.Ask(ctx, question, orchestrator.AskOptions{
		Refresh: askRefresh,
		NoCache: askFresh,
	})
	if err != nil {
		if hint := errorHint(err); hint != "" {
			return fmt.Errorf("%w\nhint: %s", err, hint)
		}
		return err
	}

	if askJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printAskResult(cmd.OutOrStdout(), res)
	return nil
}

func printAskResult(w io.Writer, res *orchestrator.Result) {
	if res.Type == answer.TypeNone {
		fmt.Fprintf(w, "%s the available data cannot answer this question\n", warnMark())
		printSources(w, res)
		return
	}

	cached := ""
	if res.Cached {
		cached = " (cached)"
	}
	fmt.Fprintf(w, "%s %s%s\n", label("Target:   "), res.Target, cached)
	fmt.Fprintf(w, "%s %s\n", label("Statement:"), res.Statement)

	switch {
	case !res.Executed:
		fmt.Fprintf(w, "%s execution disabled\n", warnMark())
	case res.Columns == nil:
		fmt.Fprintf(w, "%s %d rows affected\n", okMark(), res.RowsAffected)
	default:
		fmt.Fprintln(w)
		printTable(w, res.Columns, formatRows(res.Rows))
		suffix := ""
		if res.Truncated {
			suffix = " (truncated)"
		}
		fmt.Fprintf(w, "\n%d row(s)%s\n", len(res.Rows), suffix)
	}
	printSources(w, res)
}

func printSources(w io.Writer, res *orchestrator.Result) {
	if len(res.Sources) == 0 {
		return
	}
	names := make([]string, len(res.Sources))
	for i, s := range res.Sources {
		names[i] = s.Database + "." + s.Table
	}
	fmt.Fprintf(w, "%s %s\n", label("Sources:  "), strings.Join(names, ", "))
}

// errorHint explains the sentinel errors a user can act on.
func errorHint(err error) string {
	var invalid *sqlutil.InvalidIdentifierError
	switch {
	case errors.As(err, &invalid):
		return "a retrieved source has an unusable database name; rebuild with goask index --reset"
	case errors.Is(err, answer.ErrInvalidAnswer):
		return "the model reply was not a valid answer; try rephrasing the question"
	case errors.Is(err, dispatch.ErrWriteRejected):
		return "only read-only statements run unless dispatch.allow_writes is set"
	case errors.Is(err, dispatch.ErrNoCSVTable):
		return "the statement names a table with no matching file in csv.data_directory"
	case errors.Is(err, llm.ErrEmptyResponse):
		return "the model returned nothing; check llm.model and the API quota"
	default:
		return ""
	}
}
