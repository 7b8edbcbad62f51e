package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goask/internal/orchestrator"
)

var (
	indexForce bool
	indexReset bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Extract every data source and update the vector index",
	Long: `Index scans the configured sources, samples every table and CSV file,
and embeds the result into the vector index. The index is only rebuilt when
the catalog changed since the last run, unless --force is given. --reset
deletes the saved index first, for example after switching embedding models.

When MySQL is configured the refresh holds a MySQL advisory lock, so two
goask processes never rebuild the same index at once.

Example:
  goask index --config goask.yaml
  goask index --force
  goask index --reset`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexForce, "force", false,
		"Rebuild the index even when the catalog is unchanged")
	indexCmd.Flags().BoolVar(&indexReset, "reset", false,
		"Delete the saved index and build it from scratch")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
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

	var res *orchestrator.RefreshResult
	if indexReset {
		res, err = app.Reset(ctx)
	} else {
		res, err = app.Refresh(ctx, indexForce)
	}
	if err != nil {
		if ctx.Err() != nil {
			log.Warn("Indexing cancelled")
			return nil
		}
		return fmt.Errorf("indexing failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n=== Index %s ===\n", okMark())
	fmt.Fprintf(out, "%s %d scanned, %d failed\n", label("Sources:"), res.Stats.SourcesScanned, res.Stats.SourcesFailed)
	fmt.Fprintf(out, "%s %d\n", label("Items:  "), res.Index.Count)
	if res.Index.Changed {
		fmt.Fprintf(out, "%s rebuilt (%s, %d dimensions)\n", label("Index:  "), res.Index.Meta.Model, res.Index.Meta.Dimensions)
	} else {
		fmt.Fprintf(out, "%s unchanged\n", label("Index:  "))
	}
	if res.CacheCleared > 0 {
		fmt.Fprintf(out, "%s %d cached answers cleared\n", label("Cache:  "), res.CacheCleared)
	}
	fmt.Fprintf(out, "%s %s\n", label("Took:   "), res.Duration.Round(time.Millisecond))
	return nil
}
