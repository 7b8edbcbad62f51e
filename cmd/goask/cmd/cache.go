package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goask/internal/cache"
	"github.com/dbsmedya/goask/internal/config"
)

var cacheListLimit int

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the answer cache",
	Long: `Cache manages the SQLite database of cached answers.

Example:
  goask cache list --limit 20
  goask cache delete "how many orders were placed in March?"
  goask cache clear`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached answers, newest first",
	RunE:  runCacheList,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached answer",
	RunE:  runCacheClear,
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <question>",
	Short: "Remove the cached answer for one question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCacheDelete,
}

func init() {
	cacheListCmd.Flags().IntVarP(&cacheListLimit, "limit", "n", 50,
		"Maximum number of entries to show (0 for all)")

	cacheCmd.AddCommand(cacheListCmd, cacheClearCmd, cacheDeleteCmd)
	rootCmd.AddCommand(cacheCmd)
}

// openCache loads the configuration without validating the data sources,
// which the cache commands do not touch.
func openCache() (*cache.Cache, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	c, err := cache.Open(cfg.Cache.Path, cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", cfg.Cache.Path, err)
	}
	return c, nil
}

func runCacheList(cmd *cobra.Command, args []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := contextOf(cmd)
	total, err := c.Count(ctx)
	if err != nil {
		return err
	}
	if total == 0 {
		cmd.Println("Cache is empty")
		return nil
	}
	entries, err := c.List(ctx, cacheListLimit)
	if err != nil {
		return err
	}

	rows := make([][]string, len(entries))
	for i, e := range entries {
		tables := make([]string, len(e.Sources))
		for j, s := range e.Sources {
			tables[j] = s.Table
		}
		rows[i] = []string{
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Query,
			strings.Join(tables, ", "),
			strconv.Itoa(len(e.Answer)),
		}
	}
	out := cmd.OutOrStdout()
	printTable(out, []string{"CREATED", "QUESTION", "TABLES", "ANSWER BYTES"}, rows)
	fmt.Fprintf(out, "\nShowing %d of %d cached answer(s)\n", len(entries), total)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}
	defer c.Close()

	n, err := c.Clear(contextOf(cmd))
	if err != nil {
		return err
	}
	cmd.Printf("%s removed %d cached answer(s)\n", okMark(), n)
	return nil
}

func runCacheDelete(cmd *cobra.Command, args []string) error {
	c, err := openCache()
	if err != nil {
		return err
	}
	defer c.Close()

	question := strings.Join(args, " ")
	ok, err := c.Delete(contextOf(cmd), question)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no cached answer for %q", question)
	}
	cmd.Printf("%s removed cached answer for %q\n", okMark(), question)
	return nil
}
