package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/goask/internal/config"
	"github.com/dbsmedya/goask/internal/database"
	"github.com/dbsmedya/goask/internal/index"
	"github.com/dbsmedya/goask/internal/source"
)

var validateConnect bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and check the data sources",
	Long: `Validate checks the configuration file and reports every invalid field at
once. With --connect it also checks the data sources and the saved index.

Checks performed:
  - Configuration syntax and required fields
  - Database connectivity (MySQL, PostgreSQL)
  - CSV directory readability
  - Saved index state

Example:
  goask validate --config goask.yaml --connect`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateConnect, "connect", false,
		"Also connect to the data sources and inspect the index")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	o := GetCLIOverrides()
	cfg.ApplyOverrides(o.LogLevel, o.LogFormat, o.TopK, o.NoCache)

	fmt.Fprintf(out, "=== Configuration Validation ===\n")
	fmt.Fprintf(out, "Config file: %s\n", configFile)
	printConfiguredSources(out, cfg)

	if err := cfg.Validate(); err != nil {
		var verrs config.ValidationErrors
		if errors.As(err, &verrs) {
			for _, v := range verrs {
				fmt.Fprintf(out, "%s %s: %s\n", failMark(), v.Field, v.Message)
			}
		}
		return fmt.Errorf("configuration is invalid")
	}
	fmt.Fprintf(out, "%s configuration\n", okMark())

	if !validateConnect {
		return nil
	}

	ctx := contextOf(cmd)
	failed := false
	check := func(name string, err error) {
		if err != nil {
			failed = true
			fmt.Fprintf(out, "%s %s: %v\n", failMark(), name, err)
			return
		}
		fmt.Fprintf(out, "%s %s\n", okMark(), name)
	}

	mgr := database.NewManager(cfg)
	err = mgr.Connect(ctx)
	if err == nil {
		err = mgr.Ping(ctx)
	}
	if cfg.MySQL.Enabled() || cfg.Postgres.Enabled() {
		check("database connections", err)
	}
	defer mgr.Close()

	if cfg.CSV.Enabled() {
		files, err := source.ListCSVFiles(cfg.CSV.Directory)
		if err == nil && len(files) == 0 {
			err = fmt.Errorf("no .csv files in %s", cfg.CSV.Directory)
		}
		check(fmt.Sprintf("csv directory (%d files)", len(files)), err)
	}

	store, err := index.Open(cfg.Index)
	if err != nil {
		check("index", err)
	} else {
		defer store.Close()
		meta, err := store.Meta(ctx)
		switch {
		case errors.Is(err, index.ErrIndexNotFound):
			fmt.Fprintf(out, "%s index not built yet (run goask index)\n", warnMark())
		case err != nil:
			check("index", err)
		default:
			check(fmt.Sprintf("index (%d items, %s, built %s)", meta.Count, meta.Model,
				meta.BuiltAt.Local().Format("2006-01-02 15:04")), nil)
		}
	}

	if failed {
		return fmt.Errorf("one or more checks failed")
	}
	return nil
}

func printConfiguredSources(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "Sources:\n")
	if cfg.MySQL.Enabled() {
		fmt.Fprintf(w, "  - mysql %s:%d\n", cfg.MySQL.Host, cfg.MySQL.Port)
	}
	if cfg.Postgres.Enabled() {
		fmt.Fprintf(w, "  - postgres\n")
	}
	if cfg.CSV.Enabled() {
		fmt.Fprintf(w, "  - csv %s\n", cfg.CSV.Directory)
	}
	if cfg.ObjectStore.Enabled {
		fmt.Fprintf(w, "  - s3 %s/%s\n", cfg.ObjectStore.Bucket, cfg.ObjectStore.Prefix)
	}
	if !cfg.HasSources() {
		fmt.Fprintf(w, "  (none)\n")
	}
}
