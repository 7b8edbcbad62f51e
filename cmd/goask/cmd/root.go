package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile   string
	logLevel  string
	logFormat string
	topK      int
	noCache   bool
	noColor   bool
)

var rootCmd = &cobra.Command{
	Use:   "goask",
	Short: "Ask questions about your tables and CSV files",
	Long: `goask answers natural-language questions over MySQL, PostgreSQL and CSV
data sources. It indexes the schema and a sample of every table, retrieves the
tables relevant to a question, asks a language model for a SQL statement and
runs it against the right source.

Features:
  - MySQL, PostgreSQL, CSV directory and S3-compatible bucket sources
  - Vector index kept on disk, rebuilt only when the catalog changes
  - Read-only statement guard and row limits
  - SQLite answer cache
  - Scheduled re-indexing`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "goask.yaml",
		"Path to configuration file")

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	rootCmd.PersistentFlags().IntVar(&topK, "top-k", 0,
		"Override number of documents retrieved per question")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false,
		"Disable the answer cache")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"Disable colored output")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel  string
	LogFormat string
	TopK      int
	NoCache   bool
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:  logLevel,
		LogFormat: logFormat,
		TopK:      topK,
		NoCache:   noCache,
	}
}
