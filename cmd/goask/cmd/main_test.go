package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every package-level flag variable to its default.
func resetFlags() {
	cfgFile = "goask.yaml"
	logLevel, logFormat = "", ""
	topK = 0
	noCache, noColor = false, false
	indexForce, indexReset = false, false
	askRefresh, askFresh, askJSON = false, false, false
	searchK = 0
	cacheListLimit = 50
	validateConnect = false
	watchSchedule = ""
}

// runCLI executes the root command with args and returns its output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLIContext(t, context.Background(), args...)
}

// runCLIContext is runCLI with a parent context for the command.
func runCLIContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	enabled := color.Enable
	color.Enable = false
	t.Cleanup(func() { color.Enable = enabled })

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		setContext(rootCmd, context.Background())
	})

	// Cobra only hands the root context to subcommands without one.
	setContext(rootCmd, ctx)
	err := rootCmd.ExecuteContext(ctx)
	return buf.String(), err
}

func setContext(c *cobra.Command, ctx context.Context) {
	c.SetContext(ctx)
	for _, sub := range c.Commands() {
		setContext(sub, ctx)
	}
}

type workspace struct {
	dir     string
	csvDir  string
	config  string
	cacheDB string
}

// newWorkspace writes a CSV directory and a config file using the hash
// embedder, so nothing but the LLM endpoint is needed.
func newWorkspace(t *testing.T, llmURL string) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		dir:     dir,
		csvDir:  filepath.Join(dir, "data"),
		config:  filepath.Join(dir, "goask.yaml"),
		cacheDB: filepath.Join(dir, "cache.db"),
	}
	require.NoError(t, os.MkdirAll(ws.csvDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ws.csvDir, "sales.csv"),
		[]byte("region,amount\nnorth,10\nsouth,5\nnorth,2\n"), 0o644))

	if llmURL == "" {
		llmURL = "http://127.0.0.1:1"
	}
	yaml := strings.Join([]string{
		"csv:",
		"  directory: " + ws.csvDir,
		"embedding:",
		"  provider: hash",
		"  dimensions: 32",
		"index:",
		"  backend: file",
		"  path: " + filepath.Join(dir, "goask.index"),
		"  data_path: " + filepath.Join(dir, "goask.data.json"),
		"cache:",
		"  enabled: true",
		"  path: " + ws.cacheDB,
		"llm:",
		"  provider: gemini",
		"  model: gemini-test",
		"  api_key: test-key",
		"  base_url: " + llmURL,
		"  rate_limit: 0",
		"logging:",
		"  level: error",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(ws.config, []byte(yaml), 0o644))
	return ws
}

func TestExecute(t *testing.T) {
	assert.NotNil(t, Execute)
}

func TestVersionVariables(t *testing.T) {
	assert.NotEmpty(t, Version, "Version should not be empty")
	assert.NotEmpty(t, Commit, "Commit should not be empty")
}

func TestCLIFlagsDefaults(t *testing.T) {
	resetFlags()
	assert.Equal(t, "goask.yaml", GetConfigFile())
	assert.Equal(t, CLIOverrides{}, GetCLIOverrides())
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"index", "ask", "search", "sources", "cache", "validate", "watch", "version"} {
		assert.True(t, names[want], "command %q should be registered", want)
	}

	sub := map[string]bool{}
	for _, c := range cacheCmd.Commands() {
		sub[c.Name()] = true
	}
	assert.True(t, sub["list"])
	assert.True(t, sub["clear"])
	assert.True(t, sub["delete"])
}

func TestGetCLIOverrides(t *testing.T) {
	resetFlags()
	defer resetFlags()
	logLevel, logFormat, topK, noCache = "debug", "json", 7, true

	assert.Equal(t, CLIOverrides{LogLevel: "debug", LogFormat: "json", TopK: 7, NoCache: true}, GetCLIOverrides())
}
