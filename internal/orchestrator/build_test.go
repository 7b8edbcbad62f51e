package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goask/internal/answer"
	"github.com/dbsmedya/goask/internal/config"
	"github.com/dbsmedya/goask/internal/logger"
	"github.com/dbsmedya/goask/internal/source"
	"github.com/dbsmedya/goask/internal/types"
)

func geminiServer(t *testing.T, reply string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": reply}}},
				"finishReason": "STOP",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, llmURL string) *config.Config {
	t.Helper()
	work := t.TempDir()
	data := filepath.Join(work, "data")
	require.NoError(t, os.MkdirAll(data, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(data, "sales.csv"),
		[]byte("region,amount\nnorth,10\nsouth,5\nnorth,2\n"), 0o644))

	cfg := config.DefaultConfig()
	cfg.CSV.Directory = data
	cfg.Embedding = config.EmbeddingConfig{Provider: "hash", Dimensions: 64, BatchSize: 8}
	cfg.Index = config.IndexConfig{
		Backend:  "file",
		Path:     filepath.Join(work, "goask.index"),
		DataPath: filepath.Join(work, "goask.data.json"),
	}
	cfg.Cache.Path = filepath.Join(work, "cache.db")
	cfg.LLM.APIKey = "test-key"
	cfg.LLM.BaseURL = llmURL
	cfg.LLM.RateLimit = 0
	return cfg
}

func TestBuild_AskOverCSV(t *testing.T) {
	var hits atomic.Int32
	srv := geminiServer(t,
		"```json\n{\"type\": \"csv\", \"query\": \"SELECT region, SUM(amount) AS total FROM sales GROUP BY region ORDER BY region\"}\n```",
		&hits)
	cfg := testConfig(t, srv.URL)
	ctx := context.Background()

	app, err := Build(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.DB.MySQL)
	require.NotNil(t, app.Cache)

	res, err := app.Ask(ctx, "total amount per region", AskOptions{})
	require.NoError(t, err)

	assert.Equal(t, answer.TypeCSV, res.Type)
	assert.True(t, res.Executed)
	assert.False(t, res.Cached)
	assert.Equal(t, []string{"region", "total"}, res.Columns)
	assert.Equal(t, [][]any{{"north", int64(12)}, {"south", int64(5)}}, res.Rows)
	require.Len(t, res.Sources, 1)
	assert.Equal(t, "sales", res.Sources[0].Table)
	assert.Equal(t, types.KindCSV, res.Sources[0].Kind)

	again, err := app.Ask(ctx, "total amount per region", AskOptions{})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, res.Rows, again.Rows)
	assert.Equal(t, int32(1), hits.Load())

	n, err := app.Cache.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBuild_RefreshIsIdempotent(t *testing.T) {
	var hits atomic.Int32
	cfg := testConfig(t, geminiServer(t, `{"type": null, "query": null}`, &hits).URL)
	ctx := context.Background()

	app, err := Build(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	defer app.Close()

	first, err := app.Refresh(ctx, false)
	require.NoError(t, err)
	assert.True(t, first.Index.Changed)
	assert.Equal(t, 1, first.Index.Count)
	assert.Equal(t, 1, first.Stats.ItemsFound)

	second, err := app.Refresh(ctx, false)
	require.NoError(t, err)
	assert.False(t, second.Index.Changed)

	docs, err := app.Retriever.Retrieve(ctx, "sales by region", 3)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "sales", docs[0].Source.Table)
}

func TestBuild_NoSources(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := Build(context.Background(), cfg, logger.NewNop())
	assert.ErrorIs(t, err, source.ErrNoSources)
}

func TestBuild_ErrorPathsReturnErrors(t *testing.T) {
	var hits atomic.Int32
	srv := geminiServer(t, `{"type": null, "query": null}`, &hits)

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown index backend", func(c *config.Config) { c.Index.Backend = "bogus" }, "unknown index backend"},
		{"unknown llm provider", func(c *config.Config) { c.LLM.Provider = "bogus" }, "bogus"},
		{"unknown embedding provider", func(c *config.Config) { c.Embedding.Provider = "bogus" }, "bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, srv.URL)
			tt.mutate(cfg)

			var app *App
			var err error
			require.NotPanics(t, func() {
				app, err = Build(context.Background(), cfg, logger.NewNop())
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Nil(t, app)
		})
	}
}

func TestApp_CloseNil(t *testing.T) {
	var app *App
	assert.NoError(t, app.Close())
}

func TestBuild_InvalidAnswerIsNotCached(t *testing.T) {
	var hits atomic.Int32
	cfg := testConfig(t, geminiServer(t, "Sorry, I cannot help with that.", &hits).URL)
	ctx := context.Background()

	app, err := Build(ctx, cfg, logger.NewNop())
	require.NoError(t, err)
	defer app.Close()

	for i := 0; i < 2; i++ {
		_, err := app.Ask(ctx, "total amount per region", AskOptions{})
		assert.ErrorIs(t, err, answer.ErrInvalidAnswer)
	}
	assert.Equal(t, int32(2), hits.Load())

	n, err := app.Cache.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
