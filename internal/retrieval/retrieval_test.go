package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goask/internal/embed"
	"github.com/dbsmedya/goask/internal/index"
	"github.com/dbsmedya/goask/internal/types"
)

// countingEmbedder records how many texts went through Embed.
type countingEmbedder struct {
	embed.Embedder
	texts atomic.Int64
	fail  error
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.fail != nil {
		return nil, c.fail
	}
	c.texts.Add(int64(len(texts)))
	return c.Embedder.Embed(ctx, texts)
}

func catalog() []types.DataItem {
	return []types.DataItem{
		{
			Source: "mysql", Kind: types.KindSQL, Dialect: types.DialectMySQL,
			Database: "shop", Table: "orders",
			Schema:     []types.Column{{Name: "order_id", Type: "int"}, {Name: "order_total", Type: "decimal(10,2)"}},
			SampleData: [][]any{{int64(1), "10.00"}, {int64(2), "25.50"}},
		},
		{
			Source: "mysql", Kind: types.KindSQL, Dialect: types.DialectMySQL,
			Database: "hr", Table: "employees",
			Schema:     []types.Column{{Name: "employee_name", Type: "varchar(64)"}, {Name: "salary", Type: "int"}},
			SampleData: [][]any{{"Ada", int64(100)}},
		},
		{
			Source: "csv", Kind: types.KindCSV, Dialect: types.DialectCSV,
			Database: "./data", Table: "weather",
			Schema:     []types.Column{{Name: "city"}, {Name: "temperature"}, {Name: "rainfall"}},
			SampleData: [][]any{{"Oslo", "4", "12"}},
		},
	}
}

func newFixture(t *testing.T) (*countingEmbedder, index.Store) {
	t.Helper()
	dir := t.TempDir()
	e := &countingEmbedder{Embedder: embed.NewHashEmbedder(128)}
	return e, index.NewFileStore(filepath.Join(dir, "goask.index"), filepath.Join(dir, "goask.data.json"))
}

func TestIndexSkipsUnchangedCatalog(t *testing.T) {
	ctx := context.Background()
	e, store := newFixture(t)
	ix := NewIndexer(e, store, 2, nil)

	res, err := ix.Index(ctx, catalog(), false)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, 128, res.Meta.Dimensions)
	assert.Equal(t, "hash", res.Meta.Provider)
	assert.EqualValues(t, 3, e.texts.Load())

	res, err = ix.Index(ctx, catalog(), false)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 3, res.Count)
	assert.EqualValues(t, 3, e.texts.Load(), "unchanged catalog must not be re-embedded")

	res, err = ix.Index(ctx, catalog(), true)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.EqualValues(t, 6, e.texts.Load())

	changed := catalog()[:2]
	res, err = ix.Index(ctx, changed, false)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 2, res.Count)
}

func TestIndexErrors(t *testing.T) {
	ctx := context.Background()
	e, store := newFixture(t)

	_, err := NewIndexer(e, store, 8, nil).Index(ctx, nil, false)
	assert.True(t, errors.Is(err, ErrNothingToIndex))

	boom := errors.New("quota exceeded")
	e.fail = boom
	_, err = NewIndexer(e, store, 8, nil).Index(ctx, catalog(), false)
	assert.True(t, errors.Is(err, boom))

	_, err = store.Meta(ctx)
	assert.True(t, errors.Is(err, index.ErrIndexNotFound), "failed embedding must not save anything")
}

func TestRetrieve(t *testing.T) {
	ctx := context.Background()
	e, store := newFixture(t)
	_, err := NewIndexer(e, store, 0, nil).Index(ctx, catalog(), false)
	require.NoError(t, err)

	r := NewRetriever(e, store, 0, nil)
	docs, err := r.Retrieve(ctx, "employee_name salary", 0)
	require.NoError(t, err)
	require.Len(t, docs, 3, "default top-k is larger than the catalog")

	top := docs[0]
	assert.Equal(t, "employees", top.Source.Table)
	assert.Equal(t, "hr", top.Source.Database)
	assert.Equal(t, types.KindSQL, top.Source.Kind)
	assert.Greater(t, top.Source.Score, docs[2].Source.Score)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(top.Content), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Ada", rows[0]["employee_name"])

	docs, err = r.Retrieve(ctx, "city temperature rainfall", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "weather", docs[0].Source.Table)
	assert.Equal(t, types.KindCSV, docs[0].Source.Kind)
}

func TestRetrieveWithoutIndex(t *testing.T) {
	e, store := newFixture(t)
	_, err := NewRetriever(e, store, 5, nil).Retrieve(context.Background(), "anything", 0)
	assert.True(t, errors.Is(err, index.ErrIndexNotFound))
}
