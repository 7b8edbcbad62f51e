package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goask/internal/config"
	"github.com/dbsmedya/goask/internal/types"
)

func testItems() []types.DataItem {
	return []types.DataItem{
		{
			Source: "mysql", Kind: types.KindSQL, Dialect: types.DialectMySQL,
			Database: "shop", Table: "orders",
			Schema:     []types.Column{{Name: "id", Type: "int"}, {Name: "total", Type: "decimal"}},
			SampleData: [][]any{{int64(1), "10.00"}},
		},
		{
			Source: "mysql", Kind: types.KindSQL, Dialect: types.DialectMySQL,
			Database: "shop", Table: "customers",
			Schema: []types.Column{{Name: "id", Type: "int"}, {Name: "name", Type: "varchar"}},
		},
		{
			Source: "csv", Kind: types.KindCSV, Dialect: types.DialectCSV,
			Database: "./data", Table: "weather",
			Schema: []types.Column{{Name: "city"}, {Name: "temp"}},
		},
	}
}

func testEntries() []Entry {
	items := testItems()
	return []Entry{
		{Item: items[0], Vector: []float32{1, 0, 0}},
		{Item: items[1], Vector: []float32{0, 1, 0}},
		{Item: items[2], Vector: []float32{0, 0, 1}},
	}
}

func testMeta() Meta {
	return Meta{
		Fingerprint: Fingerprint(testItems(), "hash", "fnv-trigram"),
		Provider:    "hash",
		Model:       "fnv-trigram",
		Dimensions:  3,
		BuiltAt:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// exerciseStore runs the behavior every Store implementation shares.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	assert.True(t, errors.Is(err, ErrIndexNotFound), "got %v", err)
	_, err = s.Meta(ctx)
	assert.True(t, errors.Is(err, ErrIndexNotFound), "got %v", err)

	require.NoError(t, s.Save(ctx, testEntries(), testMeta()))

	meta, err := s.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, meta.Count)
	assert.Equal(t, testMeta().Fingerprint, meta.Fingerprint)
	assert.True(t, meta.BuiltAt.Equal(testMeta().BuiltAt))

	hits, err := s.Search(ctx, []float32{0.1, 0.9, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "customers", hits[0].Item.Table)
	assert.Equal(t, "orders", hits[1].Item.Table)
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.Equal(t, []types.Column{{Name: "id", Type: "int"}, {Name: "name", Type: "varchar"}}, hits[0].Item.Schema)

	_, err = s.Search(ctx, []float32{1, 0}, 2)
	assert.True(t, errors.Is(err, ErrDimensionMismatch), "got %v", err)

	// Saving again replaces the content.
	entries := testEntries()[:1]
	require.NoError(t, s.Save(ctx, entries, testMeta()))
	hits, err = s.Search(ctx, []float32{0, 1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "orders", hits[0].Item.Table)

	require.NoError(t, s.Save(ctx, nil, testMeta()))
	hits, err = s.Search(ctx, []float32{0, 1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, s.Delete(ctx))
	_, err = s.Search(ctx, []float32{1, 0, 0}, 2)
	assert.True(t, errors.Is(err, ErrIndexNotFound), "got %v", err)
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "idx", "goask.index"), filepath.Join(dir, "idx", "goask.data.json"))
	defer s.Close()
	exerciseStore(t, s)
}

func TestFileStoreSharedAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "goask.index")
	dataPath := filepath.Join(dir, "goask.data.json")
	ctx := context.Background()

	writer := NewFileStore(indexPath, dataPath)
	require.NoError(t, writer.Save(ctx, testEntries(), testMeta()))

	reader := NewFileStore(indexPath, dataPath)
	hits, err := reader.Search(ctx, []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "weather", hits[0].Item.Table)
	assert.Equal(t, types.KindCSV, hits[0].Item.Kind)
}

func TestFileStoreCorruptData(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "goask.index")
	dataPath := filepath.Join(dir, "goask.data.json")
	ctx := context.Background()

	s := NewFileStore(indexPath, dataPath)
	require.NoError(t, s.Save(ctx, testEntries(), testMeta()))
	require.NoError(t, os.WriteFile(indexPath, []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(dataPath, []byte(`{"meta":{},"items":[]}`), 0o644))

	// A fresh reader must not trust the in-memory state of another instance.
	_, err := NewFileStore(indexPath, dataPath).Search(ctx, []float32{1, 0, 0}, 1)
	assert.True(t, errors.Is(err, ErrCorruptIndex), "got %v", err)

	require.NoError(t, os.WriteFile(dataPath, []byte("{not json"), 0o644))
	_, err = NewFileStore(indexPath, dataPath).Meta(ctx)
	assert.True(t, errors.Is(err, ErrCorruptIndex), "got %v", err)
}

func TestSaveRejectsWrongDimensions(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "i"), filepath.Join(t.TempDir(), "d"))
	meta := testMeta()
	meta.Dimensions = 4
	err := s.Save(context.Background(), testEntries(), meta)
	assert.True(t, errors.Is(err, ErrDimensionMismatch), "got %v", err)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestRegisterFunctionsReportsOnce(t *testing.T) {
	require.NoError(t, registerFunctions())
	require.NoError(t, registerFunctions())

	a, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	defer a.Close()

	var score float64
	require.NoError(t, a.db.QueryRow("SELECT vec_cosine(?, ?)",
		EncodeEmbedding([]float32{1, 0}), EncodeEmbedding([]float32{1, 0})).Scan(&score))
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestSQLiteStoreInMemory(t *testing.T) {
	s, err := OpenSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, testEntries(), testMeta()))
	hits, err := s.Search(ctx, []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
	assert.Equal(t, "orders", hits[0].Item.Table)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(config.IndexConfig{Backend: "file", Path: filepath.Join(dir, "a"), DataPath: filepath.Join(dir, "b")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(config.IndexConfig{Backend: "sqlite", Path: filepath.Join(dir, "c.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(config.IndexConfig{Backend: "faiss"})
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	items := testItems()
	a := Fingerprint(items, "hash", "m")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Fingerprint(testItems(), "hash", "m"))

	assert.NotEqual(t, a, Fingerprint(items, "hash", "other"))
	assert.NotEqual(t, a, Fingerprint(items, "gemini", "m"))
	assert.NotEqual(t, a, Fingerprint(items[:2], "hash", "m"))

	changed := testItems()
	changed[0].SampleData = [][]any{{int64(2), "11.00"}}
	assert.NotEqual(t, a, Fingerprint(changed, "hash", "m"))
}
