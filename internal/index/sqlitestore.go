package index

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"modernc.org/sqlite"

	"github.com/dbsmedya/goask/internal/database"
	"github.com/dbsmedya/goask/internal/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS docs (
	id        TEXT PRIMARY KEY,
	position  INTEGER NOT NULL,
	content   TEXT NOT NULL,
	meta      TEXT NOT NULL,
	embedding BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS index_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

const metaKey = "meta"

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions makes vec_cosine available to connections opened later.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction("vec_cosine", 2, vecCosine)
	})
	return registerErr
}

func vecCosine(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_cosine: expected 2 arguments, got %d", len(args))
	}
	a, ok := args[0].([]byte)
	b, ok2 := args[1].([]byte)
	if !ok || !ok2 {
		return nil, nil
	}
	va, err := DecodeEmbedding(a)
	if err != nil {
		return nil, err
	}
	vb, err := DecodeEmbedding(b)
	if err != nil {
		return nil, err
	}
	return cosine(va, vb)
}

// SQLiteStore keeps entries in a SQLite database and scores them with the
// vec_cosine SQL function.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (and creates) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("failed to register vec_cosine: %w", err)
	}

	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save replaces every row in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, entries []Entry, meta Meta) error {
	if err := validateEntries(entries, meta); err != nil {
		return err
	}
	meta.Count = len(entries)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode index meta: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin index transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM docs"); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO docs (id, position, content, meta, embedding) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare index insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		itemJSON, err := json.Marshal(e.Item)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", e.Item.ID(), err)
		}
		if _, err := stmt.ExecContext(ctx, e.Item.ID(), i, e.Item.Text(), string(itemJSON), EncodeEmbedding(e.Vector)); err != nil {
			return fmt.Errorf("failed to insert %s: %w", e.Item.ID(), err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO index_meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		metaKey, string(metaJSON)); err != nil {
		return fmt.Errorf("failed to store index meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index: %w", err)
	}
	return nil
}

// Search scores every row in SQL and returns the k best.
func (s *SQLiteStore) Search(ctx context.Context, vec []float32, k int) ([]Hit, error) {
	meta, err := s.Meta(ctx)
	if err != nil {
		return nil, err
	}
	if meta.Count == 0 {
		return nil, nil
	}
	if len(vec) != meta.Dimensions {
		return nil, fmt.Errorf("%w: query dim %d != index dim %d", ErrDimensionMismatch, len(vec), meta.Dimensions)
	}
	if k <= 0 {
		k = meta.Count
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT meta, vec_cosine(embedding, ?) AS score FROM docs ORDER BY score DESC, position ASC LIMIT ?",
		EncodeEmbedding(vec), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			itemJSON string
			score    sql.NullFloat64
		)
		if err := rows.Scan(&itemJSON, &score); err != nil {
			return nil, fmt.Errorf("failed to scan index row: %w", err)
		}
		var item types.DataItem
		if err := json.Unmarshal([]byte(itemJSON), &item); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
		}
		hits = append(hits, Hit{Item: item, Score: float32(score.Float64)})
	}
	return hits, rows.Err()
}

// Meta returns the stored metadata, or ErrIndexNotFound before the first Save.
func (s *SQLiteStore) Meta(ctx context.Context) (Meta, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM index_meta WHERE key = ?", metaKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Meta{}, ErrIndexNotFound
	}
	if err != nil {
		return Meta{}, fmt.Errorf("failed to read index meta: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return Meta{}, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	return meta, nil
}

// Delete removes every row, leaving an empty database behind.
func (s *SQLiteStore) Delete(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM docs; DELETE FROM index_meta;"); err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
