// Package cache persists generated answers keyed by the exact query text.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dbsmedya/goask/internal/database"
	"github.com/dbsmedya/goask/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS rag_results (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	query      TEXT NOT NULL UNIQUE,
	answer     TEXT NOT NULL,
	sources    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);`

// Entry is one cached answer.
type Entry struct {
	Query     string            `json:"query"`
	Answer    string            `json:"answer"`
	Sources   []types.SourceRef `json:"sources"`
	CreatedAt time.Time         `json:"created_at"`
}

// Cache is a SQLite-backed answer cache. It is safe for concurrent use.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens (and creates) the cache database at path. Entries older than
// ttl are treated as missing; zero keeps them forever.
func Open(path string, ttl time.Duration) (*Cache, error) {
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}
	return &Cache{db: db, ttl: ttl, now: time.Now}, nil
}

// Get returns the cached entry for query. The boolean is false on a miss.
func (c *Cache) Get(ctx context.Context, query string) (Entry, bool, error) {
	var (
		e       Entry
		sources string
		created int64
	)
	err := c.db.QueryRowContext(ctx,
		"SELECT query, answer, sources, created_at FROM rag_results WHERE query = ?", query,
	).Scan(&e.Query, &e.Answer, &sources, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read cache: %w", err)
	}

	e.CreatedAt = time.UnixMilli(created).UTC()
	if c.expired(e.CreatedAt) {
		return Entry{}, false, nil
	}
	if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
		return Entry{}, false, fmt.Errorf("failed to decode cached sources for %q: %w", query, err)
	}
	return e, true, nil
}

// Put stores the answer for query, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, query, answer string, sources []types.SourceRef) error {
	if sources == nil {
		sources = []types.SourceRef{}
	}
	raw, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO rag_results (query, answer, sources, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(query) DO UPDATE SET
			answer = excluded.answer,
			sources = excluded.sources,
			created_at = excluded.created_at`,
		query, answer, string(raw), c.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
// Expired entries are included so they can be inspected and deleted.
func (c *Cache) List(ctx context.Context, limit int) ([]Entry, error) {
	q := "SELECT query, answer, sources, created_at FROM rag_results ORDER BY created_at DESC, id DESC"
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			sources string
			created int64
		)
		if err := rows.Scan(&e.Query, &e.Answer, &sources, &created); err != nil {
			return nil, fmt.Errorf("failed to scan cache row: %w", err)
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
			return nil, fmt.Errorf("failed to decode cached sources for %q: %w", e.Query, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes the entry for query and reports whether it existed.
func (c *Cache) Delete(ctx context.Context, query string) (bool, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM rag_results WHERE query = ?", query)
	if err != nil {
		return false, fmt.Errorf("failed to delete cache entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear removes every entry and returns how many were removed.
func (c *Cache) Clear(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM rag_results")
	if err != nil {
		return 0, fmt.Errorf("failed to clear cache: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored entries, expired ones included.
func (c *Cache) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rag_results").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) expired(created time.Time) bool {
	return c.ttl > 0 && c.now().Sub(created) > c.ttl
}
