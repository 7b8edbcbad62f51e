package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dbsmedya/goask/internal/config"
	"github.com/dbsmedya/goask/internal/types"
)

var (
	// ErrIndexNotFound is returned by Search and Meta before anything was saved.
	ErrIndexNotFound = errors.New("index not found")
	// ErrDimensionMismatch is returned when a query vector does not match the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Entry is one data item and its normalized embedding.
type Entry struct {
	Item   types.DataItem
	Vector []float32
}

// Hit is one search result.
type Hit struct {
	Item  types.DataItem
	Score float32
}

// Meta describes a saved index.
type Meta struct {
	Fingerprint string    `json:"fingerprint"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Dimensions  int       `json:"dimensions"`
	Count       int       `json:"count"`
	BuiltAt     time.Time `json:"built_at"`
}

// Store persists entries and searches them.
type Store interface {
	// Save replaces the whole index.
	Save(ctx context.Context, entries []Entry, meta Meta) error
	// Search returns the k best hits for a normalized query vector.
	Search(ctx context.Context, vec []float32, k int) ([]Hit, error)
	Meta(ctx context.Context) (Meta, error)
	Delete(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg.Backend.
func Open(cfg config.IndexConfig) (Store, error) {
	switch cfg.Backend {
	case "file", "":
		return NewFileStore(cfg.Path, cfg.DataPath), nil
	case "sqlite":
		return OpenSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Backend)
	}
}

func validateEntries(entries []Entry, meta Meta) error {
	for i, e := range entries {
		if len(e.Vector) != meta.Dimensions {
			return fmt.Errorf("%w: entry %d (%s) has %d dims, index has %d",
				ErrDimensionMismatch, i, e.Item.ID(), len(e.Vector), meta.Dimensions)
		}
	}
	return nil
}
