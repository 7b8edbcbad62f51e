package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dbsmedya/goask/internal/types"
)

// FileStore keeps the index as two files: a binary Flat index and a JSON
// data file holding the metadata and the items in index order.
//
// Writes go to temporary files that are renamed into place. A reader in
// another process reloads when the data file's modification time changes.
type FileStore struct {
	indexPath string
	dataPath  string

	mu      sync.RWMutex
	flat    *Flat
	items   map[string]types.DataItem
	meta    Meta
	modTime time.Time
}

type dataFile struct {
	Meta  Meta             `json:"meta"`
	Items []types.DataItem `json:"items"`
}

// NewFileStore creates a store over the given index and data file paths.
// Nothing is read until the first Search or Meta call.
func NewFileStore(indexPath, dataPath string) *FileStore {
	return &FileStore{indexPath: indexPath, dataPath: dataPath}
}

// Save replaces both files.
func (s *FileStore) Save(ctx context.Context, entries []Entry, meta Meta) error {
	if err := validateEntries(entries, meta); err != nil {
		return err
	}
	meta.Count = len(entries)

	ids := make([]string, len(entries))
	vecs := make([][]float32, len(entries))
	items := make([]types.DataItem, len(entries))
	byID := make(map[string]types.DataItem, len(entries))
	for i, e := range entries {
		ids[i] = e.Item.ID()
		vecs[i] = e.Vector
		items[i] = e.Item
		byID[ids[i]] = e.Item
	}

	flat := &Flat{}
	if err := flat.Build(ids, vecs); err != nil {
		return err
	}
	indexBytes, err := flat.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	dataBytes, err := json.Marshal(dataFile{Meta: meta, Items: items})
	if err != nil {
		return fmt.Errorf("failed to encode index data: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The data file is written last: its mtime marks a complete index.
	if err := writeFileAtomic(s.indexPath, indexBytes); err != nil {
		return err
	}
	if err := writeFileAtomic(s.dataPath, dataBytes); err != nil {
		return err
	}

	s.flat = flat
	s.items = byID
	s.meta = meta
	if st, err := os.Stat(s.dataPath); err == nil {
		s.modTime = st.ModTime()
	}
	return nil
}

// Search returns the k best hits.
func (s *FileStore) Search(ctx context.Context, vec []float32, k int) ([]Hit, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.flat.Len() == 0 {
		return nil, nil
	}
	ids, scores, err := s.flat.Query(vec, k)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(ids))
	for i, id := range ids {
		item, ok := s.items[id]
		if !ok {
			return nil, fmt.Errorf("%w: id %q missing from data file", ErrCorruptIndex, id)
		}
		hits = append(hits, Hit{Item: item, Score: scores[i]})
	}
	return hits, nil
}

// Meta returns the metadata of the saved index.
func (s *FileStore) Meta(ctx context.Context) (Meta, error) {
	if err := s.ensureLoaded(); err != nil {
		return Meta{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta, nil
}

// Delete removes both files.
func (s *FileStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range []string{s.dataPath, s.indexPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	s.flat, s.items, s.meta, s.modTime = nil, nil, Meta{}, time.Time{}
	return nil
}

// Close releases nothing; the files stay on disk.
func (s *FileStore) Close() error { return nil }

// ensureLoaded (re)reads the files when they are newer than what is in memory.
func (s *FileStore) ensureLoaded() error {
	st, err := os.Stat(s.dataPath)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrIndexNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to stat index data: %w", err)
	}

	s.mu.RLock()
	fresh := s.flat != nil && st.ModTime().Equal(s.modTime)
	s.mu.RUnlock()
	if fresh {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flat != nil && st.ModTime().Equal(s.modTime) {
		return nil
	}

	dataBytes, err := os.ReadFile(s.dataPath)
	if err != nil {
		return fmt.Errorf("failed to read index data: %w", err)
	}
	var data dataFile
	if err := json.Unmarshal(dataBytes, &data); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}

	indexBytes, err := os.ReadFile(s.indexPath)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrIndexNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}
	flat := &Flat{}
	if err := flat.UnmarshalBinary(indexBytes); err != nil {
		return err
	}
	if flat.Len() != len(data.Items) {
		return fmt.Errorf("%w: index has %d vectors, data file has %d items", ErrCorruptIndex, flat.Len(), len(data.Items))
	}

	byID := make(map[string]types.DataItem, len(data.Items))
	for _, item := range data.Items {
		byID[item.ID()] = item
	}

	s.flat = flat
	s.items = byID
	s.meta = data.Meta
	s.modTime = st.ModTime()
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
