package recipe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps the whole collection as one JSON array in a single file.
// Every mutation rewrites the file.
type FileStore struct {
	mu   sync.RWMutex
	path string
	now  func() time.Time
}

// NewFileStore creates a store backed by path. The file is created on the
// first write; a missing file reads as an empty collection.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create recipe directory: %w", err)
		}
	}
	return &FileStore{path: path, now: time.Now}, nil
}

// load reads the collection (caller must hold a lock).
func (s *FileStore) load() ([]*SavedRecipe, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*SavedRecipe{}, nil
		}
		return nil, fmt.Errorf("failed to read recipes: %w", err)
	}
	if len(data) == 0 {
		return []*SavedRecipe{}, nil
	}

	var all []*SavedRecipe
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to decode recipes: %w", err)
	}
	if all == nil {
		all = []*SavedRecipe{}
	}
	for _, r := range all {
		r.Normalize()
	}
	return all, nil
}

// store writes the collection atomically (caller must hold the write lock).
func (s *FileStore) store(all []*SavedRecipe) error {
	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("failed to encode recipes: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".recipes-*.json")
	if err != nil {
		return fmt.Errorf("failed to write recipes: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write recipes: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write recipes: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write recipes: %w", err)
	}
	return nil
}

// Save appends a new recipe.
func (s *FileStore) Save(ctx context.Context, r Recipe) (*SavedRecipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	saved, err := newSaved(r, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store(append(all, saved)); err != nil {
		return nil, err
	}
	return saved, nil
}

// List returns all recipes in save order.
func (s *FileStore) List(ctx context.Context) ([]*SavedRecipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load()
}

// Get returns the first recipe with the given id.
func (s *FileStore) Get(ctx context.Context, id string) (*SavedRecipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, r := range all {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

// Replace overwrites the recipe body of id, keeping its id and save time.
func (s *FileStore) Replace(ctx context.Context, id string, r Recipe) (*SavedRecipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	for i, existing := range all {
		if existing.ID != id {
			continue
		}
		r.Normalize()
		all[i] = &SavedRecipe{Recipe: r, ID: existing.ID, SavedAt: existing.SavedAt}
		if err := s.store(all); err != nil {
			return nil, err
		}
		return all[i], nil
	}
	return nil, ErrNotFound
}

// Delete removes every recipe with the given id.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	kept := all[:0]
	for _, r := range all {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(all) {
		return ErrNotFound
	}
	return s.store(kept)
}

// Search scans all recipes for query.
func (s *FileStore) Search(ctx context.Context, query string) ([]*SavedRecipe, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return filter(all, query), nil
}

// Export serializes the whole collection as an indented JSON array.
func (s *FileStore) Export(ctx context.Context) ([]byte, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return exportJSON(all)
}

// Import appends every recipe in blob and returns how many were added.
func (s *FileStore) Import(ctx context.Context, blob []byte) (int, error) {
	entries, err := decodeImport(blob, s.now())
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return 0, err
	}
	if err := s.store(append(all, entries...)); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Clear removes the backing file.
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear recipes: %w", err)
	}
	return nil
}
