// Package jsonfile stores the count document as a single JSON file.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"videocounter/internal/repository"
)

// CountRepository implements repository.CountRepository on top of one JSON file.
type CountRepository struct {
	path string
}

// NewCountRepository creates a repository writing to path.
func NewCountRepository(path string) *CountRepository {
	return &CountRepository{path: path}
}

// Path returns the location of the document.
func (r *CountRepository) Path() string {
	return r.path
}

// Load reads and decodes the document.
func (r *CountRepository) Load(ctx context.Context) (map[string]int, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read counts file: %w", err)
	}

	var counts map[string]int
	if err := json.Unmarshal(data, &counts); err != nil {
		return nil, fmt.Errorf("decode counts file: %w", err)
	}
	if counts == nil {
		return nil, fmt.Errorf("decode counts file: document is null")
	}
	return counts, nil
}

// Save writes the document to a temp file in the same directory and renames it
// into place, so a crash mid-write leaves the previous document intact.
func (r *CountRepository) Save(ctx context.Context, counts map[string]int) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create counts directory: %w", err)
	}

	data, err := json.MarshalIndent(counts, "", "  ")
	if err != nil {
		return fmt.Errorf("encode counts: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp counts file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp counts file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp counts file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp counts file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace counts file: %w", err)
	}
	return nil
}
