package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"videocounter/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileIsNotFound(t *testing.T) {
	repo := NewCountRepository(filepath.Join(t.TempDir(), "object_counts.json"))

	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "object_counts.json")
	repo := NewCountRepository(path)

	require.NoError(t, repo.Save(context.Background(), map[string]int{"bucket": 2, "shoe": 0}))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"bucket": 2, "shoe": 0}, got)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp file renamed into place")
}

func TestLoad_Malformed(t *testing.T) {
	tests := map[string]string{
		"truncated":    `{"bucket": 2`,
		"null":         `null`,
		"wrong type":   `{"bucket": "two"}`,
		"not a object": `[1,2,3]`,
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "object_counts.json")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			_, err := NewCountRepository(path).Load(context.Background())
			require.Error(t, err)
			assert.NotErrorIs(t, err, repository.ErrNotFound)
		})
	}
}
