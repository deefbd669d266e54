package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"videocounter/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live database only when TEST_DATABASE_URL is set.
func TestCountRepository_Postgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := Connect(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, `DELETE FROM object_counts`)
	require.NoError(t, err)

	repo := NewCountRepository(pool)

	_, err = repo.Load(ctx)
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	require.NoError(t, repo.Save(ctx, map[string]int{"bucket": 1, "ladder": 4}))
	require.NoError(t, repo.Save(ctx, map[string]int{"bucket": 2, "shoe": 0}))

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"bucket": 2, "shoe": 0}, got)

	assert.Error(t, repo.Save(ctx, map[string]int{"bucket": -1}), "CHECK constraint")
}
