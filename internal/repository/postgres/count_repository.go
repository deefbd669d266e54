// Package postgres stores the count document in a PostgreSQL table so several
// service instances can share one set of counts.
package postgres

import (
	"context"
	"fmt"

	"videocounter/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS object_counts (
	class      TEXT PRIMARY KEY,
	count      INTEGER NOT NULL DEFAULT 0 CHECK (count >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type CountRepository struct {
	pool *pgxpool.Pool
}

func NewCountRepository(pool *pgxpool.Pool) *CountRepository {
	return &CountRepository{pool: pool}
}

// Connect opens a pool for databaseURL and makes sure the table exists.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create object_counts table: %w", err)
	}
	return pool, nil
}

func (r *CountRepository) Load(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT class, count FROM object_counts`)
	if err != nil {
		return nil, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var class string
		var count int
		if err := rows.Scan(&class, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[class] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read counts: %w", err)
	}

	if len(counts) == 0 {
		return nil, repository.ErrNotFound
	}
	return counts, nil
}

func (r *CountRepository) Save(ctx context.Context, counts map[string]int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	classes := make([]string, 0, len(counts))
	for class, count := range counts {
		classes = append(classes, class)
		_, err := tx.Exec(ctx, `
			INSERT INTO object_counts (class, count, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (class) DO UPDATE SET count = EXCLUDED.count, updated_at = now()`,
			class, count)
		if err != nil {
			return fmt.Errorf("upsert count for %s: %w", class, err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM object_counts WHERE NOT (class = ANY($1))`, classes); err != nil {
		return fmt.Errorf("prune counts: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit counts: %w", err)
	}
	return nil
}
