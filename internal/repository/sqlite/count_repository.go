package sqlite

import (
	"context"
	"fmt"

	"videocounter/internal/repository"
)

// CountRepository implements repository.CountRepository for SQLite.
type CountRepository struct {
	db *DB
}

// NewCountRepository creates a new SQLite count repository.
func NewCountRepository(db *DB) *CountRepository {
	return &CountRepository{db: db}
}

// Load returns every stored class count. An empty table means nothing was persisted yet.
func (r *CountRepository) Load(ctx context.Context) (map[string]int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `SELECT class, count FROM object_counts`)
	if err != nil {
		return nil, fmt.Errorf("failed to query counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var class string
		var count int
		if err := rows.Scan(&class, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[class] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read counts: %w", err)
	}

	if len(counts) == 0 {
		return nil, repository.ErrNotFound
	}
	return counts, nil
}

// Save replaces the stored document in a single transaction.
func (r *CountRepository) Save(ctx context.Context, counts map[string]int) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM object_counts`); err != nil {
		return fmt.Errorf("failed to clear counts: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO object_counts (class, count, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for class, count := range counts {
		if _, err := stmt.ExecContext(ctx, class, count); err != nil {
			return fmt.Errorf("failed to insert count for %s: %w", class, err)
		}
	}

	return tx.Commit()
}
