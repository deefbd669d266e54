package app

import (
	"context"
	"fmt"

	"videocounter/internal/config"
	"videocounter/internal/repository"
	"videocounter/internal/repository/jsonfile"
	"videocounter/internal/repository/postgres"
	"videocounter/internal/repository/sqlite"
)

// OpenCountRepository returns the count backend selected by COUNT_BACKEND and
// a function releasing it. db is used by the sqlite backend.
func OpenCountRepository(ctx context.Context, cfg *config.Config, db *sqlite.DB) (repository.CountRepository, func(), error) {
	switch cfg.CountBackend {
	case config.BackendJSON:
		return jsonfile.NewCountRepository(cfg.CountsFile), func() {}, nil

	case config.BackendSQLite:
		if db == nil {
			return nil, nil, fmt.Errorf("sqlite count backend needs an open database")
		}
		return sqlite.NewCountRepository(db), func() {}, nil

	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("COUNT_BACKEND=postgres requires DATABASE_URL")
		}
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewCountRepository(pool), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown COUNT_BACKEND %q", cfg.CountBackend)
}
