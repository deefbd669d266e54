package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"videocounter/internal/app"
	"videocounter/internal/config"
	"videocounter/internal/counts"
	"videocounter/internal/logger"
	"videocounter/internal/repository"
	"videocounter/internal/repository/jsonfile"
	"videocounter/internal/repository/sqlite"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: counts <command> [flags]

Commands:
  show                  print the persisted counts
  reset                 zero every tracked class
  import -json <file>   copy a JSON count document into the configured backend
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var db *sqlite.DB
	if cfg.CountBackend == config.BackendSQLite {
		db, err = sqlite.New(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
	}

	repo, closeRepo, err := app.OpenCountRepository(ctx, cfg, db)
	if err != nil {
		log.Fatalf("Failed to open count backend: %v", err)
	}
	defer closeRepo()

	switch os.Args[1] {
	case "show":
		store := counts.NewStore(ctx, cfg.TrackedClasses, repo, logger.NewNop())
		printCounts(cfg.CountBackend, store)

	case "reset":
		store := counts.NewStore(ctx, cfg.TrackedClasses, repo, logger.NewNop())
		store.Reset()
		fmt.Printf("✅ Counts reset in %s backend\n", cfg.CountBackend)
		printCounts(cfg.CountBackend, store)

	case "import":
		fs := flag.NewFlagSet("import", flag.ExitOnError)
		jsonPath := fs.String("json", cfg.CountsFile, "JSON count document to import")
		fs.Parse(os.Args[2:])

		imported, err := importDocument(ctx, *jsonPath, repo, cfg.TrackedClasses)
		if err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		fmt.Printf("✅ Imported %d classes from %s into %s backend\n", imported, *jsonPath, cfg.CountBackend)

	default:
		usage()
		os.Exit(2)
	}
}

// importDocument loads a JSON count document through a store, so unknown keys
// are dropped and malformed documents are rejected, then saves it to dst.
func importDocument(ctx context.Context, path string, dst repository.CountRepository, classes []string) (int, error) {
	src := jsonfile.NewCountRepository(path)
	doc, err := src.Load(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, fmt.Errorf("%s does not exist", path)
	}
	if err != nil {
		return 0, err
	}
	for class, n := range doc {
		if n < 0 {
			return 0, fmt.Errorf("%s has negative count %d for %q", path, n, class)
		}
	}

	snapshot := counts.NewStore(ctx, classes, src, logger.NewNop()).Snapshot()
	if err := dst.Save(ctx, snapshot); err != nil {
		return 0, fmt.Errorf("save counts: %w", err)
	}
	return len(snapshot), nil
}

func printCounts(backend string, store *counts.Store) {
	snapshot := store.Snapshot()
	fmt.Printf("\n📊 Object counts (%s):\n", backend)
	for _, class := range store.Classes() {
		fmt.Printf("   - %s: %d\n", class, snapshot[class])
	}
}
