package repository

import (
	"context"
	"errors"

	"videocounter/internal/model"
)

// ErrNotFound is returned when the requested record or document does not exist.
var ErrNotFound = errors.New("not found")

// CountRepository persists the {class: count} document.
type CountRepository interface {
	// Load returns the persisted document, or ErrNotFound when nothing was saved yet.
	Load(ctx context.Context) (map[string]int, error)
	// Save replaces the persisted document.
	Save(ctx context.Context, counts map[string]int) error
}

// RunRepository defines the interface for analysis run history.
type RunRepository interface {
	Insert(ctx context.Context, run *model.Run) error
	Update(ctx context.Context, run *model.Run) error
	GetByID(ctx context.Context, id string) (*model.Run, error)
	GetRecent(ctx context.Context, limit int) ([]model.Run, error)
}
