// Package counts owns the durable per-class departure counts shared by every
// analysis run in the process.
package counts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"videocounter/internal/logger"
	"videocounter/internal/model"
	"videocounter/internal/repository"
	"videocounter/internal/service/metrics"
)

// DefaultClasses is the recognized set used when none is configured.
var DefaultClasses = []string{"bucket", "floor", "shoe", "hand", "bottle"}

const persistTimeout = 10 * time.Second

// Store is the process-wide CountStore. Every mutation and its write to the
// backend happen under one mutex, so a count is never reported before the
// write has either succeeded or failed and been logged.
type Store struct {
	mu         sync.Mutex
	counts     map[string]int
	classes    []string
	recognized map[string]struct{}
	repo       repository.CountRepository
	logger     *logger.Logger
}

// NewStore builds a store for classes and loads the persisted document from
// repo. A missing or malformed document falls back to zero counts.
func NewStore(ctx context.Context, classes []string, repo repository.CountRepository, logger *logger.Logger) *Store {
	if len(classes) == 0 {
		classes = DefaultClasses
	}

	s := &Store{
		counts:     make(map[string]int),
		recognized: make(map[string]struct{}),
		repo:       repo,
		logger:     logger,
	}
	for _, c := range classes {
		c = model.NormalizeLabel(c)
		if c == "" {
			continue
		}
		if _, dup := s.recognized[c]; dup {
			continue
		}
		s.recognized[c] = struct{}{}
		s.classes = append(s.classes, c)
		s.counts[c] = 0
	}
	sort.Strings(s.classes)

	s.load(ctx)
	s.publishLocked()
	return s
}

func (s *Store) load(ctx context.Context) {
	doc, err := s.repo.Load(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.logger.Info("No persisted counts found, starting from zero")
		return
	case err != nil:
		s.logger.Warning("Failed to load persisted counts, starting from zero: %v", err)
		return
	}

	if err := validate(doc); err != nil {
		s.logger.Warning("Persisted counts are malformed, starting from zero: %v", err)
		return
	}

	for class, count := range doc {
		class = model.NormalizeLabel(class)
		if _, ok := s.recognized[class]; !ok {
			s.logger.Warning("Ignoring persisted count for unrecognized class %q", class)
			continue
		}
		s.counts[class] = count
	}
	s.logger.Info("Loaded persisted counts: %v", s.counts)
}

func validate(doc map[string]int) error {
	for class, count := range doc {
		if count < 0 {
			return fmt.Errorf("negative count %d for %q", count, class)
		}
	}
	return nil
}

// Classes returns the recognized classes in sorted order.
func (s *Store) Classes() []string {
	out := make([]string, len(s.classes))
	copy(out, s.classes)
	return out
}

// IsRecognized reports whether class is eligible for counting.
func (s *Store) IsRecognized(class string) bool {
	_, ok := s.recognized[model.NormalizeLabel(class)]
	return ok
}

// Snapshot returns a copy of the current counts.
func (s *Store) Snapshot() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Increment adds one to each recognized class in classes, persists once, and
// returns the resulting snapshot. Unrecognized classes are ignored.
func (s *Store) Increment(classes ...string) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, class := range classes {
		class = model.NormalizeLabel(class)
		if _, ok := s.recognized[class]; !ok {
			continue
		}
		s.counts[class]++
		changed = true
		metrics.DeparturesTotal.WithLabelValues(class).Inc()
	}

	if changed {
		s.persistLocked()
		s.publishLocked()
	}
	return s.snapshotLocked()
}

// Reset zeroes every count and persists the zeroed document.
func (s *Store) Reset() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	for class := range s.counts {
		s.counts[class] = 0
	}
	s.persistLocked()
	s.publishLocked()
	s.logger.Info("Object counts reset")
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() map[string]int {
	out := make(map[string]int, len(s.counts))
	for class, count := range s.counts {
		out[class] = count
	}
	return out
}

// persistLocked writes the full document. Failures are logged and the
// in-memory counts stay authoritative until the next successful write.
func (s *Store) persistLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.repo.Save(ctx, s.snapshotLocked()); err != nil {
		metrics.PersistFailuresTotal.Inc()
		s.logger.Error("Error saving counts: %v", err)
	}
}

func (s *Store) publishLocked() {
	for class, count := range s.counts {
		metrics.ObjectCount.WithLabelValues(class).Set(float64(count))
	}
}
