package ai

import (
	"context"
	"errors"

	"videocounter/internal/model"
)

// ErrNotConfigured is returned when a classifier lacks credentials or a model.
var ErrNotConfigured = errors.New("classifier not configured")

// Classification is the outcome of classifying one frame.
type Classification struct {
	Labels    []string // distinct, normalized class labels
	Annotated []byte   // annotated JPEG, nil when the backend produced none
}

// Classifier detects object classes in a single encoded image.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (*Classification, error)
}

// Readiness is implemented by classifiers that can report missing configuration
// before any frame is sent.
type Readiness interface {
	Ready() error
}

// Normalize lower-cases and trims labels and drops empties and duplicates,
// keeping first-seen order.
func Normalize(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = model.NormalizeLabel(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}
