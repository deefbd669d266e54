// Package tracker turns a per-frame stream of detected class labels into
// departure events. A class departs once it has gone unseen for more than
// the absence threshold, or when the run is finalized while it is still present.
package tracker

import (
	"sort"
	"sync"

	"videocounter/internal/logger"
	"videocounter/internal/model"
	"videocounter/internal/service/metrics"
)

// DefaultAbsenceThreshold is two seconds of absence at five sampled frames per second.
const DefaultAbsenceThreshold = 10

// CountStore is the durable count state a Tracker reports departures to.
type CountStore interface {
	IsRecognized(class string) bool
	Increment(classes ...string) map[string]int
	Reset() map[string]int
	Snapshot() map[string]int
}

// Tracker holds the presence state of one run. Frames must be fed in strictly
// increasing index order; gaps between indices count as elapsed time.
type Tracker struct {
	mu         sync.Mutex
	threshold  int
	store      CountStore
	lastSeen   map[string]int
	lastFrame  int
	started    bool
	departures map[string]int
	logger     *logger.Logger
}

// New creates a tracker. A non-positive threshold selects DefaultAbsenceThreshold.
func New(threshold int, store CountStore, logger *logger.Logger) *Tracker {
	if threshold <= 0 {
		threshold = DefaultAbsenceThreshold
	}
	return &Tracker{
		threshold:  threshold,
		store:      store,
		lastSeen:   make(map[string]int),
		departures: make(map[string]int),
		logger:     logger,
	}
}

// Threshold returns the absence threshold in frame-index units.
func (t *Tracker) Threshold() int {
	return t.threshold
}

// ProcessFrame records the classes detected at frameIndex, fires departures for
// classes unseen for more than the threshold and returns a snapshot of the counts.
// A frameIndex that does not increase is logged and ignored.
func (t *Tracker) ProcessFrame(frameIndex int, detected []string) map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started && frameIndex <= t.lastFrame {
		metrics.RejectedFramesTotal.Inc()
		t.logger.Warning("Ignoring frame %d: index must be greater than %d", frameIndex, t.lastFrame)
		return t.store.Snapshot()
	}
	t.started = true
	t.lastFrame = frameIndex

	for _, label := range detected {
		class := model.NormalizeLabel(label)
		if class == "" {
			continue
		}
		t.lastSeen[class] = frameIndex
	}

	var departed []string
	for class, seen := range t.lastSeen {
		if frameIndex-seen > t.threshold {
			departed = append(departed, class)
			delete(t.lastSeen, class)
		}
	}

	return t.departLocked(departed, frameIndex)
}

// Finalize ends the run: every class still present departs without a
// threshold check and the presence state is cleared.
func (t *Tracker) Finalize() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	open := make([]string, 0, len(t.lastSeen))
	for class := range t.lastSeen {
		open = append(open, class)
	}
	t.lastSeen = make(map[string]int)

	snapshot := t.departLocked(open, t.lastFrame)
	t.started = false
	return snapshot
}

// Reset zeroes the shared counts and clears this tracker's presence state.
func (t *Tracker) Reset() map[string]int {
	t.ClearPresence()
	return t.store.Reset()
}

// ClearPresence drops every open class without counting it.
func (t *Tracker) ClearPresence() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSeen = make(map[string]int)
}

// Counts returns the current count snapshot.
func (t *Tracker) Counts() map[string]int {
	return t.store.Snapshot()
}

// Present returns the classes currently considered in view, sorted.
func (t *Tracker) Present() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.lastSeen))
	for class := range t.lastSeen {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}

// Departures returns how many departures this tracker has counted per class.
func (t *Tracker) Departures() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]int, len(t.departures))
	for class, n := range t.departures {
		out[class] = n
	}
	return out
}

func (t *Tracker) departLocked(classes []string, frameIndex int) map[string]int {
	if len(classes) == 0 {
		return t.store.Snapshot()
	}
	sort.Strings(classes)

	counted := make([]string, 0, len(classes))
	for _, class := range classes {
		if !t.store.IsRecognized(class) {
			t.logger.Debug("Unrecognized class '%s' left frame at %d, not counted", class, frameIndex)
			continue
		}
		counted = append(counted, class)
		t.departures[class]++
		t.logger.Info("Object '%s' left frame at %d", class, frameIndex)
	}

	if len(counted) == 0 {
		return t.store.Snapshot()
	}
	return t.store.Increment(counted...)
}
