package tracker_test

import (
	"context"
	"sync"
	"testing"

	"videocounter/internal/counts"
	"videocounter/internal/logger"
	"videocounter/internal/repository"
	"videocounter/internal/tracker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu  sync.Mutex
	doc map[string]int
}

func (m *memRepo) Load(ctx context.Context) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return nil, repository.ErrNotFound
	}
	return m.doc, nil
}

func (m *memRepo) Save(ctx context.Context, doc map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = doc
	return nil
}

func newTracker(t *testing.T, threshold int, classes ...string) (*tracker.Tracker, *counts.Store, *memRepo) {
	t.Helper()
	repo := &memRepo{}
	store := counts.NewStore(context.Background(), classes, repo, logger.NewNop())
	return tracker.New(threshold, store, logger.NewNop()), store, repo
}

func TestProcessFrame_DepartureFiresAfterThreshold(t *testing.T) {
	tr, _, repo := newTracker(t, 10, "bucket")

	assert.Equal(t, map[string]int{"bucket": 0}, tr.ProcessFrame(0, []string{"bucket"}))
	for i := 1; i <= 10; i++ {
		assert.Equal(t, map[string]int{"bucket": 0}, tr.ProcessFrame(i, nil), "frame %d", i)
	}

	assert.Equal(t, map[string]int{"bucket": 1}, tr.ProcessFrame(11, nil))
	assert.Equal(t, map[string]int{"bucket": 1}, repo.doc)

	assert.Equal(t, map[string]int{"bucket": 1}, tr.ProcessFrame(12, nil), "fires exactly once")
	assert.Empty(t, tr.Present())
}

func TestProcessFrame_GapsCountAsElapsedTime(t *testing.T) {
	tr, _, _ := newTracker(t, 10, "bucket")

	assert.Equal(t, map[string]int{"bucket": 0}, tr.ProcessFrame(0, []string{"bucket"}))
	assert.Equal(t, map[string]int{"bucket": 1}, tr.ProcessFrame(11, []string{}))
	assert.Equal(t, map[string]int{"bucket": 1}, tr.ProcessFrame(12, []string{}))
	assert.Equal(t, map[string]int{"bucket": 1}, tr.Finalize(), "nothing left open")
}

func TestProcessFrame_RedetectionResetsAbsenceClock(t *testing.T) {
	tr, _, _ := newTracker(t, 10, "bucket")

	tr.ProcessFrame(0, []string{"bucket"})
	for i := 1; i <= 9; i++ {
		tr.ProcessFrame(i, nil)
	}
	tr.ProcessFrame(10, []string{"bucket"})

	for i := 11; i <= 20; i++ {
		assert.Equal(t, 0, tr.ProcessFrame(i, nil)["bucket"], "frame %d", i)
	}
	assert.Equal(t, 1, tr.ProcessFrame(21, nil)["bucket"])
}

func TestProcessFrame_RefreshedClassNeverDepartsSameCall(t *testing.T) {
	tr, _, _ := newTracker(t, 0, "bucket")
	require.Equal(t, tracker.DefaultAbsenceThreshold, tr.Threshold())

	tr.ProcessFrame(0, []string{"bucket"})
	assert.Equal(t, 0, tr.ProcessFrame(50, []string{"bucket"})["bucket"])
	assert.Equal(t, []string{"bucket"}, tr.Present())
}

func TestProcessFrame_LabelsAreCaseInsensitive(t *testing.T) {
	tr, _, _ := newTracker(t, 2, "bucket")

	tr.ProcessFrame(0, []string{"Bucket"})
	tr.ProcessFrame(1, []string{"BUCKET", "bucket"})
	assert.Equal(t, []string{"bucket"}, tr.Present())

	assert.Equal(t, 1, tr.ProcessFrame(4, nil)["bucket"])
}

func TestProcessFrame_UnrecognizedClassesNeverCounted(t *testing.T) {
	tr, store, _ := newTracker(t, 3, "bucket", "shoe")

	tr.ProcessFrame(0, []string{"person", "ladder", ""})
	assert.Equal(t, []string{"ladder", "person"}, tr.Present(), "tracked for presence")

	assert.Equal(t, map[string]int{"bucket": 0, "shoe": 0}, tr.ProcessFrame(4, nil))
	assert.Empty(t, tr.Present(), "removed once absent")

	tr.ProcessFrame(5, []string{"person"})
	assert.Equal(t, map[string]int{"bucket": 0, "shoe": 0}, tr.Finalize())
	assert.Equal(t, map[string]int{"bucket": 0, "shoe": 0}, store.Snapshot())
	assert.Empty(t, tr.Departures())
}

func TestProcessFrame_NonMonotonicIndexIgnored(t *testing.T) {
	tr, _, _ := newTracker(t, 10, "bucket")

	tr.ProcessFrame(5, []string{"bucket"})
	tr.ProcessFrame(5, []string{"shoe"})
	tr.ProcessFrame(3, []string{"shoe"})
	assert.Equal(t, []string{"bucket"}, tr.Present())

	assert.Equal(t, 1, tr.ProcessFrame(16, nil)["bucket"])
}

func TestProcessFrame_SnapshotIsACopy(t *testing.T) {
	tr, _, _ := newTracker(t, 10, "bucket")

	snap := tr.ProcessFrame(0, []string{"bucket"})
	snap["bucket"] = 99

	assert.Equal(t, map[string]int{"bucket": 0}, tr.Counts())
}

func TestFinalize_FlushesOpenClasses(t *testing.T) {
	tr, _, repo := newTracker(t, 10, "shoe", "bucket")

	tr.ProcessFrame(0, []string{"shoe"})
	tr.ProcessFrame(5, []string{"shoe"})
	got := tr.Finalize()

	assert.Equal(t, map[string]int{"shoe": 1, "bucket": 0}, got)
	assert.Equal(t, got, repo.doc)
	assert.Empty(t, tr.Present())
	assert.Equal(t, map[string]int{"shoe": 1}, tr.Departures())
}

func TestFinalize_ClassSeenOnLastFrameCountsOnce(t *testing.T) {
	tr, _, _ := newTracker(t, 10, "bucket")

	for i := 0; i < 30; i++ {
		tr.ProcessFrame(i, []string{"bucket"})
	}
	assert.Equal(t, 1, tr.Finalize()["bucket"])
	assert.Equal(t, 1, tr.Finalize()["bucket"], "second finalize has nothing to flush")
}

func TestFinalize_AllowsNextRunToRestartIndices(t *testing.T) {
	tr, _, _ := newTracker(t, 10, "bucket")

	tr.ProcessFrame(40, []string{"bucket"})
	tr.Finalize()

	tr.ProcessFrame(0, []string{"bucket"})
	assert.Equal(t, []string{"bucket"}, tr.Present())
	assert.Equal(t, 2, tr.Finalize()["bucket"])
}

func TestReset_ZeroesCountsAndPresence(t *testing.T) {
	tr, _, repo := newTracker(t, 10, "bucket", "shoe")

	tr.ProcessFrame(0, []string{"bucket"})
	tr.ProcessFrame(11, []string{"shoe"})
	require.Equal(t, 1, tr.Counts()["bucket"])

	first := tr.Reset()
	second := tr.Reset()

	assert.Equal(t, map[string]int{"bucket": 0, "shoe": 0}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, first, repo.doc)
	assert.Empty(t, tr.Present())
	assert.Equal(t, first, tr.Finalize(), "presence cleared, nothing to flush")
}

func TestCounts_OnlyReflectsCompletedCalls(t *testing.T) {
	tr, _, _ := newTracker(t, 2, "bucket", "shoe")

	tr.ProcessFrame(0, []string{"bucket", "shoe"})
	tr.ProcessFrame(1, []string{"shoe"})

	before := tr.Counts()
	after := tr.ProcessFrame(3, []string{"shoe"})

	assert.Equal(t, map[string]int{"bucket": 0, "shoe": 0}, before)
	assert.Equal(t, map[string]int{"bucket": 1, "shoe": 0}, after)
	assert.Equal(t, after, tr.Counts())
}

func TestTrackers_ShareOneStore(t *testing.T) {
	repo := &memRepo{}
	store := counts.NewStore(context.Background(), []string{"bucket"}, repo, logger.NewNop())

	var wg sync.WaitGroup
	for run := 0; run < 8; run++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr := tracker.New(10, store, logger.NewNop())
			tr.ProcessFrame(0, []string{"bucket"})
			tr.ProcessFrame(11, nil)
			tr.ProcessFrame(12, []string{"bucket"})
			tr.Finalize()
		}()
	}
	wg.Wait()

	assert.Equal(t, map[string]int{"bucket": 16}, store.Snapshot())
	assert.Equal(t, map[string]int{"bucket": 16}, repo.doc)
}
