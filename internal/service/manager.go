package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"videocounter/internal/config"
	"videocounter/internal/dto"
	"videocounter/internal/logger"
	"videocounter/internal/model"
	"videocounter/internal/repository"
	"videocounter/internal/service/ai"
	"videocounter/internal/service/metrics"
	"videocounter/internal/tracker"

	"github.com/google/uuid"
)

// VideoTool splits, samples and reassembles videos.
type VideoTool interface {
	ExtractFrames(ctx context.Context, videoPath, dir string) ([]string, error)
	Segment(ctx context.Context, videoPath, dir string, seconds int) ([]string, error)
	Assemble(ctx context.Context, framesDir, out string) error
}

// Publisher makes a processed video reachable and returns its URL.
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// Broadcaster pushes live events to viewers.
type Broadcaster interface {
	Broadcast(event dto.Event)
}

// AnalyzeRequest describes one uploaded video.
type AnalyzeRequest struct {
	VideoPath    string
	OriginalName string
	Segment      bool
}

type frameResult struct {
	labels []string
	failed bool
}

// Manager runs video analyses against the shared count store.
type Manager struct {
	classifier  ai.Classifier
	video       VideoTool
	publisher   Publisher
	broadcaster Broadcaster
	store       tracker.CountStore
	runs        repository.RunRepository
	logger      *logger.Logger

	numWorkers     int
	threshold      int
	segmentSeconds int
	outputDir      string
	scratchDir     string

	activeMu sync.Mutex
	active   map[string]*tracker.Tracker
}

// NewManager wires the analysis pipeline.
func NewManager(cfg *config.Config, classifier ai.Classifier, video VideoTool, publisher Publisher, broadcaster Broadcaster, store tracker.CountStore, runs repository.RunRepository, logger *logger.Logger) *Manager {
	workers := cfg.ProcessingWorkers
	if workers <= 0 {
		workers = 1
	}
	segmentSeconds := cfg.SegmentSeconds
	if segmentSeconds <= 0 {
		segmentSeconds = 10
	}

	return &Manager{
		classifier:     classifier,
		video:          video,
		publisher:      publisher,
		broadcaster:    broadcaster,
		store:          store,
		runs:           runs,
		logger:         logger,
		numWorkers:     workers,
		threshold:      cfg.AbsenceThreshold(),
		segmentSeconds: segmentSeconds,
		outputDir:      cfg.OutputDirectory,
		scratchDir:     cfg.UploadDirectory,
		active:         make(map[string]*tracker.Tracker),
	}
}

// CheckReady returns ai.ErrNotConfigured when the classifier cannot run.
func (m *Manager) CheckReady() error {
	if r, ok := m.classifier.(ai.Readiness); ok {
		return r.Ready()
	}
	return nil
}

// Counts returns the current count snapshot.
func (m *Manager) Counts() map[string]int {
	return m.store.Snapshot()
}

// ResetCounts zeroes the store and clears presence on every run in progress,
// so objects already in view are not counted against the new baseline.
func (m *Manager) ResetCounts() map[string]int {
	counts := m.store.Reset()

	m.activeMu.Lock()
	for _, tr := range m.active {
		tr.ClearPresence()
	}
	m.activeMu.Unlock()

	m.logger.Info("Counts reset")
	m.broadcaster.Broadcast(dto.Event{Type: dto.EventCounts, Counts: counts})
	return counts
}

// Runs returns the most recent runs, newest first.
func (m *Manager) Runs(ctx context.Context, limit int) ([]model.Run, error) {
	return m.runs.GetRecent(ctx, limit)
}

// Run returns one run by id.
func (m *Manager) Run(ctx context.Context, id string) (*model.Run, error) {
	return m.runs.GetByID(ctx, id)
}

// ActiveRuns returns the ids of runs in progress.
func (m *Manager) ActiveRuns() []string {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()

	ids := make([]string, 0, len(m.active))
	for id := range m.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Analyze samples the video, drives a fresh tracker over every frame in order,
// finalizes it once and publishes the annotated output. The uploaded file is
// removed when the run ends. A failed run is recorded and not finalized.
func (m *Manager) Analyze(ctx context.Context, req AnalyzeRequest) (*dto.AnalyzeResult, error) {
	if err := m.CheckReady(); err != nil {
		return nil, err
	}
	defer m.removeUpload(req.VideoPath)

	run := &model.Run{
		ID:         uuid.NewString(),
		VideoName:  req.OriginalName,
		Segmented:  req.Segment,
		Departures: map[string]int{},
		Status:     model.RunProcessing,
		StartedAt:  time.Now().UTC(),
	}
	if err := m.runs.Insert(ctx, run); err != nil {
		m.logger.Error("Failed to record run %s: %v", run.ID, err)
	}

	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	tr := tracker.New(m.threshold, m.store, m.logger)
	m.track(run.ID, tr)
	defer m.untrack(run.ID)

	m.logger.Info("Run %s started for %s (segmented=%t)", run.ID, req.OriginalName, req.Segment)
	start := time.Now()

	urls, err := m.process(ctx, run, tr, req)
	if err != nil {
		m.finishRun(run, model.RunFailed, err)
		m.logger.Error("Run %s failed: %v", run.ID, err)
		return nil, err
	}

	counts := tr.Finalize()
	run.Departures = tr.Departures()
	m.finishRun(run, model.RunCompleted, nil)
	metrics.RunDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())

	m.broadcaster.Broadcast(dto.Event{Type: dto.EventCounts, RunID: run.ID, Counts: counts})
	m.logger.Info("Run %s completed: %d frames, %d failed classifications, departures %v",
		run.ID, run.Frames, run.FailedFrames, run.Departures)

	return &dto.AnalyzeResult{
		RunID:      run.ID,
		VideoURLs:  urls,
		Counts:     counts,
		Departures: run.Departures,
	}, nil
}

func (m *Manager) process(ctx context.Context, run *model.Run, tr *tracker.Tracker, req AnalyzeRequest) ([]string, error) {
	if err := os.MkdirAll(m.scratchDir, 0755); err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	scratch, err := os.MkdirTemp(m.scratchDir, "run-"+run.ID+"-")
	if err != nil {
		return nil, fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	segments := []string{req.VideoPath}
	if req.Segment {
		stageStart := time.Now()
		segments, err = m.video.Segment(ctx, req.VideoPath, filepath.Join(scratch, "segments"), m.segmentSeconds)
		if err != nil {
			return nil, err
		}
		metrics.RunDuration.WithLabelValues("segment").Observe(time.Since(stageStart).Seconds())
		m.logger.Info("Run %s split into %d segments", run.ID, len(segments))
	}
	run.Segments = len(segments)

	outDir := filepath.Join(m.outputDir, run.ID)
	urls := make([]string, 0, len(segments))
	frameIndex := 0

	for i, segment := range segments {
		out := filepath.Join(outDir, "processed.mp4")
		if req.Segment {
			out = filepath.Join(outDir, fmt.Sprintf("segment-%03d.mp4", i))
		}

		processed, err := m.processSegment(ctx, run, tr, segment, filepath.Join(scratch, fmt.Sprintf("%03d", i)), out, frameIndex)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		if processed == 0 {
			m.logger.Warning("Run %s: segment %d produced no frames", run.ID, i)
			continue
		}
		frameIndex += processed

		url, err := m.publisher.Publish(ctx, out)
		if err != nil {
			return nil, fmt.Errorf("publish segment %d: %w", i, err)
		}
		urls = append(urls, url)
	}

	if frameIndex == 0 {
		return nil, errors.New("no frames could be extracted from the video")
	}
	return urls, nil
}

// processSegment feeds one segment's frames to the tracker starting at offset
// and assembles the annotated frames into out. It returns the number of frames.
func (m *Manager) processSegment(ctx context.Context, run *model.Run, tr *tracker.Tracker, videoPath, workDir, out string, offset int) (int, error) {
	stageStart := time.Now()
	frames, err := m.video.ExtractFrames(ctx, videoPath, filepath.Join(workDir, "frames"))
	if err != nil {
		return 0, err
	}
	metrics.RunDuration.WithLabelValues("extract").Observe(time.Since(stageStart).Seconds())
	if len(frames) == 0 {
		return 0, nil
	}

	processedDir := filepath.Join(workDir, "processed")
	if err := os.MkdirAll(processedDir, 0755); err != nil {
		return 0, fmt.Errorf("create processed directory: %w", err)
	}

	stageStart = time.Now()
	results := m.classifyFrames(ctx, frames, processedDir)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	metrics.RunDuration.WithLabelValues("classify").Observe(time.Since(stageStart).Seconds())

	total := offset + len(frames)
	last := tr.Counts()
	for i, result := range results {
		if result.failed {
			run.FailedFrames++
		}
		counts := tr.ProcessFrame(offset+i, result.labels)
		run.Frames++
		metrics.FramesProcessedTotal.Inc()

		m.broadcaster.Broadcast(dto.Event{Type: dto.EventProgress, RunID: run.ID, Frame: offset + i + 1, Total: total})
		if !maps.Equal(counts, last) {
			m.broadcaster.Broadcast(dto.Event{Type: dto.EventCounts, RunID: run.ID, Counts: counts})
			last = counts
		}
	}

	stageStart = time.Now()
	if err := m.video.Assemble(ctx, processedDir, out); err != nil {
		return 0, err
	}
	metrics.RunDuration.WithLabelValues("assemble").Observe(time.Since(stageStart).Seconds())

	return len(frames), nil
}

// classifyFrames classifies every frame on a worker pool. Results are stored by
// position so the caller can feed the tracker in order. Each processed frame is
// written to processedDir under its original name.
func (m *Manager) classifyFrames(ctx context.Context, frames []string, processedDir string) []frameResult {
	results := make([]frameResult, len(frames))
	queue := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < m.numWorkers && w < len(frames); w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for i := range queue {
				results[i] = m.classifyFrame(ctx, frames[i], processedDir, workerID)
			}
		}(w)
	}

	for i := range frames {
		if ctx.Err() != nil {
			break
		}
		queue <- i
	}
	close(queue)
	wg.Wait()

	return results
}

func (m *Manager) classifyFrame(ctx context.Context, framePath, processedDir string, workerID int) frameResult {
	image, err := os.ReadFile(framePath)
	if err != nil {
		m.logger.Error("Worker %d: failed to read frame %s: %v", workerID, framePath, err)
		metrics.ClassifierFailuresTotal.Inc()
		return frameResult{failed: true}
	}

	output := image
	result := frameResult{}

	classification, err := m.classifier.Classify(ctx, image)
	if err != nil {
		m.logger.Warning("Worker %d: classification failed for %s: %v", workerID, filepath.Base(framePath), err)
		metrics.ClassifierFailuresTotal.Inc()
		result.failed = true
	} else {
		result.labels = classification.Labels
		if len(classification.Annotated) > 0 {
			output = classification.Annotated
		}
	}

	if err := os.WriteFile(filepath.Join(processedDir, filepath.Base(framePath)), output, 0644); err != nil {
		m.logger.Error("Worker %d: failed to write processed frame %s: %v", workerID, filepath.Base(framePath), err)
	}
	return result
}

func (m *Manager) finishRun(run *model.Run, status model.RunStatus, err error) {
	run.Finish(status, err)
	metrics.RunsTotal.WithLabelValues(string(status)).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.runs.Update(ctx, run); err != nil {
		m.logger.Error("Failed to update run %s: %v", run.ID, err)
	}
}

func (m *Manager) removeUpload(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warning("Failed to remove upload %s: %v", path, err)
	}
}

func (m *Manager) track(id string, tr *tracker.Tracker) {
	m.activeMu.Lock()
	m.active[id] = tr
	m.activeMu.Unlock()
}

func (m *Manager) untrack(id string) {
	m.activeMu.Lock()
	delete(m.active, id)
	m.activeMu.Unlock()
}
