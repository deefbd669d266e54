package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"videocounter/internal/config"
	"videocounter/internal/dto"
	"videocounter/internal/logger"
	"videocounter/internal/model"
	"videocounter/internal/repository"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounts struct {
	counts map[string]int
	resets int
}

func (f *fakeCounts) Counts() map[string]int { return f.counts }

func (f *fakeCounts) ResetCounts() map[string]int {
	f.resets++
	for k := range f.counts {
		f.counts[k] = 0
	}
	return f.counts
}

func TestCountsHandlers(t *testing.T) {
	counts := &fakeCounts{counts: map[string]int{"bucket": 3, "shoe": 1}}

	rec := httptest.NewRecorder()
	GetCountsHandler(counts).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/counts", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bucket":3,"shoe":1}`, rec.Body.String())

	rec = httptest.NewRecorder()
	ResetCountsHandler(counts).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/counts/reset", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"bucket":0,"shoe":0}`, rec.Body.String())
	assert.Equal(t, 1, counts.resets)

	rec = httptest.NewRecorder()
	ResetCountsCompatHandler(counts).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reset-counts", nil))
	assert.JSONEq(t, `{"counts":{"bucket":0,"shoe":0}}`, rec.Body.String())
}

// ========================================
// Helper Function Tests
// ========================================

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"1", 0, 1},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
		{"12.5", 5, 5},
	}

	for _, tt := range tests {
		result := atoiDefault(tt.input, tt.def)
		if result != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, result, tt.expected)
		}
	}
}

type fakeRuns struct {
	limit int
	runs  []model.Run
}

func (f *fakeRuns) Runs(ctx context.Context, limit int) ([]model.Run, error) {
	f.limit = limit
	return f.runs, nil
}

func (f *fakeRuns) Run(ctx context.Context, id string) (*model.Run, error) {
	for i := range f.runs {
		if f.runs[i].ID == id {
			return &f.runs[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func TestGetRunsHandler(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	runs := &fakeRuns{runs: []model.Run{{
		ID: "r1", VideoName: "clip.mp4", Frames: 50, Status: model.RunCompleted,
		Departures: map[string]int{"bucket": 2}, StartedAt: started, FinishedAt: &finished,
	}}}

	tests := []struct {
		query string
		limit int
	}{
		{"", defaultRunLimit},
		{"?limit=5", 5},
		{"?limit=abc", defaultRunLimit},
		{"?limit=100000", maxRunLimit},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		GetRunsHandler(runs, logger.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs"+tt.query, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, tt.limit, runs.limit, tt.query)
	}

	rec := httptest.NewRecorder()
	GetRunsHandler(runs, logger.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs", nil))

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0]["id"])
	assert.Equal(t, "completed", got[0]["status"])
	assert.Equal(t, float64(90), got[0]["durationSeconds"])
}

func TestGetRunHandler(t *testing.T) {
	runs := &fakeRuns{runs: []model.Run{{ID: "r1", Status: model.RunFailed, Error: "boom"}}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/runs/{id}", GetRunHandler(runs, logger.NewNop()))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/r1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"boom"`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogsHandlers(t *testing.T) {
	cfg := &config.Config{LogDirectory: t.TempDir(), LogLevel: "info"}
	log, err := logger.NewLogger(cfg)
	require.NoError(t, err)
	defer log.Sync()

	log.Warning("disk almost full")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /logs/{level}", ShowLogsHandler(log))
	mux.HandleFunc("POST /logs/{level}/clear", ClearLogsHandler(log))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/warning", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "disk almost full")

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/trace", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	data, err := os.ReadFile(filepath.Join(cfg.LogDirectory, logger.WarningFile))
	require.NoError(t, err)
	assert.Empty(t, data)
}

type fakeHub struct {
	registered chan *websocket.Conn
}

func (h *fakeHub) Register(conn *websocket.Conn) { h.registered <- conn }

func (h *fakeHub) Unregister(conn *websocket.Conn) { conn.Close() }

func TestViewWebsocketHandler_SendsInitialCounts(t *testing.T) {
	hub := &fakeHub{registered: make(chan *websocket.Conn, 1)}
	counts := &fakeCounts{counts: map[string]int{"bucket": 4}}

	srv := httptest.NewServer(ViewWebsocketHandler(hub, counts, logger.NewNop()))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	var event dto.Event
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, dto.EventCounts, event.Type)
	assert.Equal(t, map[string]int{"bucket": 4}, event.Counts)

	select {
	case <-hub.registered:
	case <-time.After(2 * time.Second):
		t.Fatal("viewer was not registered")
	}
}
