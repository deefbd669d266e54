package dto

import (
	"encoding/json"
	"time"

	"videocounter/internal/model"
)

// RunInfo is one entry of the run history listing.
type RunInfo struct {
	ID           string         `json:"id"`
	VideoName    string         `json:"videoName"`
	Segmented    bool           `json:"segmented"`
	Segments     int            `json:"segments"`
	Frames       int            `json:"frames"`
	FailedFrames int            `json:"failedFrames"`
	Departures   map[string]int `json:"departures"`
	Status       string         `json:"status"`
	Error        string         `json:"error,omitempty"`
	StartedAt    time.Time      `json:"startedAt"`
	FinishedAt   *time.Time     `json:"finishedAt,omitempty"`
}

// NewRunInfo converts a stored run.
func NewRunInfo(r *model.Run) RunInfo {
	departures := r.Departures
	if departures == nil {
		departures = map[string]int{}
	}
	return RunInfo{
		ID:           r.ID,
		VideoName:    r.VideoName,
		Segmented:    r.Segmented,
		Segments:     r.Segments,
		Frames:       r.Frames,
		FailedFrames: r.FailedFrames,
		Departures:   departures,
		Status:       string(r.Status),
		Error:        r.Error,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
}

// MarshalJSON adds the run duration in seconds for finished runs.
func (r RunInfo) MarshalJSON() ([]byte, error) {
	type Alias RunInfo
	out := struct {
		Alias
		DurationSeconds *float64 `json:"durationSeconds,omitempty"`
	}{Alias: Alias(r)}

	if r.FinishedAt != nil {
		d := r.FinishedAt.Sub(r.StartedAt).Seconds()
		out.DurationSeconds = &d
	}
	return json.Marshal(out)
}
