package model

import "time"

// RunStatus is the lifecycle state of one video analysis.
type RunStatus string

const (
	RunProcessing RunStatus = "processing"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// Run represents one analysis of an uploaded video.
type Run struct {
	ID           string         `json:"id"`
	VideoName    string         `json:"video_name"`
	Segmented    bool           `json:"segmented"`
	Segments     int            `json:"segments"`
	Frames       int            `json:"frames"`
	FailedFrames int            `json:"failed_frames"`
	Departures   map[string]int `json:"departures"`
	Status       RunStatus      `json:"status"`
	Error        string         `json:"error,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
}

// Finish marks the run as done with the given status.
func (r *Run) Finish(status RunStatus, err error) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.Status = status
	if err != nil {
		r.Error = err.Error()
	}
}
