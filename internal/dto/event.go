package dto

// Event types pushed to /api/view subscribers.
const (
	EventCounts   = "counts"
	EventProgress = "progress"
)

// Event is a live update broadcast over the websocket.
type Event struct {
	Type   string         `json:"type"`
	RunID  string         `json:"runId,omitempty"`
	Counts map[string]int `json:"counts,omitempty"`
	Frame  int            `json:"frame,omitempty"`
	Total  int            `json:"total,omitempty"`
}
