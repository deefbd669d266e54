package dto

// AnalyzeResult is the response payload of /analyze-video.
type AnalyzeResult struct {
	RunID      string         `json:"runId"`
	VideoURLs  []string       `json:"videoUrls"`
	Counts     map[string]int `json:"counts"`
	Departures map[string]int `json:"departures"`
}
