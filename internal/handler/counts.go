package handler

import (
	"net/http"
)

// CountService exposes the shared count store.
type CountService interface {
	Counts() map[string]int
	ResetCounts() map[string]int
}

// GetCountsHandler returns the current counts.
func GetCountsHandler(counts CountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, counts.Counts())
	}
}

// ResetCountsHandler zeroes every count and returns the new snapshot.
func ResetCountsHandler(counts CountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, counts.ResetCounts())
	}
}

// ResetCountsCompatHandler serves the older /api/reset-counts shape, {"counts": {...}}.
func ResetCountsCompatHandler(counts CountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]map[string]int{"counts": counts.ResetCounts()})
	}
}
