package handler

import (
	"context"
	"errors"
	"net/http"

	"videocounter/internal/dto"
	"videocounter/internal/logger"
	"videocounter/internal/model"
	"videocounter/internal/repository"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// RunService reads analysis history.
type RunService interface {
	Runs(ctx context.Context, limit int) ([]model.Run, error)
	Run(ctx context.Context, id string) (*model.Run, error)
}

// GetRunsHandler lists recent runs, newest first.
func GetRunsHandler(runs RunService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := atoiDefault(r.URL.Query().Get("limit"), defaultRunLimit)
		if limit > maxRunLimit {
			limit = maxRunLimit
		}

		list, err := runs.Runs(r.Context(), limit)
		if err != nil {
			logger.Error("Error querying runs: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error", "")
			return
		}

		out := make([]dto.RunInfo, 0, len(list))
		for i := range list {
			out = append(out, dto.NewRunInfo(&list[i]))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GetRunHandler returns a single run by its id path value.
func GetRunHandler(runs RunService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := runs.Run(r.Context(), r.PathValue("id"))
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Run not found", "")
			return
		}
		if err != nil {
			logger.Error("Error querying run %s: %v", r.PathValue("id"), err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error", "")
			return
		}
		writeJSON(w, http.StatusOK, dto.NewRunInfo(run))
	}
}
