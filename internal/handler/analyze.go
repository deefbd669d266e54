package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"videocounter/internal/config"
	"videocounter/internal/dto"
	"videocounter/internal/logger"
	"videocounter/internal/service"
)

// Analyzer runs a video analysis.
type Analyzer interface {
	CheckReady() error
	Analyze(ctx context.Context, req service.AnalyzeRequest) (*dto.AnalyzeResult, error)
}

// AnalyzeVideoHandler accepts a multipart upload in the "video" field and
// returns the processed video URLs and the updated counts.
func AnalyzeVideoHandler(analyzer Analyzer, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	maxBytes := int64(cfg.MaxUploadMB) << 20

	return func(w http.ResponseWriter, r *http.Request) {
		if err := analyzer.CheckReady(); err != nil {
			logger.Error("Analysis requested but classifier is not ready: %v", err)
			writeError(w, http.StatusInternalServerError, err.Error(), "")
			return
		}

		if maxBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}

		file, header, err := r.FormFile("video")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "Video exceeds upload limit", fmt.Sprintf("%d MB", cfg.MaxUploadMB))
				return
			}
			writeError(w, http.StatusBadRequest, "No video uploaded", "")
			return
		}
		defer file.Close()

		path, err := saveUpload(file, cfg.UploadDirectory, header.Filename)
		if err != nil {
			logger.Error("Failed to store upload %s: %v", header.Filename, err)
			writeError(w, http.StatusInternalServerError, "Failed to store upload", err.Error())
			return
		}

		req := service.AnalyzeRequest{
			VideoPath:    path,
			OriginalName: header.Filename,
			Segment:      parseFlag(r.FormValue("segment")),
		}

		result, err := analyzer.Analyze(r.Context(), req)
		if err != nil {
			os.Remove(path)
			writeError(w, http.StatusInternalServerError, "Processing error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func saveUpload(src io.Reader, dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	dst, err := os.CreateTemp(dir, "upload-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

// parseFlag accepts the values a form checkbox or query string may carry.
func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "on", "1":
		return true
	}
	return false
}
