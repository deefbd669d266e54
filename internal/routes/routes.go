package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"videocounter/internal/config"
	"videocounter/internal/handler"
	"videocounter/internal/logger"
	"videocounter/internal/middleware"
	"videocounter/internal/service"
	"videocounter/internal/service/storage"
	"videocounter/internal/service/websocket"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// staticHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func staticHandler(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			path = "/index"
		}

		filePath := filepath.Join(dir, filepath.Clean("/"+path)+".html")
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the API key middleware.
func SetupRoutes(manager *service.Manager, hub *websocket.HubService, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files and processed videos
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))
	mux.Handle("GET "+storage.OutputsPrefix, http.StripPrefix(storage.OutputsPrefix, http.FileServer(http.Dir(cfg.OutputDirectory))))

	// Analysis
	mux.HandleFunc("POST /analyze-video", handler.AnalyzeVideoHandler(manager, cfg, logger))

	// API endpoints
	mux.HandleFunc("GET /api/counts", handler.GetCountsHandler(manager))
	mux.HandleFunc("POST /api/counts/reset", handler.ResetCountsHandler(manager))
	mux.HandleFunc("POST /api/reset-counts", handler.ResetCountsCompatHandler(manager))
	mux.HandleFunc("GET /api/runs", handler.GetRunsHandler(manager, logger))
	mux.HandleFunc("GET /api/runs/{id}", handler.GetRunHandler(manager, logger))
	mux.HandleFunc("GET /api/view", handler.ViewWebsocketHandler(hub, manager, logger))

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(logger))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(logger))

	// Operations
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Automatic HTML handler mapping, for example: / -> <static>/index.html
	mux.HandleFunc("GET /", staticHandler(cfg.StaticDirectory))

	return middleware.AuthMiddleware(cfg.APIKey, mux)
}
