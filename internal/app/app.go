package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"videocounter/internal/config"
	"videocounter/internal/counts"
	"videocounter/internal/logger"
	"videocounter/internal/repository/sqlite"
	"videocounter/internal/routes"
	"videocounter/internal/service"
	"videocounter/internal/service/ai"
	"videocounter/internal/service/storage"
	"videocounter/internal/service/video"
	"videocounter/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config      *config.Config
	logger      *logger.Logger
	db          *sqlite.DB
	closeCounts func()
	detector    *ai.DetectorService
	hubService  *websocket.HubService
	manager     *service.Manager
}

func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log}
	if err := a.init(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init() error {
	cfg := a.config
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open run database: %w", err)
	}
	a.db = db

	repo, closeCounts, err := OpenCountRepository(ctx, cfg, db)
	if err != nil {
		return err
	}
	a.closeCounts = closeCounts
	store := counts.NewStore(ctx, cfg.TrackedClasses, repo, a.logger)

	var classifier ai.Classifier
	switch cfg.Detector {
	case config.DetectorLocal:
		a.detector = ai.NewDetectorService(cfg, a.logger)
		classifier = a.detector
	default:
		classifier = ai.NewRoboflowClassifier(cfg, a.logger)
	}
	if r, ok := classifier.(ai.Readiness); ok {
		if err := r.Ready(); err != nil {
			a.logger.Warning("Classifier not ready, /analyze-video will fail until configured: %v", err)
		}
	}

	var publisher service.Publisher = storage.NewLocalPublisher(cfg.OutputDirectory)
	if cfg.ObjectStorageEnabled() {
		minio, err := storage.NewMinIOPublisher(cfg, a.logger)
		if err != nil {
			return err
		}
		if err := minio.EnsureBucket(ctx); err != nil {
			return err
		}
		publisher = minio
	}

	a.hubService = websocket.NewHubService(a.logger)
	a.manager = service.NewManager(cfg, classifier, video.NewTool(cfg, a.logger), publisher, a.hubService, store, sqlite.NewRunRepository(db), a.logger)
	return nil
}

// Run serves HTTP until SIGINT or SIGTERM, then shuts down gracefully.
func (a *App) Run() error {
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start background services
	go a.hubService.Run(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           routes.SetupRoutes(a.manager, a.hubService, a.config, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("Video object counter listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Detector: %s, count backend: %s, tracked classes: %v", a.config.Detector, a.config.CountBackend, a.config.TrackedClasses)
	a.logger.Info("Absence threshold: %d frames at %d fps", a.config.AbsenceThreshold(), a.config.SampleFPS)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// Close releases the database, count backend and detector.
func (a *App) Close() {
	if a.detector != nil {
		a.detector.Close()
	}
	if a.closeCounts != nil {
		a.closeCounts()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Error closing database: %v", err)
		}
	}
	a.logger.Sync()
}
