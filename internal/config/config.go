package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Count store backends.
const (
	BackendJSON     = "json"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Frame classifiers.
const (
	DetectorRoboflow = "roboflow"
	DetectorLocal    = "local"
)

type Config struct {
	Port   int    `env:"PORT" envDefault:"3000"`
	APIKey string `env:"API_KEY"`

	UploadDirectory string `env:"UPLOAD_DIR" envDefault:"uploads"`
	OutputDirectory string `env:"OUTPUT_DIR" envDefault:"outputs"`
	StaticDirectory string `env:"STATIC_DIR" envDefault:"public"`
	DatabasePath    string `env:"DB_PATH" envDefault:"data/runs.db"`
	LogDirectory    string `env:"LOG_DIR" envDefault:"logs"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`

	SampleFPS      int      `env:"SAMPLE_FPS" envDefault:"5"`      // frames sampled per second of video
	AbsenceSeconds int      `env:"ABSENCE_SECONDS" envDefault:"2"` // absence before a class counts as departed
	TrackedClasses []string `env:"TRACKED_CLASSES" envDefault:"bucket,floor,shoe,hand,bottle" envSeparator:","`

	CountBackend string `env:"COUNT_BACKEND" envDefault:"json"`
	CountsFile   string `env:"COUNTS_FILE" envDefault:"data/object_counts.json"`
	DatabaseURL  string `env:"DATABASE_URL"`

	Detector               string `env:"DETECTOR" envDefault:"roboflow"`
	RoboflowAPIURL         string `env:"ROBOFLOW_API_URL" envDefault:"https://serverless.roboflow.com"`
	RoboflowAPIKey         string `env:"ROBOFLOW_API_KEY"`
	RoboflowWorkspace      string `env:"ROBOFLOW_WORKSPACE" envDefault:"doorknobyolo"`
	RoboflowWorkflow       string `env:"ROBOFLOW_WORKFLOW" envDefault:"find-hands-floors-shoes-buckets-and-bottles"`
	RoboflowTimeoutSeconds int    `env:"ROBOFLOW_TIMEOUT_SECONDS" envDefault:"30"`

	ModelPath          string  `env:"MODEL_PATH" envDefault:"models/frozen_inference_graph.pb"`
	ConfigPath         string  `env:"CONFIG_PATH" envDefault:"models/ssd_mobilenet_v1_coco_2017_11_17.pbtxt"`
	LabelsPath         string  `env:"LABELS_PATH"`
	DetectionThreshold float64 `env:"DETECTION_THRESHOLD" envDefault:"0.5"`

	ProcessingWorkers int    `env:"PROCESSING_WORKERS" envDefault:"3"`
	SegmentSeconds    int    `env:"SEGMENT_SECONDS" envDefault:"10"`
	MaxUploadMB       int64  `env:"MAX_UPLOAD_MB" envDefault:"512"`
	FFmpegPath        string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobePath       string `env:"FFPROBE_PATH" envDefault:"ffprobe"`

	MinIOEndpoint       string `env:"MINIO_ENDPOINT"`
	MinIOAccessKey      string `env:"MINIO_ACCESS_KEY"`
	MinIOSecretKey      string `env:"MINIO_SECRET_KEY"`
	MinIOUseSSL         bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	MinIOBucket         string `env:"MINIO_BUCKET" envDefault:"processed-videos"`
	MinIOPresignMinutes int    `env:"MINIO_PRESIGN_MINUTES" envDefault:"60"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.CountBackend = strings.ToLower(strings.TrimSpace(cfg.CountBackend))
	cfg.Detector = strings.ToLower(strings.TrimSpace(cfg.Detector))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise break the tracker or pipeline.
func (c *Config) Validate() error {
	if c.SampleFPS <= 0 {
		return fmt.Errorf("SAMPLE_FPS must be positive, got %d", c.SampleFPS)
	}
	if c.AbsenceSeconds <= 0 {
		return fmt.Errorf("ABSENCE_SECONDS must be positive, got %d", c.AbsenceSeconds)
	}
	if len(c.TrackedClasses) == 0 {
		return errors.New("TRACKED_CLASSES must name at least one class")
	}
	if c.ProcessingWorkers <= 0 {
		return fmt.Errorf("PROCESSING_WORKERS must be positive, got %d", c.ProcessingWorkers)
	}
	if c.SegmentSeconds <= 0 {
		return fmt.Errorf("SEGMENT_SECONDS must be positive, got %d", c.SegmentSeconds)
	}

	switch c.CountBackend {
	case BackendJSON, BackendSQLite:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres count backend")
		}
	default:
		return fmt.Errorf("unknown COUNT_BACKEND %q", c.CountBackend)
	}

	switch c.Detector {
	case DetectorRoboflow, DetectorLocal:
	default:
		return fmt.Errorf("unknown DETECTOR %q", c.Detector)
	}
	return nil
}

// AbsenceThreshold is the number of frame-index units a class may go unseen
// before it is declared departed.
func (c *Config) AbsenceThreshold() int {
	return c.SampleFPS * c.AbsenceSeconds
}

// ObjectStorageEnabled reports whether processed videos go to MinIO.
func (c *Config) ObjectStorageEnabled() bool {
	return c.MinIOEndpoint != ""
}
