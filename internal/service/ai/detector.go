package ai

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"sync"

	"videocounter/internal/config"
	"videocounter/internal/logger"

	"gocv.io/x/gocv"
)

// Detection is a single object found by the local network.
type Detection struct {
	Label      string
	Confidence float64
	X          int
	Y          int
	Width      int
	Height     int
}

// defaultLabels covers the COCO ids the stock SSD MobileNet graph emits most often.
var defaultLabels = map[int]string{
	1:  "person",
	2:  "bicycle",
	3:  "car",
	44: "bottle",
	46: "wine glass",
	47: "cup",
	51: "bowl",
	62: "chair",
	84: "book",
}

// DetectorService runs a local DNN (SSD-style output) with gocv.
type DetectorService struct {
	mu         sync.Mutex
	net        gocv.Net
	ready      bool
	labels     map[int]string
	threshold  float64
	modelPath  string
	configPath string
	logger     *logger.Logger
}

// NewDetectorService creates a detector with model/config paths and a logger.
// It attempts to initialize the underlying DNN network; Ready reports the outcome.
func NewDetectorService(cfg *config.Config, logger *logger.Logger) *DetectorService {
	service := &DetectorService{
		labels:     defaultLabels,
		threshold:  cfg.DetectionThreshold,
		modelPath:  cfg.ModelPath,
		configPath: cfg.ConfigPath,
		logger:     logger,
	}

	if cfg.LabelsPath != "" {
		labels, err := loadLabels(cfg.LabelsPath)
		if err != nil {
			logger.Warning("Could not load labels from %s, using defaults: %v", cfg.LabelsPath, err)
		} else {
			service.labels = labels
		}
	}

	if err := service.initializeNet(); err != nil {
		service.logger.Warning("Could not initialize detection network: %v", err)
	}

	return service
}

// initializeNet loads the DNN network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.ready = true
	s.logger.Info("Detection network initialized from %s", s.modelPath)
	return nil
}

// Ready reports whether the network loaded.
func (s *DetectorService) Ready() error {
	if !s.ready {
		return fmt.Errorf("%w: detection network not initialized (MODEL_PATH=%s)", ErrNotConfigured, s.modelPath)
	}
	return nil
}

// Classify detects objects and returns their labels plus the annotated frame.
func (s *DetectorService) Classify(ctx context.Context, imageBytes []byte) (*Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	detections, err := s.DetectObjects(imageBytes)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(detections))
	for _, d := range detections {
		labels = append(labels, d.Label)
	}

	result := &Classification{Labels: Normalize(labels)}
	if len(detections) > 0 {
		annotated, err := s.DrawRectangle(detections, imageBytes)
		if err != nil {
			s.logger.Error("Failed to draw rectangles: %v", err)
		} else {
			result.Annotated = annotated
		}
	}
	return result, nil
}

// DetectObjects runs the DNN on the image and returns detections above the confidence threshold.
// gocv.Net is not safe for concurrent use, so calls are serialized.
func (s *DetectorService) DetectObjects(imageBytes []byte) ([]Detection, error) {
	if err := s.Ready(); err != nil {
		return nil, err
	}

	mat, err := gocv.IMDecode(imageBytes, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	s.mu.Lock()
	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	s.mu.Unlock()
	defer output.Close()

	// rows of [batch_id, class_id, confidence, x1, y1, x2, y2]
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	var results []Detection
	for i := 0; i < rows.Rows(); i++ {
		confidence := rows.GetFloatAt(i, 2)
		if float64(confidence) < s.threshold {
			continue
		}

		classID := int(rows.GetFloatAt(i, 1))
		x := int(rows.GetFloatAt(i, 3) * float32(mat.Cols()))
		y := int(rows.GetFloatAt(i, 4) * float32(mat.Rows()))
		width := int(rows.GetFloatAt(i, 5)*float32(mat.Cols())) - x
		height := int(rows.GetFloatAt(i, 6)*float32(mat.Rows())) - y

		results = append(results, Detection{
			Label:      s.classLabel(classID),
			Confidence: float64(confidence),
			X:          x,
			Y:          y,
			Width:      width,
			Height:     height,
		})
	}

	return results, nil
}

// DrawRectangle draws detection results on the image and returns a re-encoded JPEG buffer.
func (s *DetectorService) DrawRectangle(detections []Detection, img []byte) ([]byte, error) {
	green := color.RGBA{R: 0, G: 200, B: 0, A: 0}

	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}
	defer mat.Close()

	for _, detection := range detections {
		rect := image.Rect(detection.X, detection.Y, detection.X+detection.Width, detection.Y+detection.Height)
		if err := gocv.Rectangle(&mat, rect, green, 2); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %v", err)
		}

		label := fmt.Sprintf("%s (%.2f)", detection.Label, detection.Confidence)
		pt := image.Pt(detection.X, detection.Y-5)
		if err := gocv.PutText(&mat, label, pt, gocv.FontHersheySimplex, 0.5, green, 1); err != nil {
			return nil, fmt.Errorf("failed to draw text: %v", err)
		}
	}

	buf, err := gocv.IMEncode(".jpg", mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %v", err)
	}
	defer buf.Close()

	finalImage := make([]byte, len(buf.GetBytes()))
	copy(finalImage, buf.GetBytes())
	return finalImage, nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		s.ready = false
		return s.net.Close()
	}
	return nil
}

func (s *DetectorService) classLabel(classID int) string {
	if label, ok := s.labels[classID]; ok {
		return label
	}
	return fmt.Sprintf("unknown%d", classID)
}

// loadLabels reads one label per line; line N (1-based) is class id N.
// Blank lines keep their id unassigned.
func loadLabels(path string) (map[int]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	labels := make(map[int]string)
	scanner := bufio.NewScanner(f)
	for id := 1; scanner.Scan(); id++ {
		if label := strings.TrimSpace(scanner.Text()); label != "" {
			labels[id] = label
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("no labels in %s", path)
	}
	return labels, nil
}
