package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"videocounter/internal/config"
	"videocounter/internal/logger"

	"github.com/tidwall/gjson"
)

const maxResponseBytes = 64 << 20

// Locations of the prediction list in the workflow response, most specific first.
var predictionPaths = []string{
	"outputs.0.predictions.predictions",
	"outputs.0.predictions",
	"predictions",
}

const visualizationPath = "outputs.0.visualization.value"

// RoboflowClassifier sends frames to a hosted Roboflow workflow.
type RoboflowClassifier struct {
	client   *http.Client
	endpoint string
	apiKey   string
	logger   *logger.Logger
}

type roboflowRequest struct {
	APIKey string         `json:"api_key"`
	Inputs roboflowInputs `json:"inputs"`
}

type roboflowInputs struct {
	Image roboflowImage `json:"image"`
}

type roboflowImage struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// NewRoboflowClassifier creates a classifier for the configured workspace and workflow.
func NewRoboflowClassifier(cfg *config.Config, logger *logger.Logger) *RoboflowClassifier {
	endpoint := fmt.Sprintf("%s/%s/workflows/%s",
		strings.TrimRight(cfg.RoboflowAPIURL, "/"), cfg.RoboflowWorkspace, cfg.RoboflowWorkflow)

	return &RoboflowClassifier{
		client:   &http.Client{Timeout: time.Duration(cfg.RoboflowTimeoutSeconds) * time.Second},
		endpoint: endpoint,
		apiKey:   cfg.RoboflowAPIKey,
		logger:   logger,
	}
}

// Ready reports ErrNotConfigured when no API key is set.
func (c *RoboflowClassifier) Ready() error {
	if c.apiKey == "" {
		return fmt.Errorf("%w: missing ROBOFLOW_API_KEY environment variable", ErrNotConfigured)
	}
	return nil
}

// Classify posts the image as base64 and parses the workflow output.
func (c *RoboflowClassifier) Classify(ctx context.Context, image []byte) (*Classification, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(roboflowRequest{
		APIKey: c.apiKey,
		Inputs: roboflowInputs{Image: roboflowImage{
			Type:  "base64",
			Value: base64.StdEncoding.EncodeToString(image),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call roboflow: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read roboflow response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("roboflow returned %d: %s", resp.StatusCode, truncate(string(payload), 300))
	}

	return ParseWorkflowResponse(payload)
}

// ParseWorkflowResponse extracts class labels and the optional visualization
// from a workflow response. Predictions without a string "class" are skipped.
func ParseWorkflowResponse(payload []byte) (*Classification, error) {
	if !gjson.ValidBytes(payload) {
		return nil, errors.New("roboflow response is not valid JSON")
	}
	root := gjson.ParseBytes(payload)

	var labels []string
	for _, path := range predictionPaths {
		predictions := root.Get(path)
		if !predictions.IsArray() {
			continue
		}
		predictions.ForEach(func(_, p gjson.Result) bool {
			if class := p.Get("class"); class.Type == gjson.String {
				labels = append(labels, class.String())
			}
			return true
		})
		break
	}

	result := &Classification{Labels: Normalize(labels)}

	if vis := root.Get(visualizationPath); vis.Type == gjson.String {
		if decoded, err := base64.StdEncoding.DecodeString(vis.String()); err == nil && len(decoded) > 0 {
			result.Annotated = decoded
		}
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
