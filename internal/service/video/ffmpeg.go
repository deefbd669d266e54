package video

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"videocounter/internal/config"
	"videocounter/internal/logger"
)

const (
	framePattern   = "frame-%04d.jpg"
	segmentPattern = "segment-%03d.mp4"
)

// Tool wraps the ffmpeg and ffprobe binaries.
type Tool struct {
	ffmpeg  string
	ffprobe string
	fps     int
	logger  *logger.Logger
}

// NewTool creates a video tool sampling at cfg.SampleFPS.
func NewTool(cfg *config.Config, logger *logger.Logger) *Tool {
	fps := cfg.SampleFPS
	if fps <= 0 {
		fps = 5
	}
	return &Tool{
		ffmpeg:  cfg.FFmpegPath,
		ffprobe: cfg.FFprobePath,
		fps:     fps,
		logger:  logger,
	}
}

// FPS is the sampling rate used for extraction and reassembly.
func (t *Tool) FPS() int {
	return t.fps
}

// ExtractFrames samples videoPath into dir and returns the frame paths in order.
func (t *Tool) ExtractFrames(ctx context.Context, videoPath, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create frames directory: %w", err)
	}
	if err := t.run(ctx, t.ffmpeg, extractArgs(videoPath, dir, t.fps)); err != nil {
		return nil, fmt.Errorf("extract frames: %w", err)
	}
	return ListFrames(dir)
}

// Segment splits videoPath into pieces of the given length and returns them in order.
func (t *Tool) Segment(ctx context.Context, videoPath, dir string, seconds int) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create segments directory: %w", err)
	}
	if err := t.run(ctx, t.ffmpeg, segmentArgs(videoPath, dir, seconds)); err != nil {
		return nil, fmt.Errorf("segment video: %w", err)
	}

	segments, err := filepath.Glob(filepath.Join(dir, "segment-*.mp4"))
	if err != nil {
		return nil, err
	}
	sort.Strings(segments)
	if len(segments) == 0 {
		return nil, fmt.Errorf("segment video: no segments produced")
	}
	return segments, nil
}

// Assemble encodes the numbered frames in framesDir into an H.264 video at out.
func (t *Tool) Assemble(ctx context.Context, framesDir, out string) error {
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := t.run(ctx, t.ffmpeg, assembleArgs(framesDir, out, t.fps)); err != nil {
		return fmt.Errorf("assemble video: %w", err)
	}
	return nil
}

// Duration returns the container duration in seconds as reported by ffprobe.
func (t *Tool) Duration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, t.ffprobe, durationArgs(videoPath)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, lastLine(stderr.String()))
	}
	return parseDuration(stdout.String())
}

// ListFrames returns the *.jpg files of dir in lexical order.
func ListFrames(dir string) ([]string, error) {
	frames, err := filepath.Glob(filepath.Join(dir, "*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(frames)
	return frames, nil
}

func (t *Tool) run(ctx context.Context, bin string, args []string) error {
	t.logger.Debug("exec %s %s", bin, strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", filepath.Base(bin), err, lastLine(stderr.String()))
	}
	return nil
}

func extractArgs(videoPath, dir string, fps int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", videoPath,
		"-vf", "fps=" + strconv.Itoa(fps),
		filepath.Join(dir, framePattern),
	}
}

func segmentArgs(videoPath, dir string, seconds int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", videoPath,
		"-c", "copy", "-map", "0",
		"-f", "segment",
		"-segment_time", strconv.Itoa(seconds),
		"-reset_timestamps", "1",
		filepath.Join(dir, segmentPattern),
	}
}

func assembleArgs(framesDir, out string, fps int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-framerate", strconv.Itoa(fps),
		"-i", filepath.Join(framesDir, framePattern),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		out,
	}
}

func durationArgs(videoPath string) []string {
	return []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	}
}

func parseDuration(out string) (float64, error) {
	s := strings.TrimSpace(out)
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	return d, nil
}

// lastLine keeps error messages short; ffmpeg puts the cause on its final line.
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
