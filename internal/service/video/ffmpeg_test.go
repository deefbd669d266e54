package video

import (
	"os"
	"path/filepath"
	"testing"

	"videocounter/internal/config"
	"videocounter/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractArgs(t *testing.T) {
	args := extractArgs("in.mp4", "frames", 5)

	assert.Contains(t, args, "fps=5")
	assert.Equal(t, filepath.Join("frames", "frame-%04d.jpg"), args[len(args)-1])
}

func TestSegmentArgs(t *testing.T) {
	args := segmentArgs("in.mp4", "segs", 10)

	assert.Subset(t, args, []string{"-f", "segment", "-segment_time", "10", "-reset_timestamps", "1"})
	assert.Equal(t, filepath.Join("segs", "segment-%03d.mp4"), args[len(args)-1])
}

func TestAssembleArgs(t *testing.T) {
	args := assembleArgs("frames", "out.mp4", 5)

	assert.Subset(t, args, []string{"-framerate", "5", "libx264", "yuv420p"})
	assert.Equal(t, "out.mp4", args[len(args)-1])
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("12.480000\n")
	require.NoError(t, err)
	assert.InDelta(t, 12.48, d, 0.0001)

	_, err = parseDuration("N/A")
	assert.Error(t, err)
}

func TestListFrames_Sorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame-0010.jpg", "frame-0002.jpg", "frame-0001.jpg", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	frames, err := ListFrames(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "frame-0001.jpg"),
		filepath.Join(dir, "frame-0002.jpg"),
		filepath.Join(dir, "frame-0010.jpg"),
	}, frames)
}

func TestNewTool_DefaultFPS(t *testing.T) {
	tool := NewTool(&config.Config{}, logger.NewNop())
	assert.Equal(t, 5, tool.FPS())
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "No such file", lastLine("banner\nNo such file\n"))
	assert.Equal(t, "single", lastLine("single"))
}
