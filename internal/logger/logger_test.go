package logger

import (
	"os"
	"path/filepath"
	"testing"

	"videocounter/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLog(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func TestLogger_WritesPerLevelFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l, err := NewLogger(&config.Config{LogDirectory: dir, LogLevel: "debug"})
	require.NoError(t, err)

	l.Debug("debug %d", 0)
	l.Info("object %s left frame", "bucket")
	l.Warning("persist failed: %v", "disk full")
	l.Error("run %s failed", "r1")
	l.Sync()

	info := readLog(t, dir, InfoFile)
	assert.Contains(t, info, "object bucket left frame")
	assert.NotContains(t, info, "persist failed")
	assert.NotContains(t, info, "debug 0")

	assert.Contains(t, readLog(t, dir, WarningFile), "persist failed: disk full")
	assert.Contains(t, readLog(t, dir, ErrorFile), "run r1 failed")
	assert.Equal(t, dir, l.Dir())
}

func TestLogger_CleanLogs(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(&config.Config{LogDirectory: dir, LogLevel: "info"})
	require.NoError(t, err)
	defer l.Sync()

	l.Error("something broke")
	require.NoError(t, l.CleanLogs(ErrorFile))

	assert.Empty(t, readLog(t, dir, ErrorFile))
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Info("ignored")
	assert.NoError(t, l.CleanLogs(InfoFile))
}
