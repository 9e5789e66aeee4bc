package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("info", "auto", zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("target found", zap.String("target", "otter"))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "non-terminal writers get JSON")
	assert.Equal(t, "target found", entry["msg"])
	assert.Equal(t, "otter", entry["target"])
	assert.Equal(t, "info", entry["level"])
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("debug", "console", zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Debug("buffer full, restarting", zap.Int("capacity", 30))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, "buffer full, restarting")
	assert.Contains(t, out, `"capacity": 30`)
}

func TestNewRejectsBadSettings(t *testing.T) {
	var buf bytes.Buffer
	_, err := New("loud", "json", zapcore.AddSync(&buf))
	assert.Error(t, err)

	_, err = New("info", "xml", zapcore.AddSync(&buf))
	assert.Error(t, err)
}
