package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "json format", config: &Config{Level: LevelInfo, Format: "json", Output: &bytes.Buffer{}}},
		{name: "text format", config: &Config{Level: LevelDebug, Format: "text", Output: &bytes.Buffer{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			require.NotNil(t, logger)
		})
	}
}

func TestLoggerWithLayerAndPort(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Format: "text", Output: &buf, NoColor: true})

	layerLogger := logger.WithLayer("frame")
	layerLogger.Info("byte received")
	require.Contains(t, buf.String(), "layer=frame")

	buf.Reset()
	portLogger := layerLogger.WithPort(3)
	portLogger.Info("envelope sent")
	output := buf.String()
	require.Contains(t, output, "layer=frame")
	require.Contains(t, output, "port=3")
}

func TestLoggerWithProtocol(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Format: "text", Output: &buf, NoColor: true})

	logger.WithProtocol(0x7F).Debug("dispatched")
	require.Contains(t, buf.String(), "protocol=0x7f")
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Format: "text", Output: &buf, NoColor: true})

	errLogger := logger.WithError(errors.New("decode failed"))
	errLogger.Error("frame rejected")
	require.Contains(t, buf.String(), "decode failed")
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Format: "text", Output: &buf, NoColor: true}))

	Debug("debug message", "key", "value")
	require.True(t, strings.Contains(buf.String(), "debug message"))
	require.True(t, strings.Contains(buf.String(), "key=value"))

	buf.Reset()
	Info("info message")
	require.Contains(t, buf.String(), "info message")

	buf.Reset()
	Warn("warning message")
	require.Contains(t, buf.String(), "warning message")

	buf.Reset()
	Error("error message")
	require.Contains(t, buf.String(), "error message")
}
