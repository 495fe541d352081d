package mwixnet

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerModuleTagsOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithHandler(slog.NewJSONHandler(&buf, nil))

	logger.Module("engine").Info("swap accepted")

	require.Contains(t, buf.String(), `"module":"engine"`)
	require.Contains(t, buf.String(), "swap accepted")
}

func TestSetAndGetDefaultLogger(t *testing.T) {
	original := DefaultLogger()
	defer SetDefaultLogger(original)

	var buf bytes.Buffer
	l := NewLoggerWithHandler(slog.NewJSONHandler(&buf, nil))
	SetDefaultLogger(l)

	require.Same(t, l, DefaultLogger())
}
