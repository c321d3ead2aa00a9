package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "info", FormatConsole)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("hello", zap.String("k", "v"))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, `{"k": "v"}`)
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, "WARN", FormatJSON)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("careful")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "careful", line["msg"])
}

func TestInvalid(t *testing.T) {
	_, err := New("loud", FormatConsole)
	assert.Error(t, err)
	_, err = New("info", "xml")
	assert.Error(t, err)
}
