package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Levels(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(buf, "logfmt", "warn", false)

	level.Info(logger).Log("msg", "hidden")
	level.Warn(logger).Log("msg", "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "level=warn")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestNewLogger_VerboseEnablesDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(buf, "logfmt", "error", true)

	level.Debug(logger).Log("msg", "sql")
	assert.Contains(t, buf.String(), "level=debug")
}

func TestNewLogger_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(buf, "json", "info", false)

	level.Info(logger).Log("msg", "listening", "addr", ":8080")

	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &line))
	assert.Equal(t, "listening", line["msg"])
	assert.Equal(t, ":8080", line["addr"])
	assert.Equal(t, "info", line["level"])
	assert.Contains(t, line, "ts")
}
