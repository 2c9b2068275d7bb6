package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, InfoLevel, ParseLevel("nonsense"))
}

func TestWriterLoggerRespectsLevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, InfoLevel).WithFields(Fields{"component": "test"})

	logger.Debug("hidden")
	logger.Info("shown", Fields{"frames": 12})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] shown")
	assert.Contains(t, out, "component=test")
	assert.Contains(t, out, "frames=12")
}

func TestContextFieldsMerge(t *testing.T) {
	ctx := ContextWithFields(context.Background(), Fields{"request_id": "abc"})
	ctx = ContextWithFields(ctx, Fields{"route": "/analyze"})

	fields, ok := FieldsFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "abc", fields["request_id"])
	assert.Equal(t, "/analyze", fields["route"])

	var buf bytes.Buffer
	NewWriterLogger(&buf, DebugLevel).WithContext(ctx).Warn("slow")
	assert.Contains(t, buf.String(), "request_id=abc")
}

func TestLogrusLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogrusLogger(&buf, DebugLevel).WithFields(Fields{"component": "pipeline"})

	logger.Error(errors.New("boom"), "stage failed", Fields{"stage": "spectral"})

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "stage failed", entry["msg"])
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, "spectral", entry["stage"])
	assert.Equal(t, "boom", entry["error"])
}

func TestNoOpLoggerViaGlobal(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	SetGlobalLogger(nil)
	_, ok := GetGlobalLogger().(*NoOpLogger)
	assert.True(t, ok)
	Info("dropped")
}

func TestWriterLoggerOrdersFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, DebugLevel)

	logger.Error(errors.New("boom"), "failed", Fields{"stage": "mfcc", "frames": 3, "bins": 1025})

	assert.Contains(t, buf.String(), "[ERROR] failed: boom bins=1025 frames=3 stage=mfcc")
}

func TestSetLevelAppliesToChildren(t *testing.T) {
	var buf bytes.Buffer
	root := NewWriterLogger(&buf, InfoLevel)
	child := root.WithFields(Fields{"component": "server"})

	root.SetLevel(ErrorLevel)
	child.Info("quiet")
	assert.Empty(t, buf.String())

	child.SetLevel(DebugLevel)
	root.Debug("loud")
	assert.Contains(t, buf.String(), "[DEBUG] loud")
}
