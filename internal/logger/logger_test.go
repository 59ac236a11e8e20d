package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureDefault(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := Default()
	SetDefaultLogger(New(&Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "test"}))
	t.Cleanup(func() { SetDefaultLogger(prev) })
	return &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &out))
	return out
}

func TestContextFieldsReachLogLine(t *testing.T) {
	buf := captureDefault(t)

	ctx := SetRunID(SetJobID(context.Background(), 4), 17)
	ctx = SetBatchID(ctx, 9)
	ctx = SetEntityType(ctx, "fixtures")
	CtxInfo(ctx, "[Sync] Run %s", "completed")

	line := lastLine(t, buf)
	assert.Equal(t, "[Sync] Run completed", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "test", line["service"])
	assert.EqualValues(t, 4, line[FieldJobID])
	assert.EqualValues(t, 17, line[FieldRunID])
	assert.EqualValues(t, 9, line[FieldBatchID])
	assert.Equal(t, "fixtures", line[FieldEntityType])
}

func TestEntryMergesMetricAndContextFields(t *testing.T) {
	buf := captureDefault(t)

	ctx := SetRequestID(context.Background(), "req-1")
	With(Fields{FieldCount: 3}).With(Fields{FieldCount: 5, FieldDurationMs: 12}).Warn(ctx, "slow")

	line := lastLine(t, buf)
	assert.Equal(t, "warning", line["level"])
	assert.Equal(t, "req-1", line[FieldRequestID])
	assert.EqualValues(t, 5, line[FieldCount])
	assert.EqualValues(t, 12, line[FieldDurationMs])
}

func TestGetRequestID(t *testing.T) {
	assert.Equal(t, "", GetRequestID(context.Background()))
	assert.Equal(t, "abc", GetRequestID(SetRequestID(context.Background(), "abc")))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "warn", Output: &buf})
	ctx := WithFields(context.WithValue(context.Background(), loggerKey, l), Fields{FieldComponent: "api"})

	CtxInfo(ctx, "dropped")
	assert.Empty(t, buf.String())

	CtxError(ctx, "kept")
	assert.Contains(t, buf.String(), "kept")
	assert.Contains(t, buf.String(), `"component":"api"`)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FILE", "")
	cfg := ConfigFromEnv()
	assert.Equal(t, "debug", cfg.Level)
	assert.Nil(t, cfg.File)

	path := filepath.Join(t.TempDir(), "app.log")
	t.Setenv("LOG_FILE", path)
	t.Setenv("LOG_MAX_BACKUPS", "2")
	cfg = ConfigFromEnv()
	require.NotNil(t, cfg.File)
	assert.Equal(t, path, cfg.File.Path)
	assert.Equal(t, 2, cfg.File.MaxBackups)
	assert.Equal(t, 100, cfg.File.MaxSizeMB)
}

func TestFileOutputAndSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")
	l := New(&Config{Format: "text", FileOnly: true, File: &FileConfig{Path: path, MaxSizeMB: 1}})
	l.Info("written to file")
	require.NoError(t, Sync())
	require.NoError(t, Sync())
	assert.FileExists(t, path)
}
