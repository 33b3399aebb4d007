package observability

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

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestStdoutLogger_JSONEntries(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdoutLogger(&buf, "info", Fields{"service": "test"})

	l.Info(context.Background(), "hello", Fields{"part": "LM358"})

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "INFO", entries[0]["level"])
	assert.Equal(t, "hello", entries[0]["message"])
	assert.Equal(t, "test", entries[0]["service"])
	assert.Equal(t, "LM358", entries[0]["part"])
	assert.NotEmpty(t, entries[0]["timestamp"])
}

func TestStdoutLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdoutLogger(&buf, "warn", nil)

	ctx := context.Background()
	l.Debug(ctx, "d", nil)
	l.Info(ctx, "i", nil)
	l.Warn(ctx, "w", nil)
	l.Error(ctx, "e", errors.New("boom"), nil)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "ERROR", entries[1]["level"])
	assert.Equal(t, "boom", entries[1]["error"])
}

func TestStdoutLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewStdoutLogger(&buf, "info", Fields{"service": "test"})

	child := base.WithFields(Fields{"worker": "api-worker-1"})
	child.Info(context.Background(), "msg", nil)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "test", entries[0]["service"])
	assert.Equal(t, "api-worker-1", entries[0]["worker"])

	// The parent logger is unaffected.
	buf.Reset()
	base.Info(context.Background(), "msg", nil)
	entries = decodeLines(t, &buf)
	_, hasWorker := entries[0]["worker"]
	assert.False(t, hasWorker)
}

func TestStdoutLogger_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdoutLogger(&buf, "verbose", nil)

	ctx := context.Background()
	l.Debug(ctx, "d", nil)
	l.Info(ctx, "i", nil)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "INFO", entries[0]["level"])
}
