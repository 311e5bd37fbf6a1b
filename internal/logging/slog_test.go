package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewText_Levels(t *testing.T) {
	var buf bytes.Buffer
	log := NewText(&buf, slog.LevelDebug)
	ctx := context.Background()

	log.Debug(ctx, "frame read", "bytes", 120)
	log.Info(ctx, "session opened", "peer", "10.0.0.7:4411")
	log.Warn(ctx, "admission refused", "peer", "10.0.0.8")
	log.Error(ctx, "snapshot save failed", "err", "disk full")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	tests := []struct {
		level string
		msg   string
		attr  string
	}{
		{"DEBUG", `msg="frame read"`, "bytes=120"},
		{"INFO", `msg="session opened"`, "peer=10.0.0.7:4411"},
		{"WARN", `msg="admission refused"`, "peer=10.0.0.8"},
		{"ERROR", `msg="snapshot save failed"`, `err="disk full"`},
	}
	for i, tc := range tests {
		assert.Contains(t, lines[i], "level="+tc.level)
		assert.Contains(t, lines[i], tc.msg)
		assert.Contains(t, lines[i], tc.attr)
	}
}

func TestNewJSON_FiltersAndCarriesAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, slog.LevelInfo).With("service", "msg")
	ctx := context.Background()

	log.Debug(ctx, "hidden")
	log.With("user", "alice").Info(ctx, "token accepted", "groups", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug must be filtered at info level")

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "token accepted", rec["msg"])
	assert.Equal(t, "msg", rec["service"])
	assert.Equal(t, "alice", rec["user"])
	assert.EqualValues(t, 2, rec["groups"])
}

func TestWith_DoesNotLeakIntoParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewText(&buf, slog.LevelInfo)
	_ = parent.With("conn", 7)

	parent.Info(context.Background(), "closed")
	assert.NotContains(t, buf.String(), "conn=7")
}

func TestNewSlogLogger_WrapsExisting(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil)).With("component", "autosave")

	NewSlogLogger(base).Info(context.TODO(), "tick")
	assert.Contains(t, buf.String(), "component=autosave")
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Error(context.Background(), "dropped")
	log.With("k", "v").Info(context.Background(), "dropped")
}
