package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultIsSilent(t *testing.T) {
	Set(nil)
	assert.False(t, Get().Enabled(t.Context(), slog.LevelError))
}

func TestForTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	Set(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { Set(nil) })

	For("accumulation").Info("reset", "frame", 1)
	assert.Contains(t, buf.String(), "component=accumulation")
	assert.Contains(t, buf.String(), "frame=1")
}
