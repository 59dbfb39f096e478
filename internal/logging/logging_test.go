package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn := Setup(&buf, "", slog.LevelInfo)
	defer closeFn()

	logger.Debug("hidden")
	logger.Info("fetched", "url", "https://api.example.com")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=fetched")
	assert.Contains(t, out, "url=https://api.example.com")
}

func TestFanoutSendsToEachHandler(t *testing.T) {
	var info, debug bytes.Buffer
	h := fanout{
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}
	logger := slog.New(h).With("component", "normalize").WithGroup("event")

	logger.Debug("shape", "path", "location")
	logger.Info("done", "rows", 2)

	assert.NotContains(t, info.String(), "msg=shape")
	assert.Contains(t, info.String(), "component=normalize event.rows=2")
	assert.Contains(t, debug.String(), "event.path=location")
	assert.Contains(t, debug.String(), "msg=done")
}
