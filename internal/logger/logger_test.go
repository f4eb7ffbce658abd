package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/IdrisKulubi/strath-mobile-sub004/internal/config"
)

// capture points the global logger at a buffer for the duration of f.
func capture(t *testing.T, c Config, f func()) string {
	t.Helper()

	var buf bytes.Buffer
	c.Output = &buf
	Init(&c)
	t.Cleanup(func() { Init(&Config{Level: "info", Format: FormatText}) })

	f()
	return buf.String()
}

func TestLogger_TextFormat(t *testing.T) {
	out := capture(t, Config{Level: "debug", Format: FormatText, Component: "test"}, func() {
		Info("hello campus", "key", "value")
	})

	assert.Contains(t, out, "hello campus")
	assert.Contains(t, out, "component=test")
	assert.Contains(t, out, "key=value")
}

func TestLogger_JSONFormat(t *testing.T) {
	out := capture(t, Config{Level: "info", Format: FormatJSON, Component: "json_test"}, func() {
		Info("json log", "foo", "bar")
	})

	assert.Contains(t, out, `"msg":"json log"`)
	assert.Contains(t, out, `"component":"json_test"`)
	assert.Contains(t, out, `"foo":"bar"`)
}

func TestLogger_LevelFilter(t *testing.T) {
	out := capture(t, Config{Level: "error", Format: FormatText}, func() {
		Info("should not appear")
		Error("should appear")
	})

	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestLogger_WithAddsFields(t *testing.T) {
	out := capture(t, Config{Level: "debug", Format: FormatText}, func() {
		With("req_id", "123").Info("processing request")
	})

	assert.Contains(t, out, "req_id=123")
}

func TestLogger_FromContext(t *testing.T) {
	out := capture(t, Config{Level: "debug", Format: FormatText}, func() {
		ctx := NewContext(context.Background(), With("request_id", "abc"))
		FromContext(ctx).Info("scoped")
		FromContext(context.Background()).Info("global")
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if assert.Len(t, lines, 2) {
		assert.Contains(t, lines[0], "request_id=abc")
		assert.NotContains(t, lines[1], "request_id")
	}
}

func TestLogger_InitFromConfig(t *testing.T) {
	cfg := config.New()
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"
	cfg.Log.Component = "cfg_test"

	InitFromConfig(cfg)
	t.Cleanup(func() { Init(&Config{Level: "info", Format: FormatText}) })

	assert.True(t, L().Enabled(context.Background(), parseLevel("warn").Level()))
	assert.False(t, L().Enabled(context.Background(), parseLevel("info").Level()))
}
