package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/oggyb/muzz-discovery/internal/config"
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
		Info("hello discovery", "key", "value")
	})

	if !strings.Contains(out, "hello discovery") {
		t.Errorf("expected message, got: %s", out)
	}
	if !strings.Contains(out, "component=test") {
		t.Errorf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "key=value") {
		t.Errorf("expected structured field, got: %s", out)
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	out := capture(t, Config{Level: "info", Format: FormatJSON, Component: "json_test"}, func() {
		Info("json log", "foo", "bar")
	})

	if !strings.Contains(out, `"msg":"json log"`) {
		t.Errorf("expected JSON message, got: %s", out)
	}
	if !strings.Contains(out, `"component":"json_test"`) {
		t.Errorf("expected component in JSON, got: %s", out)
	}
	if !strings.Contains(out, `"foo":"bar"`) {
		t.Errorf("expected structured field in JSON, got: %s", out)
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	out := capture(t, Config{Level: "error", Format: FormatText}, func() {
		Info("should not appear")
		Error("should appear")
	})

	if strings.Contains(out, "should not appear") {
		t.Errorf("info log should not appear, got: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Errorf("error log should appear, got: %s", out)
	}
}

func TestLogger_WithAddsFields(t *testing.T) {
	out := capture(t, Config{Level: "debug", Format: FormatText}, func() {
		With("req_id", "123").Info("processing request")
	})

	if !strings.Contains(out, "req_id=123") {
		t.Errorf("expected req_id field, got: %s", out)
	}
}

func TestLogger_InitFromConfig(t *testing.T) {
	cfg := &config.Config{Log: config.LogConfig{
		Level:     "debug",
		Format:    "json",
		Component: "cfg_test",
	}}
	InitFromConfig(cfg)
	t.Cleanup(func() { Init(&Config{Level: "info", Format: FormatText}) })

	if L() == nil {
		t.Fatal("expected non-nil logger")
	}
	if !L().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug level enabled from config")
	}
}

func TestFrom_PrefersContextLogger(t *testing.T) {
	var buf bytes.Buffer
	scoped := slog.New(slog.NewTextHandler(&buf, nil)).With("request_id", "rid-1")
	ctx := Into(context.Background(), scoped)

	From(ctx).Info("scoped")

	if !strings.Contains(buf.String(), "request_id=rid-1") {
		t.Errorf("expected scoped logger to be used, got: %s", buf.String())
	}
}

func TestFrom_FallsBack(t *testing.T) {
	fallback := slog.New(slog.NewTextHandler(io.Discard, nil))

	if got := From(context.Background(), fallback); got != fallback {
		t.Error("expected fallback logger")
	}
	if From(context.Background()) == nil {
		t.Error("expected global logger")
	}
}
