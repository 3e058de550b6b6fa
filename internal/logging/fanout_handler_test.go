package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerNilHandlers(t *testing.T) {
	h := newFanoutHandler(nil, nil)
	if _, ok := h.(NoopHandler); !ok {
		t.Errorf("expected NoopHandler for all nil handlers, got %T", h)
	}
}

func TestNewFanoutHandlerSingleHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)

	if h := newFanoutHandler(nil, inner); h != inner {
		t.Error("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerDeliversPerLevel(t *testing.T) {
	var info, warn bytes.Buffer
	h := newFanoutHandler(
		slog.NewJSONHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(h)

	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled for both handlers")
	}

	logger.Info("detector ready")
	logger.Warn("embedder slow")

	if !strings.Contains(info.String(), "detector ready") || !strings.Contains(info.String(), "embedder slow") {
		t.Errorf("info handler missed records: %s", info.String())
	}
	if strings.Contains(warn.String(), "detector ready") {
		t.Errorf("warn handler got an info record: %s", warn.String())
	}
	if !strings.Contains(warn.String(), "embedder slow") {
		t.Errorf("warn handler missed warn record: %s", warn.String())
	}
}

func TestFanoutHandlerWithAttrs(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(newFanoutHandler(
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	)).With("component", "server")

	logger.Info("listening")

	for _, buf := range []*bytes.Buffer{&a, &b} {
		if !strings.Contains(buf.String(), `"component":"server"`) {
			t.Errorf("missing attr: %s", buf.String())
		}
	}
}
