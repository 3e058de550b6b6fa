package events

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/straja-ai/placeholder/internal/config"
)

type options struct {
	logger *slog.Logger
	stdout io.Writer
}

type Option func(*options)

// WithLogger sets the logger for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStdout redirects the stdout sink.
func WithStdout(w io.Writer) Option {
	return func(o *options) { o.stdout = w }
}

// FromConfig builds the emitter and its sinks. With no sinks configured it
// returns nil, which Emit treats as a no-op.
func FromConfig(cfg config.EventsConfig, opts ...Option) (*Emitter, error) {
	if len(cfg.Sinks) == 0 {
		return nil, nil
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	sinks := make([]Sink, 0, len(cfg.Sinks))
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close(context.Background())
		}
	}
	for i, sc := range cfg.Sinks {
		var (
			s   Sink
			err error
		)
		switch strings.ToLower(strings.TrimSpace(sc.Type)) {
		case "file_jsonl":
			s, err = NewFileSink(sc.Path)
		case "webhook":
			s, err = NewWebhookSink(sc.URL, sc.Headers, sc.Timeout, sc.Retries)
		case "stdout":
			s = NewWriterSink(o.stdout)
		default:
			err = fmt.Errorf("unknown type %q", sc.Type)
		}
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("events.sinks[%d]: %w", i, err)
		}
		sinks = append(sinks, s)
	}

	return NewEmitter(EmitterConfig{
		QueueSize:    cfg.QueueSize,
		Workers:      cfg.Workers,
		DrainTimeout: cfg.DrainTimeout,
		Logger:       o.logger,
	}, sinks), nil
}
