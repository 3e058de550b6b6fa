package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// WriterSink writes one JSON line per event to w (stdout by default).
type WriterSink struct {
	name string
	mu   sync.Mutex
	enc  *json.Encoder
}

func NewWriterSink(w io.Writer) *WriterSink {
	name := "writer"
	if w == nil {
		w = os.Stdout
		name = "stdout"
	}
	return &WriterSink{name: name, enc: json.NewEncoder(w)}
}

func (s *WriterSink) Name() string { return s.name }

func (s *WriterSink) Deliver(_ context.Context, ev *Event) error {
	if ev == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(ev); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return nil
}

func (s *WriterSink) Close(context.Context) error { return nil }
