// Package embedding provides the frozen sentence-embedding models used for
// semantic placeholder matching.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Embedder maps texts to fixed-width vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimension() int
	Close() error
}

const (
	BackendONNX   = "onnx"
	BackendGemini = "gemini"
)

// Settings configure a backend. Zero values fall back to defaults.
type Settings struct {
	Backend      string
	ModelDir     string
	SeqLen       int
	BatchSize    int
	MaxSessions  int
	IntraThreads int
	InterThreads int
	Dimension    int

	GeminiModel  string
	GeminiAPIKey string
	Timeout      time.Duration

	Logger *slog.Logger
}

func (s Settings) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

const (
	defaultSeqLen       = 128
	defaultBatchSize    = 32
	defaultIntraThreads = 1
	defaultInterThreads = 1
)

// Open builds the embedder selected by s.Backend.
func Open(ctx context.Context, s Settings) (Embedder, error) {
	switch s.Backend {
	case "", BackendONNX:
		return LoadONNX(s)
	case BackendGemini:
		return NewGemini(ctx, s)
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", s.Backend)
	}
}

// Warmup runs one embedding call and reports how long it took.
func Warmup(ctx context.Context, e Embedder, sample string) (time.Duration, error) {
	if e == nil {
		return 0, errors.New("embedder not initialized")
	}
	start := time.Now()
	if _, err := e.Embed(ctx, []string{sample}); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}
