// Package detection runs placeholder detection for every surface (HTTP, MCP,
// CLI) and attaches the cross-cutting work: tracing, metrics, detection
// events and logging. The active lexicon can be swapped at runtime.
package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/straja-ai/placeholder/internal/embedding"
	"github.com/straja-ai/placeholder/internal/events"
	"github.com/straja-ai/placeholder/internal/placeholder"
	"github.com/straja-ai/placeholder/internal/telemetry"
)

// Deps are the collaborators of a Service. Only Lexicon is required.
type Deps struct {
	Lexicon   *placeholder.Lexicon
	Embedder  embedding.Embedder // nil limits detection to exact matches
	Defaults  placeholder.Options
	Events    *events.Emitter
	Telemetry *telemetry.Provider
	Logger    *slog.Logger
}

type engine struct {
	lex      *placeholder.Lexicon
	detector *placeholder.Detector
	loadedAt time.Time
}

// Service is safe for concurrent use.
type Service struct {
	engine   atomic.Pointer[engine]
	embedder embedding.Embedder
	defaults placeholder.Options
	events   *events.Emitter
	tel      *telemetry.Provider
	logger   *slog.Logger
	reloads  atomic.Int64
}

// Request is one detection call.
type Request struct {
	RequestID  string
	Source     string
	Candidates []placeholder.Candidate
	Options    *placeholder.Options // nil uses the service defaults
}

// New embeds the lexicon (when an embedder is present) and returns a ready
// service.
func New(ctx context.Context, deps Deps) (*Service, error) {
	if deps.Lexicon == nil {
		return nil, errors.New("detection: lexicon is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tel := deps.Telemetry
	if tel == nil {
		tel = telemetry.Noop()
	}
	defaults := deps.Defaults
	if defaults == (placeholder.Options{}) {
		defaults = placeholder.DefaultOptions()
	}
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("detection defaults: %w", err)
	}

	s := &Service{
		embedder: deps.Embedder,
		defaults: defaults,
		events:   deps.Events,
		tel:      tel,
		logger:   logger.With("component", "detection"),
	}
	eng, err := s.build(ctx, deps.Lexicon)
	if err != nil {
		return nil, err
	}
	s.engine.Store(eng)
	return s, nil
}

func (s *Service) build(ctx context.Context, lex *placeholder.Lexicon) (*engine, error) {
	var matcher *placeholder.SemanticMatcher
	if s.embedder != nil {
		var err error
		matcher, err = placeholder.NewSemanticMatcher(ctx, lex, s.embedder)
		if err != nil {
			return nil, fmt.Errorf("embed lexicon: %w", err)
		}
	}
	return &engine{
		lex:      lex,
		detector: placeholder.NewDetector(lex, matcher, placeholder.WithLogger(s.logger)),
		loadedAt: time.Now().UTC(),
	}, nil
}

// Defaults returns the options used when a request carries none.
func (s *Service) Defaults() placeholder.Options { return s.defaults }

// Lexicon returns the active lexicon.
func (s *Service) Lexicon() *placeholder.Lexicon { return s.engine.Load().lex }

// Reload swaps in lex once its embedding table is built. In-flight calls
// finish on the previous lexicon.
func (s *Service) Reload(ctx context.Context, lex *placeholder.Lexicon) error {
	if lex == nil {
		return errors.New("detection: lexicon is required")
	}
	eng, err := s.build(ctx, lex)
	if err != nil {
		return err
	}
	prev := s.engine.Swap(eng)
	s.reloads.Add(1)
	s.logger.Info("lexicon reloaded",
		"entries", lex.Len(),
		"patterns", len(lex.Patterns()),
		"fingerprint", lex.Fingerprint(),
		"previous_fingerprint", prev.lex.Fingerprint())
	return nil
}

// Detect runs one call and records its outcome.
func (s *Service) Detect(ctx context.Context, req Request) (*placeholder.Verdict, error) {
	opts := s.defaults
	if req.Options != nil {
		opts = *req.Options
	}
	eng := s.engine.Load()

	ctx, span := s.tel.StartDetect(ctx, map[string]any{
		"request_id": req.RequestID,
		"source":     req.Source,
		"candidates": len(req.Candidates),
		"threshold":  opts.Threshold,
	})
	defer span.End()

	start := time.Now()
	v, err := eng.detector.Detect(ctx, req.Candidates, opts)
	elapsed := time.Since(start)

	ev := events.NewEvent(req.RequestID, req.Source, len(req.Candidates), elapsed, v, err)
	ev.LexiconVersion = eng.lex.Fingerprint()
	s.tel.RecordDetection(ctx, string(ev.Outcome), string(ev.Method), ev.LatencyMs, len(req.Candidates))
	span.SetAttributes(telemetry.SafeAttributes(map[string]any{
		"outcome": string(ev.Outcome),
		"method":  string(ev.Method),
	})...)
	s.events.Emit(ev)

	logAttrs := []any{
		"request_id", req.RequestID,
		"source", req.Source,
		"outcome", ev.Outcome,
		"candidates", len(req.Candidates),
		"latency_ms", ev.LatencyMs,
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "detection failed")
		s.logger.Error("detection failed", append(logAttrs, "error", err)...)
		return nil, err
	}
	if v != nil {
		logAttrs = append(logAttrs, "method", v.DetectionMethod, "index", v.Index, "similarity", v.Similarity)
	}
	s.logger.Info("detection finished", logAttrs...)
	return v, nil
}

// RejectInvalid records a request refused before detection.
func (s *Service) RejectInvalid(ctx context.Context, requestID, source, reason string) {
	s.tel.RecordDetection(ctx, string(events.OutcomeInvalidInput), "", 0, 0)
	s.events.Emit(events.InvalidInput(requestID, source, reason))
	s.logger.Warn("invalid detection request", "request_id", requestID, "source", source, "reason", reason)
}

// Info describes the active lexicon and embedder.
type Info struct {
	LexiconEntries  int       `json:"lexicon_entries"`
	LexiconPatterns int       `json:"lexicon_patterns"`
	Fingerprint     string    `json:"lexicon_fingerprint"`
	LoadedAt        time.Time `json:"lexicon_loaded_at"`
	Reloads         int64     `json:"lexicon_reloads"`
	Embedder        string    `json:"embedder"`
	Dimension       int       `json:"embedding_dimension"`
	Threshold       float64   `json:"default_threshold"`
}

func (s *Service) Info() Info {
	eng := s.engine.Load()
	info := Info{
		LexiconEntries:  eng.lex.Len(),
		LexiconPatterns: len(eng.lex.Patterns()),
		Fingerprint:     eng.lex.Fingerprint(),
		LoadedAt:        eng.loadedAt,
		Reloads:         s.reloads.Load(),
		Embedder:        "none",
		Threshold:       s.defaults.Threshold,
	}
	if s.embedder != nil {
		info.Embedder = s.embedder.Name()
		info.Dimension = s.embedder.Dimension()
	}
	return info
}

// EventMetrics exposes the event emitter counters.
func (s *Service) EventMetrics() events.Metrics { return s.events.Metrics() }
