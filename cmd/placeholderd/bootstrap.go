package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/straja-ai/placeholder/internal/config"
	"github.com/straja-ai/placeholder/internal/detection"
	"github.com/straja-ai/placeholder/internal/embedding"
	"github.com/straja-ai/placeholder/internal/events"
	"github.com/straja-ai/placeholder/internal/logging"
	"github.com/straja-ai/placeholder/internal/placeholder"
	"github.com/straja-ai/placeholder/internal/telemetry"
)

const warmupSample = "COMPANY NAME"

type bootOptions struct {
	// quiet keeps one-shot commands to warnings on stderr with no log file.
	quiet bool
	// noEmbedder restricts detection to exact and structural matches.
	noEmbedder bool
	// noEvents skips event sinks.
	noEvents bool
	stderr   io.Writer
}

// runtime owns everything a command builds from config and closes it in
// reverse order.
type runtime struct {
	cfg       *config.Config
	logs      *logging.Logging
	logger    *slog.Logger
	telemetry *telemetry.Provider
	embedder  embedding.Embedder
	events    *events.Emitter
	service   *detection.Service
}

func bootstrap(ctx context.Context, cfg *config.Config, opts bootOptions) (*runtime, error) {
	logOpts := logging.Options{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		File:           cfg.Logging.File,
		MaxBytes:       cfg.Logging.MaxBytes,
		BackupCount:    cfg.Logging.BackupCount,
		MemoryCapacity: cfg.Logging.MemoryCapacity,
		Console:        opts.stderr,
	}
	if opts.quiet {
		logOpts.Level = "WARNING"
		logOpts.File = ""
	}
	logs, err := logging.New(logOpts)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	rt := &runtime{cfg: cfg, logs: logs, logger: logs.Logger}

	rt.telemetry, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled && !opts.quiet,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Service:  cfg.Telemetry.ServiceName,
		Version:  version,
		Insecure: cfg.Telemetry.Insecure,
	}, rt.logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	lex := placeholder.DefaultLexicon()
	if cfg.Detector.LexiconFile != "" {
		lex, err = placeholder.LoadLexiconFile(cfg.Detector.LexiconFile)
		if err != nil {
			rt.Close()
			return nil, err
		}
	}

	if !opts.noEmbedder {
		emb, err := openEmbedder(ctx, cfg.Embedding, rt.logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.embedder = telemetry.InstrumentEmbedder(emb, rt.telemetry)
		if cfg.Embedding.WarmupEnabled() {
			took, err := embedding.Warmup(ctx, rt.embedder, warmupSample)
			if err != nil {
				rt.Close()
				return nil, fmt.Errorf("embedding warmup: %w", err)
			}
			rt.logger.Info("embedding warmup finished", "backend", emb.Name(), "took_ms", took.Milliseconds())
		}
	}

	if !opts.noEvents {
		rt.events, err = events.FromConfig(cfg.Events, events.WithLogger(rt.logger))
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("events: %w", err)
		}
	}

	rt.service, err = detection.New(ctx, detection.Deps{
		Lexicon:   lex,
		Embedder:  rt.embedder,
		Defaults:  detectorDefaults(cfg.Detector),
		Events:    rt.events,
		Telemetry: rt.telemetry,
		Logger:    rt.logger,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func openEmbedder(ctx context.Context, ec config.EmbeddingConfig, logger *slog.Logger) (embedding.Embedder, error) {
	emb, err := embedding.Open(ctx, embedding.Settings{
		Backend:      ec.Backend,
		ModelDir:     ec.ModelDir,
		SeqLen:       ec.SeqLen,
		BatchSize:    ec.BatchSize,
		MaxSessions:  ec.MaxSessions,
		IntraThreads: ec.IntraThreads,
		InterThreads: ec.InterThreads,
		Dimension:    ec.Dimension,
		GeminiModel:  ec.GeminiModel,
		GeminiAPIKey: ec.GeminiAPIKey(),
		Timeout:      ec.RequestTimeout,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s embedder: %w", ec.Backend, err)
	}
	return emb, nil
}

func detectorDefaults(d config.DetectorConfig) placeholder.Options {
	return placeholder.Options{
		Threshold: d.Threshold,
		Weights: placeholder.Weights{
			Semantic: d.SemanticWeight,
			Fuzzy:    d.FuzzyWeight,
			Format:   d.FormatWeight,
		},
	}
}

// Close flushes events, shuts telemetry down and releases the model and log
// file.
func (rt *runtime) Close() {
	if rt == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rt.events.Close(ctx)
	if rt.embedder != nil {
		if err := rt.embedder.Close(); err != nil {
			rt.logger.Warn("close embedder", "error", err)
		}
	}
	if err := rt.telemetry.Shutdown(ctx); err != nil {
		rt.logger.Warn("telemetry shutdown", "error", err)
	}
	_ = rt.logs.Close()
}
