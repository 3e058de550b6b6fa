package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}
	if _, _, err := net.SplitHostPort(cfg.Server.Addr); err != nil {
		return fmt.Errorf("server.addr %q: %w", cfg.Server.Addr, err)
	}
	if !strings.HasPrefix(cfg.Server.APIPrefix, "/") {
		return fmt.Errorf("server.api_prefix must start with /, got %q", cfg.Server.APIPrefix)
	}
	if cfg.Server.MaxRequestBodyBytes <= 0 {
		return errors.New("server.max_request_body_bytes must be positive")
	}
	if cfg.Server.MaxCandidates <= 0 {
		return errors.New("server.max_candidates must be positive")
	}
	for i, k := range cfg.Server.APIKeys {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("server.api_keys[%d] is empty", i)
		}
	}
	if rl := cfg.Server.RateLimit; rl.RequestsPerSecond < 0 || math.IsNaN(rl.RequestsPerSecond) || rl.Burst < 0 {
		return errors.New("server.rate_limit values must not be negative")
	}

	if err := validateLoggingConfig(cfg.Logging); err != nil {
		return err
	}
	if err := validateDetectorConfig(cfg.Detector); err != nil {
		return err
	}
	if err := validateEmbeddingConfig(cfg.Embedding); err != nil {
		return err
	}
	if err := validateEventsConfig(cfg.Events); err != nil {
		return err
	}
	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}
	return nil
}

func validateLoggingConfig(l LoggingConfig) error {
	switch strings.ToUpper(strings.TrimSpace(l.Level)) {
	case "DEBUG", "INFO", "WARNING", "WARN", "ERROR", "CRITICAL":
	default:
		return fmt.Errorf("logging.level must be DEBUG, INFO, WARNING, ERROR or CRITICAL, got %q", l.Level)
	}
	switch strings.ToLower(strings.TrimSpace(l.Format)) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", l.Format)
	}
	if l.File != "" && l.MaxBytes < 0 {
		return errors.New("logging.max_bytes must not be negative")
	}
	if l.BackupCount < 0 {
		return errors.New("logging.backup_count must not be negative")
	}
	if l.MemoryCapacity <= 0 {
		return errors.New("logging.memory_capacity must be positive")
	}
	return nil
}

func validateDetectorConfig(d DetectorConfig) error {
	if math.IsNaN(d.Threshold) || d.Threshold < 0 || d.Threshold > 1 {
		return fmt.Errorf("detector.threshold must be within [0,1], got %v", d.Threshold)
	}
	for name, w := range map[string]float64{
		"semantic_weight": d.SemanticWeight,
		"fuzzy_weight":    d.FuzzyWeight,
		"format_weight":   d.FormatWeight,
	} {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("detector.%s must be a non-negative number, got %v", name, w)
		}
	}
	if d.WatchLexicon && strings.TrimSpace(d.LexiconFile) == "" {
		return errors.New("detector.watch_lexicon requires detector.lexicon_file")
	}
	return nil
}

func validateEmbeddingConfig(e EmbeddingConfig) error {
	switch strings.ToLower(strings.TrimSpace(e.Backend)) {
	case "onnx":
		if strings.TrimSpace(e.ModelDir) == "" {
			return errors.New("embedding.model_dir must be set for the onnx backend")
		}
	case "gemini":
		if strings.TrimSpace(e.GeminiAPIKeyEnv) == "" {
			return errors.New("embedding.gemini_api_key_env must be set for the gemini backend")
		}
	default:
		return fmt.Errorf("embedding.backend must be onnx or gemini, got %q", e.Backend)
	}
	if e.SeqLen < 2 {
		return fmt.Errorf("embedding.seq_len must be at least 2, got %d", e.SeqLen)
	}
	if e.BatchSize <= 0 || e.MaxSessions <= 0 {
		return errors.New("embedding.batch_size and embedding.max_sessions must be positive")
	}
	if e.Dimension < 0 || e.IntraThreads < 0 || e.InterThreads < 0 {
		return errors.New("embedding.dimension and thread counts must not be negative")
	}
	return nil
}

func validateEventsConfig(ev EventsConfig) error {
	if ev.QueueSize <= 0 || ev.Workers <= 0 {
		return errors.New("events.queue_size and events.workers must be positive")
	}
	for i, s := range ev.Sinks {
		switch strings.ToLower(strings.TrimSpace(s.Type)) {
		case "file_jsonl":
			if strings.TrimSpace(s.Path) == "" {
				return fmt.Errorf("events sink %d (file_jsonl) missing path", i)
			}
		case "webhook":
			if strings.TrimSpace(s.URL) == "" {
				return fmt.Errorf("events sink %d (webhook) missing url", i)
			}
			u, err := url.Parse(s.URL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("events sink %d (webhook) has invalid url", i)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("events sink %d (webhook) url must be http or https", i)
			}
			if s.Retries < 0 {
				return fmt.Errorf("events sink %d (webhook) retries must not be negative", i)
			}
		case "stdout":
		default:
			return fmt.Errorf("events sink %d has unknown type %q", i, s.Type)
		}
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry enabled but endpoint is empty")
	}
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "grpc", "http":
	default:
		return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
	}
	return nil
}
