package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds placeholderd configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Detector  DetectorConfig  `yaml:"detector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Events    EventsConfig    `yaml:"events"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr                string          `yaml:"addr"`       // HTTP listen address, e.g. "0.0.0.0:5000"
	APIPrefix           string          `yaml:"api_prefix"` // e.g. "/api/v1"
	MaxRequestBodyBytes int64           `yaml:"max_request_body_bytes"`
	MaxCandidates       int             `yaml:"max_candidates"`
	ReadTimeout         time.Duration   `yaml:"read_timeout"`
	WriteTimeout        time.Duration   `yaml:"write_timeout"`
	IdleTimeout         time.Duration   `yaml:"idle_timeout"`
	ShutdownTimeout     time.Duration   `yaml:"shutdown_timeout"`
	APIKeys             []string        `yaml:"api_keys"` // empty = open
	ResultTTL           time.Duration   `yaml:"result_ttl"`
	RateLimit           RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig is a per-client token bucket. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type LoggingConfig struct {
	Level          string `yaml:"level"` // DEBUG | INFO | WARNING | ERROR | CRITICAL
	File           string `yaml:"file"`  // empty disables the file handler
	MaxBytes       int64  `yaml:"max_bytes"`
	BackupCount    int    `yaml:"backup_count"`
	MemoryCapacity int    `yaml:"memory_capacity"`
	Format         string `yaml:"format"` // text | json
}

type DetectorConfig struct {
	Threshold      float64 `yaml:"threshold"`
	SemanticWeight float64 `yaml:"semantic_weight"`
	FuzzyWeight    float64 `yaml:"fuzzy_weight"`
	FormatWeight   float64 `yaml:"format_weight"`
	LexiconFile    string  `yaml:"lexicon_file"`
	WatchLexicon   bool    `yaml:"watch_lexicon"` // reload lexicon_file on change
}

type EmbeddingConfig struct {
	Backend         string        `yaml:"backend"` // onnx | gemini
	ModelDir        string        `yaml:"model_dir"`
	SeqLen          int           `yaml:"seq_len"`
	BatchSize       int           `yaml:"batch_size"`
	MaxSessions     int           `yaml:"max_sessions"`
	IntraThreads    int           `yaml:"intra_threads"`
	InterThreads    int           `yaml:"inter_threads"`
	Dimension       int           `yaml:"dimension"`
	GeminiModel     string        `yaml:"gemini_model"`
	GeminiAPIKeyEnv string        `yaml:"gemini_api_key_env"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	Warmup          *bool         `yaml:"warmup"`
}

type EventsConfig struct {
	QueueSize    int           `yaml:"queue_size"`
	Workers      int           `yaml:"workers"`
	DrainTimeout time.Duration `yaml:"drain_timeout"`
	Sinks        []SinkConfig  `yaml:"sinks"`
}

type SinkConfig struct {
	Type    string            `yaml:"type"` // file_jsonl | webhook | stdout
	Path    string            `yaml:"path"`
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Retries int               `yaml:"retries"`
	Headers map[string]string `yaml:"headers"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Protocol    string `yaml:"protocol"` // grpc | http
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// WarmupEnabled defaults to true when unset.
func (e EmbeddingConfig) WarmupEnabled() bool {
	return e.Warmup == nil || *e.Warmup
}

// Load reads configuration from a YAML file, then applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	loadDotEnv()

	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	applyEnv(cfg, os.LookupEnv)
	applyDefaults(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Logging.File = "app.log"
	return cfg
}

func applyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.Addr == "" {
		s.Addr = "0.0.0.0:5000"
	}
	if s.APIPrefix == "" {
		s.APIPrefix = "/api/v1"
	}
	if s.MaxRequestBodyBytes == 0 {
		s.MaxRequestBodyBytes = 1 << 20
	}
	if s.MaxCandidates == 0 {
		s.MaxCandidates = 1000
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 15 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 60 * time.Second
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = 120 * time.Second
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 10 * time.Second
	}
	if s.ResultTTL == 0 {
		s.ResultTTL = 10 * time.Minute
	}

	l := &cfg.Logging
	if l.Level == "" {
		l.Level = "INFO"
	}
	if l.MaxBytes == 0 {
		l.MaxBytes = 10 << 20
	}
	if l.BackupCount == 0 {
		l.BackupCount = 5
	}
	if l.MemoryCapacity == 0 {
		l.MemoryCapacity = 1000
	}
	if l.Format == "" {
		l.Format = "text"
	}

	d := &cfg.Detector
	if d.Threshold == 0 && d.SemanticWeight == 0 && d.FuzzyWeight == 0 && d.FormatWeight == 0 {
		d.Threshold = 0.75
		d.SemanticWeight, d.FuzzyWeight, d.FormatWeight = 0.4, 0.3, 0.3
	}

	e := &cfg.Embedding
	if e.Backend == "" {
		e.Backend = "onnx"
	}
	if e.ModelDir == "" {
		e.ModelDir = "models/all-MiniLM-L6-v2"
	}
	if e.SeqLen == 0 {
		e.SeqLen = 128
	}
	if e.BatchSize == 0 {
		e.BatchSize = 32
	}
	if e.MaxSessions == 0 {
		e.MaxSessions = 1
	}
	if e.GeminiModel == "" {
		e.GeminiModel = "text-embedding-004"
	}
	if e.GeminiAPIKeyEnv == "" {
		e.GeminiAPIKeyEnv = "GEMINI_API_KEY"
	}
	if e.RequestTimeout == 0 {
		e.RequestTimeout = 30 * time.Second
	}

	ev := &cfg.Events
	if ev.QueueSize == 0 {
		ev.QueueSize = 1000
	}
	if ev.Workers == 0 {
		ev.Workers = 2
	}
	if ev.DrainTimeout == 0 {
		ev.DrainTimeout = 2 * time.Second
	}

	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "placeholderd"
	}
}
