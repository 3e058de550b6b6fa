package config

import (
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnv reads .env from the working directory if present. Variables
// already set in the process environment win.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
}

type lookupFunc func(string) (string, bool)

// applyEnv maps the service environment variables onto cfg.
func applyEnv(cfg *Config, lookup lookupFunc) {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	host, hostOK := get("HOST")
	port, portOK := get("PORT")
	if hostOK || portOK {
		h, p, err := net.SplitHostPort(cfg.Server.Addr)
		if err != nil {
			h, p = "0.0.0.0", "5000"
		}
		if hostOK {
			h = host
		}
		if portOK {
			p = port
		}
		cfg.Server.Addr = net.JoinHostPort(h, p)
	}
	if v, ok := get("API_PREFIX"); ok {
		cfg.Server.APIPrefix = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.Logging.Level = strings.ToUpper(v)
	}
	if v, ok := get("LOG_FILE"); ok {
		cfg.Logging.File = v
	}
	if v, ok := get("LOG_MAX_BYTES"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Logging.MaxBytes = n
		}
	}
	if v, ok := get("LOG_BACKUP_COUNT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Logging.BackupCount = n
		}
	}
	if v, ok := get("PLACEHOLDER_MODEL_DIR"); ok {
		cfg.Embedding.ModelDir = v
	}
	if v, ok := get("PLACEHOLDER_EMBEDDING_BACKEND"); ok {
		cfg.Embedding.Backend = strings.ToLower(v)
	}
	if v, ok := get("PLACEHOLDER_LEXICON_FILE"); ok {
		cfg.Detector.LexiconFile = v
	}
}

// GeminiAPIKey resolves the key from the configured environment variable.
func (e EmbeddingConfig) GeminiAPIKey() string {
	return strings.TrimSpace(os.Getenv(e.GeminiAPIKeyEnv))
}
