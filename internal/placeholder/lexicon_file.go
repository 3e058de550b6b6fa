package placeholder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// LexiconFile is the on-disk shape of a custom lexicon.
type LexiconFile struct {
	Entries        []string `yaml:"entries" toml:"entries" json:"entries"`
	Patterns       []string `yaml:"patterns" toml:"patterns" json:"patterns"`
	ExtendDefaults bool     `yaml:"extend_defaults" toml:"extend_defaults" json:"extend_defaults"`
}

// LoadLexiconFile reads a lexicon from YAML, TOML or JSON, picked by extension.
// Without patterns in the file the built-in patterns are used.
func LoadLexiconFile(path string) (*Lexicon, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("lexicon path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}

	var lf LexiconFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &lf)
	case ".toml":
		err = toml.Unmarshal(data, &lf)
	case ".json":
		err = json.Unmarshal(data, &lf)
	default:
		return nil, fmt.Errorf("unsupported lexicon format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("decode lexicon %s: %w", filepath.Base(path), err)
	}
	return lf.Build()
}

// Build turns the file contents into a Lexicon.
func (lf LexiconFile) Build() (*Lexicon, error) {
	entries := lf.Entries
	patterns := lf.Patterns
	if lf.ExtendDefaults {
		entries = append(DefaultEntries(), entries...)
		patterns = append(DefaultPatterns(), patterns...)
	}
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	return NewLexicon(entries, patterns)
}
