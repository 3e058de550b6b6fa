package placeholder

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// defaultEntries are template labels seen in real extracted documents.
var defaultEntries = []string{
	"YOUR COMPANY", "YOUR BRAND", "COMPANY NAME", "INDUSTRY NAME", "SOCCER CLUB", "BRAND NAME",
	"SCHOOL NAME", "SALON NAME", "THE CHURCH NAME", "Catering Service",
	"CHURCH NAME", "COLLEGE NAME", "ENTERPRISE NAME", "BOOK STORE", "SHOP NAME", "HVAC SERVICE", "CAFE NAME",
	"STORE FOUNDATION", "ANY ASSOCIATION", "ORGANISER NAME", "FARM NAME",
	"FOOD STALL", "PUBLICATION NAME", "WRITE COMPANY NAME", "UNIVERSITY NAME",
	"ORGANIZATION NAME", "FIRM NAME", "AGENCY NAME", "STUDIO NAME", "CLINIC NAME",
	"HOSPITAL NAME", "RESTAURANT NAME", "HOTEL NAME", "BANK NAME", "INSURANCE NAME", "CLEANING SERVICE",
	"COMPANY TITLE", "BRAND TITLE", "ORGANIZATION TITLE", "CLUB NAME", "YOUR CLUB NAME", "CLEANING CLASSES", "CLEANING CLASS",
	"BUSINESS NAME", "CORPORATION NAME", "ENTERPRISE TITLE", "ESTABLISHMENT NAME",
	"INSTITUTION NAME", "VENUE NAME", "SERVICE NAME", "CENTER NAME", "GROUP NAME",
	"ASSOCIATION NAME", "FOUNDATION NAME", "SOCIETY NAME", "UNION NAME", "LEAGUE NAME",
	"COOPERATIVE NAME", "PARTNERSHIP NAME", "LLC NAME", "INC NAME", "CORP NAME",
	"INSERT COMPANY NAME", "ADD COMPANY NAME", "ENTER COMPANY NAME",
	"COMPANY NAME HERE", "YOUR BUSINESS NAME", "BUSINESS NAME HERE",
	"ORGANIZATION NAME HERE", "BRAND NAME HERE", "NAME OF COMPANY",
	"NAME OF ORGANIZATION", "NAME OF BUSINESS", "COMPANY/ORGANIZATION NAME",
}

// defaultPatterns match delimiter-wrapped spans that carry a placeholder keyword.
var defaultPatterns = []string{
	`\[.*?(?:company|business|organization|brand|name).*?\]`,
	`\{.*?(?:company|business|organization|brand|name).*?\}`,
	`\(.*?(?:company|business|organization|brand|name).*?\)`,
	`<.*?(?:company|business|organization|brand|name).*?>`,
	`___+\s*(?:company|business|organization|brand|name).*?___+`,
	`\.\.\.+\s*(?:company|business|organization|brand|name)`,
	`(?:company|business|organization|brand|name)\s*\.\.\.+`,
	`_+(?:company|business|organization|brand|name)_+`,
	`\*+(?:company|business|organization|brand|name)\*+`,
}

// Lexicon is the set of known placeholder strings and structural patterns.
// It is immutable once built and safe to share between goroutines.
type Lexicon struct {
	entries     []string
	normalized  []string
	index       map[string]int
	patterns    []*regexp.Regexp
	fingerprint string
}

// DefaultLexicon returns the built-in lexicon.
func DefaultLexicon() *Lexicon {
	lex, err := NewLexicon(defaultEntries, defaultPatterns)
	if err != nil {
		panic(fmt.Sprintf("placeholder: built-in lexicon: %v", err))
	}
	return lex
}

// DefaultEntries returns a copy of the built-in placeholder strings.
func DefaultEntries() []string {
	return append([]string(nil), defaultEntries...)
}

// DefaultPatterns returns a copy of the built-in structural pattern sources.
func DefaultPatterns() []string {
	return append([]string(nil), defaultPatterns...)
}

// NewLexicon builds a lexicon. Patterns are compiled case-insensitively.
func NewLexicon(entries []string, patterns []string) (*Lexicon, error) {
	if len(entries) == 0 {
		return nil, errors.New("lexicon has no entries")
	}

	lex := &Lexicon{
		entries:    make([]string, 0, len(entries)),
		normalized: make([]string, 0, len(entries)),
		index:      make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		n := Normalize(e)
		if n == "" {
			return nil, fmt.Errorf("lexicon entry %q is empty after normalization", e)
		}
		lex.entries = append(lex.entries, e)
		lex.normalized = append(lex.normalized, n)
		if _, ok := lex.index[n]; !ok {
			lex.index[n] = len(lex.normalized) - 1
		}
	}

	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", p, err)
		}
		lex.patterns = append(lex.patterns, re)
	}

	lex.fingerprint = fingerprint(lex.normalized, patterns)
	return lex, nil
}

// Entries returns the lexicon strings in their original form.
func (l *Lexicon) Entries() []string {
	return append([]string(nil), l.entries...)
}

// Normalized returns the normalized entries. Index i matches Entries()[i].
func (l *Lexicon) Normalized() []string {
	return append([]string(nil), l.normalized...)
}

// Patterns returns the compiled structural patterns.
func (l *Lexicon) Patterns() []*regexp.Regexp {
	return append([]*regexp.Regexp(nil), l.patterns...)
}

// Len reports the number of entries.
func (l *Lexicon) Len() int { return len(l.entries) }

// Contains reports whether an already-normalized string is a lexicon entry.
func (l *Lexicon) Contains(normalized string) bool {
	_, ok := l.index[normalized]
	return ok
}

// Fingerprint identifies the lexicon content.
func (l *Lexicon) Fingerprint() string { return l.fingerprint }

func fingerprint(normalized []string, patterns []string) string {
	d := xxhash.New()
	for _, n := range normalized {
		_, _ = d.WriteString(n)
		_, _ = d.WriteString("\x00")
	}
	_, _ = d.WriteString("\x01")
	for _, p := range patterns {
		_, _ = d.WriteString(p)
		_, _ = d.WriteString("\x00")
	}
	return strconv.FormatUint(d.Sum64(), 16)
}
