package placeholder

import (
	"regexp"
	"strings"
)

const maxStandaloneWords = 6

// sentenceIndicators are function words that never appear in a bare label.
var sentenceIndicators = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"our": {}, "their": {}, "his": {}, "her": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "must": {}, "can": {}, "may": {}, "might": {},
	"in": {}, "on": {}, "at": {}, "by": {}, "for": {}, "with": {}, "to": {}, "from": {}, "of": {}, "about": {},
}

// Unicode-aware stand-ins for \w and a leading \b.
const (
	wordClass = `[\p{L}\p{N}_]`
	wordStart = `(?:^|[^\p{L}\p{N}_])`
	wordEnd   = `(?:$|[^\p{L}\p{N}_])`
)

// The article and preposition shapes are anchored at a word start. Unanchored,
// "on" inside SALON, ORGANIZATION or UNION would reject those lexicon labels.
var sentenceShapes = []*regexp.Regexp{
	regexp.MustCompile(wordStart + `(?:the|a|an)\s+` + wordClass + `+`),
	regexp.MustCompile(wordClass + `+\s+(?:is|are|was|were|will|would)\s+`),
	regexp.MustCompile(wordClass + `+\s+(?:has|have|had)\s+`),
	regexp.MustCompile(wordStart + `(?:in|on|at|by|for|with|to|from)\s+` + wordClass + `+`),
}

var actionVerbs = []*regexp.Regexp{
	regexp.MustCompile(wordStart + `(?:provide|offer|deliver|create|make|build|develop|design|sell|buy)` + wordEnd),
	regexp.MustCompile(wordStart + `(?:specializes?|focuses?|operates?|manages?|handles?)` + wordEnd),
}

// IsStandalone reports whether text reads as a short label rather than a
// sentence or clause. It is the cheap gate every candidate passes before
// any scoring.
func IsStandalone(text string) bool {
	normalized := Normalize(text)
	ws := words(normalized)

	if len(ws) > maxStandaloneWords {
		return false
	}
	for _, w := range ws {
		if _, ok := sentenceIndicators[w]; ok {
			return false
		}
	}
	for _, re := range sentenceShapes {
		if re.MatchString(normalized) {
			return false
		}
	}

	if endsSentence(text) {
		return false
	}

	for _, re := range actionVerbs {
		if re.MatchString(normalized) {
			return false
		}
	}
	return true
}

func endsSentence(text string) bool {
	trimmed := strings.TrimFunc(text, isSpace)
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?', ';':
		return true
	}
	return false
}
