package placeholder

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	bracketChars = regexp.MustCompile(`[\[\](){}<>]`)
	fillerRun    = regexp.MustCompile(`[_.]{2,}`)
)

var formatKeywords = []string{
	"company", "business", "organization", "brand", "name",
	"your", "insert", "add", "enter", "classes", "salon", "service",
}

// FormatScore rates typographic cues that templates tend to carry.
func FormatScore(text string) float64 {
	score := 0.0
	if isUpper(text) {
		score += 0.3
	}
	if bracketChars.MatchString(text) {
		score += 0.4
	}
	if fillerRun.MatchString(text) {
		score += 0.3
	}
	lower := strings.ToLower(text)
	for _, kw := range formatKeywords {
		if strings.Contains(lower, kw) {
			score += 0.2
			break
		}
	}
	return min(score, 1.0)
}

// isUpper is true when text has at least one cased letter and none of them
// are lower case.
func isUpper(text string) bool {
	cased := false
	for _, r := range text {
		switch {
		case unicode.IsLower(r), unicode.IsTitle(r):
			return false
		case unicode.IsUpper(r):
			cased = true
		}
	}
	return cased
}
