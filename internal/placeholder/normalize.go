package placeholder

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize canonicalizes text for lexicon, fuzzy and semantic comparison:
// trim, lower-case, collapse whitespace runs to one space, then drop every
// character that is not a word character, whitespace or one of ()[]{}<>_.*-
//
// Characters are dropped after whitespace is collapsed, so "a , b" becomes
// "a  b". Lexicon entries go through the same function, so comparisons stay
// consistent.
func Normalize(text string) string {
	text = strings.TrimFunc(text, isSpace)
	if text == "" {
		return ""
	}
	text = cases.Lower(language.Und).String(text)

	var b strings.Builder
	b.Grow(len(text))
	inSpace := false
	for _, r := range text {
		if isSpace(r) {
			if !inSpace {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		if keepRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// words splits normalized text on whitespace.
func words(normalized string) []string {
	return strings.FieldsFunc(normalized, isSpace)
}

func keepRune(r rune) bool {
	if isWordRune(r) {
		return true
	}
	switch r {
	case '(', ')', '[', ']', '{', '}', '<', '>', '_', '.', '*', '-':
		return true
	}
	return false
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// isSpace also treats the ASCII file/group/record/unit separators as space.
func isSpace(r rune) bool {
	if r >= 0x1c && r <= 0x1f {
		return true
	}
	return unicode.IsSpace(r)
}
