package placeholder

import "github.com/pmezard/go-difflib/difflib"

// FuzzyScore is the best of a character sequence ratio and a word-set
// Jaccard overlap, taken over every lexicon entry.
func FuzzyScore(lex *Lexicon, text string) float64 {
	normalized := Normalize(text)
	if normalized == "" || lex == nil {
		return 0
	}

	chars := splitRunes(normalized)
	textWords := wordSet(normalized)

	best := 0.0
	for _, entry := range lex.normalized {
		if r := difflib.NewMatcher(chars, splitRunes(entry)).Ratio(); r > best {
			best = r
		}
		if j := jaccard(textWords, wordSet(entry)); j > best {
			best = j
		}
		if best >= 1 {
			return 1
		}
	}
	return best
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// wordSet returns the distinct words of s.
func wordSet(s string) map[string]struct{} {
	ws := words(s)
	set := make(map[string]struct{}, len(ws))
	for _, w := range ws {
		set[w] = struct{}{}
	}
	return set
}

// jaccard is |a∩b| / |a∪b| in float64. Empty sets score 0.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for w := range a {
		if _, ok := b[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}
