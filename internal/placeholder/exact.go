package placeholder

const (
	exactScore      = 1.0
	structuralScore = 0.95
)

// ExactMatch checks text against the lexicon. Equality of the normalized
// form scores 1.0; a structural pattern hit on the raw text scores 0.95.
func ExactMatch(lex *Lexicon, text string) (bool, float64) {
	if lex == nil {
		return false, 0
	}
	if n := Normalize(text); n != "" && lex.Contains(n) {
		return true, exactScore
	}
	for _, re := range lex.patterns {
		if re.MatchString(text) {
			return true, structuralScore
		}
	}
	return false, 0
}
