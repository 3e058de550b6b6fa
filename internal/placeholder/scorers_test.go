package placeholder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExactMatch(t *testing.T) {
	lex := DefaultLexicon()
	cases := []struct {
		text  string
		ok    bool
		score float64
	}{
		{"CLEANING SERVICE", true, 1.0},
		{"  your   company ", true, 1.0},
		{"Company/Organization Name", true, 1.0},
		{"[Company Name]", true, 0.95},
		{"{brand}", true, 0.95},
		{"(Your Business)", true, 0.95},
		{"<organization>", true, 0.95},
		{"___ company ___", true, 0.95},
		{"... business", true, 0.95},
		{"name...", true, 0.95},
		{"_Brand_", true, 0.95},
		{"**COMPANY**", true, 0.95},
		{"[Acme]", false, 0},
		{"Acme Robotics", false, 0},
		{"", false, 0},
	}
	for _, tc := range cases {
		ok, score := ExactMatch(lex, tc.text)
		assert.Equal(t, tc.ok, ok, "ExactMatch(%q)", tc.text)
		assert.Equal(t, tc.score, score, "ExactMatch(%q) score", tc.text)
	}
}

func TestExactMatchNilLexicon(t *testing.T) {
	ok, score := ExactMatch(nil, "COMPANY NAME")
	assert.False(t, ok)
	assert.Zero(t, score)
}

func TestFuzzyScore(t *testing.T) {
	lex := DefaultLexicon()

	assert.Equal(t, 1.0, FuzzyScore(lex, "Company Name"))
	assert.Zero(t, FuzzyScore(lex, ""))
	assert.Zero(t, FuzzyScore(lex, "  !!  "))
	assert.Zero(t, FuzzyScore(nil, "Company Name"))

	// "company names" against "company name": 2*12/25.
	assert.InDelta(t, 0.96, FuzzyScore(lex, "COMPANY NAMES"), 1e-9)

	// Word order does not matter for the set overlap.
	assert.Equal(t, 1.0, FuzzyScore(lex, "name company"))

	acme := FuzzyScore(lex, "Acme Robotics")
	assert.Greater(t, acme, 0.0)
	assert.Less(t, acme, 0.75)
}

func TestFuzzyScoreIgnoresRepeatedWords(t *testing.T) {
	lex, err := NewLexicon([]string{"brand name"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, FuzzyScore(lex, "brand brand name"))
}

func TestFuzzyScoreJaccardIsFloat64(t *testing.T) {
	assert.Equal(t, 1.0/3.0, jaccard(wordSet("a b"), wordSet("b c")))
	assert.Zero(t, jaccard(wordSet(""), wordSet("b c")))

	// The sequence ratio is 0.2 here, so the word overlap of 1/3 wins and
	// must come through without float32 rounding.
	lex, err := NewLexicon([]string{"xx yy"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, 1.0/3.0, FuzzyScore(lex, "yy qqqqqqqqqqqq"))
}

func TestFormatScore(t *testing.T) {
	cases := []struct {
		text string
		want float64
	}{
		{"", 0},
		{"Acme", 0},
		{"ACME", 0.3},
		{"1234", 0},
		{"(acme)", 0.4},
		{"acme__", 0.3},
		{"acme._", 0.3},
		{"acme.", 0},
		{"our salon", 0.2},
		{"your company name brand", 0.2},
		{"YOUR COMPANY", 0.5},
		{"[COMPANY NAME]", 0.9},
		{"[COMPANY NAME] ___", 1.0},
		{"ACME ...", 0.6},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, FormatScore(tc.text), 1e-9, "FormatScore(%q)", tc.text)
	}
}

func TestIsUpper(t *testing.T) {
	assert.True(t, isUpper("ABC 123"))
	assert.True(t, isUpper("ÉCOLE"))
	assert.False(t, isUpper("123"))
	assert.False(t, isUpper("ABc"))
	assert.False(t, isUpper(""))
}

func TestConfidenceFor(t *testing.T) {
	cases := []struct {
		score float64
		want  Confidence
	}{
		{1.0, ConfidenceVeryHigh},
		{0.9, ConfidenceVeryHigh},
		{0.8999, ConfidenceHigh},
		{0.8, ConfidenceHigh},
		{0.75, ConfidenceMedium},
		{0.7499, ConfidenceLow},
		{0, ConfidenceLow},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ConfidenceFor(tc.score), "ConfidenceFor(%v)", tc.score)
	}
}
