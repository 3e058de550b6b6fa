package placeholder

// Candidate is one fragment of extracted text and its position in the source.
type Candidate struct {
	Text  string `json:"text"`
	Index int    `json:"index"`
}

type Confidence string

const (
	ConfidenceVeryHigh Confidence = "VERY_HIGH"
	ConfidenceHigh     Confidence = "HIGH"
	ConfidenceMedium   Confidence = "MEDIUM"
	ConfidenceLow      Confidence = "LOW"
)

type Method string

const (
	MethodExact       Method = "EXACT_PATTERN_MATCH"
	MethodMultiFactor Method = "MULTI_FACTOR_ANALYSIS"
)

// ScoreBreakdown holds the per-signal scores behind a multi-factor verdict.
type ScoreBreakdown struct {
	Semantic float64 `json:"semantic"`
	Fuzzy    float64 `json:"fuzzy"`
	Format   float64 `json:"format"`
}

// Verdict is the single best placeholder found in a candidate list.
type Verdict struct {
	CompanyName     string          `json:"company_name"`
	Index           int             `json:"index"`
	Similarity      float64         `json:"similarity"`
	Confidence      Confidence      `json:"confidence"`
	DetectionMethod Method          `json:"detection_method"`
	ScoreBreakdown  *ScoreBreakdown `json:"score_breakdown,omitempty"`
}

// ConfidenceFor buckets a score into a confidence tier.
func ConfidenceFor(score float64) Confidence {
	switch {
	case score >= 0.9:
		return ConfidenceVeryHigh
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.75:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
