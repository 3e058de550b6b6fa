package placeholder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

const DefaultThreshold = 0.75

var ErrNoEmbedder = errors.New("placeholder: detector has no semantic matcher")

// Weights scale the three scored signals. They need not sum to 1.
type Weights struct {
	Semantic float64 `json:"semantic_weight" yaml:"semantic"`
	Fuzzy    float64 `json:"fuzzy_weight" yaml:"fuzzy"`
	Format   float64 `json:"format_weight" yaml:"format"`
}

// Options tune one Detect call.
type Options struct {
	Threshold float64
	Weights   Weights
}

func DefaultWeights() Weights {
	return Weights{Semantic: 0.4, Fuzzy: 0.3, Format: 0.3}
}

func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, Weights: DefaultWeights()}
}

// Validate rejects non-finite values.
func (o Options) Validate() error {
	for name, v := range map[string]float64{
		"threshold":       o.Threshold,
		"semantic_weight": o.Weights.Semantic,
		"fuzzy_weight":    o.Weights.Fuzzy,
		"format_weight":   o.Weights.Format,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite number", name)
		}
	}
	return nil
}

// Combine is the weighted sum of the three signals.
func (w Weights) Combine(semantic, fuzzy, format float64) float64 {
	return w.Semantic*semantic + w.Fuzzy*fuzzy + w.Format*format
}

// ScoreFunc scores a single text in [0,1].
type ScoreFunc func(text string) float64

// Detector picks the most likely placeholder out of a candidate list. It
// holds only read-only state and may be shared between goroutines.
type Detector struct {
	lex      *Lexicon
	semantic *SemanticMatcher
	fuzzy    ScoreFunc
	format   ScoreFunc
	logger   *slog.Logger
}

type DetectorOption func(*Detector)

// WithLogger sets the logger used for debug traces of scoring.
func WithLogger(l *slog.Logger) DetectorOption {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

func NewDetector(lex *Lexicon, semantic *SemanticMatcher, opts ...DetectorOption) *Detector {
	d := &Detector{
		lex:      lex,
		semantic: semantic,
		fuzzy:    func(t string) float64 { return FuzzyScore(lex, t) },
		format:   FormatScore,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Detector) Lexicon() *Lexicon { return d.lex }

type scored struct {
	Candidate
	semantic, fuzzy, format, combined float64
}

// Detect returns the best placeholder among candidates, or nil when none
// clears opts.Threshold. The first candidate in input order that matches
// the lexicon or a structural pattern wins outright.
func (d *Detector) Detect(ctx context.Context, candidates []Candidate, opts Options) (*Verdict, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	survivors := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		text := strings.TrimFunc(c.Text, isSpace)
		if text == "" {
			continue
		}
		// Lexicon entries such as "NAME OF COMPANY" contain function words
		// the filter rejects; they still have to reach the exact matcher.
		if !IsStandalone(text) && !d.lex.Contains(Normalize(text)) {
			continue
		}
		survivors = append(survivors, Candidate{Text: text, Index: c.Index})
	}
	if len(survivors) == 0 {
		return nil, nil
	}

	for _, c := range survivors {
		if ok, score := ExactMatch(d.lex, c.Text); ok {
			return &Verdict{
				CompanyName:     c.Text,
				Index:           c.Index,
				Similarity:      score,
				Confidence:      ConfidenceVeryHigh,
				DetectionMethod: MethodExact,
			}, nil
		}
	}

	if d.semantic == nil {
		return nil, ErrNoEmbedder
	}
	texts := make([]string, len(survivors))
	for i, c := range survivors {
		texts[i] = c.Text
	}
	semantic, err := d.semantic.Scores(ctx, texts)
	if err != nil {
		return nil, err
	}

	var best *scored
	for i, c := range survivors {
		s := scored{
			Candidate: c,
			semantic:  semantic[i],
			fuzzy:     d.fuzzy(c.Text),
			format:    d.format(c.Text),
		}
		s.combined = opts.Weights.Combine(s.semantic, s.fuzzy, s.format)
		if best == nil || s.combined > best.combined {
			best = &s
		}
	}
	d.logger.Debug("placeholder candidates scored",
		"candidates", len(survivors),
		"best_index", best.Index,
		"best_score", round4(best.combined),
	)

	if best.combined < opts.Threshold {
		return nil, nil
	}
	return &Verdict{
		CompanyName:     best.Text,
		Index:           best.Index,
		Similarity:      round4(best.combined),
		Confidence:      ConfidenceFor(best.combined),
		DetectionMethod: MethodMultiFactor,
		ScoreBreakdown: &ScoreBreakdown{
			Semantic: round4(best.semantic),
			Fuzzy:    round4(best.fuzzy),
			Format:   round4(best.format),
		},
	}, nil
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
