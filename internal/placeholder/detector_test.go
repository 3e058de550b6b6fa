package placeholder

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDetector(t *testing.T) (*Detector, *hashEmbedder) {
	t.Helper()
	lex := DefaultLexicon()
	emb := newHashEmbedder()
	sm, err := NewSemanticMatcher(context.Background(), lex, emb)
	require.NoError(t, err)
	emb.calls.Store(0)
	emb.texts.Store(0)
	return NewDetector(lex, sm), emb
}

func TestDetectCleaningServiceExample(t *testing.T) {
	d, emb := newTestDetector(t)
	v, err := d.Detect(context.Background(), []Candidate{
		{Text: "We provide the best cleaning services in town.", Index: 0},
		{Text: "CLEANING SERVICE", Index: 1},
	}, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, &Verdict{
		CompanyName:     "CLEANING SERVICE",
		Index:           1,
		Similarity:      1.0,
		Confidence:      ConfidenceVeryHigh,
		DetectionMethod: MethodExact,
	}, v)
	assert.Zero(t, emb.calls.Load())
}

func TestDetectEveryLexiconEntryIsExact(t *testing.T) {
	d, _ := newTestDetector(t)
	odd := Options{Threshold: 5, Weights: Weights{}}
	for _, entry := range DefaultEntries() {
		for _, opts := range []Options{DefaultOptions(), odd} {
			v, err := d.Detect(context.Background(), []Candidate{{Text: entry, Index: 3}}, opts)
			require.NoError(t, err, entry)
			require.NotNil(t, v, entry)
			assert.Equal(t, MethodExact, v.DetectionMethod, entry)
			assert.Equal(t, 1.0, v.Similarity, entry)
			assert.Equal(t, 3, v.Index, entry)
			assert.Nil(t, v.ScoreBreakdown, entry)
		}
	}
}

func TestDetectStructuralPattern(t *testing.T) {
	d, _ := newTestDetector(t)
	v, err := d.Detect(context.Background(), []Candidate{{Text: "[Company Name]", Index: 0}}, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, MethodExact, v.DetectionMethod)
	assert.Equal(t, 0.95, v.Similarity)
	assert.Equal(t, ConfidenceVeryHigh, v.Confidence)
}

func TestDetectFirstExactMatchWins(t *testing.T) {
	d, _ := newTestDetector(t)
	v, err := d.Detect(context.Background(), []Candidate{
		{Text: "Acme", Index: 10},
		{Text: "[Brand Name]", Index: 11},
		{Text: "COMPANY NAME", Index: 12},
	}, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 11, v.Index)
	assert.Equal(t, 0.95, v.Similarity)
}

// "NAME OF COMPANY" fails the standalone filter ("of") but is a lexicon
// entry, so it is kept and, coming first, wins over "CLINIC NAME". A
// filter-first reading would pick index 1 instead.
func TestDetectLexiconEntryBypassesStandaloneFilter(t *testing.T) {
	require.False(t, IsStandalone("NAME OF COMPANY"))

	d, _ := newTestDetector(t)
	v, err := d.Detect(context.Background(), []Candidate{
		{Text: "NAME OF COMPANY", Index: 0},
		{Text: "CLINIC NAME", Index: 1},
	}, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 0, v.Index)
	assert.Equal(t, "NAME OF COMPANY", v.CompanyName)
	assert.Equal(t, MethodExact, v.DetectionMethod)

	v, err = d.Detect(context.Background(), []Candidate{
		{Text: "CLINIC NAME", Index: 1},
		{Text: "NAME OF COMPANY", Index: 0},
	}, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 1, v.Index)
}

func TestDetectTrimsCandidateText(t *testing.T) {
	d, _ := newTestDetector(t)
	v, err := d.Detect(context.Background(), []Candidate{{Text: "  YOUR BRAND \n", Index: 0}}, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "YOUR BRAND", v.CompanyName)
}

func TestDetectRealNameIsNil(t *testing.T) {
	d, _ := newTestDetector(t)
	for _, text := range []string{"Acme Robotics Inc.", "Acme Robotics"} {
		v, err := d.Detect(context.Background(), []Candidate{{Text: text, Index: 0}}, DefaultOptions())
		require.NoError(t, err)
		assert.Nil(t, v, text)
	}
}

func TestDetectEmptyInputSkipsEmbedder(t *testing.T) {
	d, emb := newTestDetector(t)
	inputs := [][]Candidate{
		nil,
		{},
		{{Text: ""}, {Text: "   "}, {Text: "\t\n"}},
	}
	for _, in := range inputs {
		v, err := d.Detect(context.Background(), in, DefaultOptions())
		require.NoError(t, err)
		assert.Nil(t, v)
	}
	assert.Zero(t, emb.calls.Load())
}

func TestDetectMultiFactor(t *testing.T) {
	d, emb := newTestDetector(t)
	opts := DefaultOptions()
	opts.Threshold = 0.5

	v, err := d.Detect(context.Background(), []Candidate{
		{Text: "Acme Robotics", Index: 0},
		{Text: "COMPANY NAMES", Index: 7},
	}, opts)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, int64(1), emb.calls.Load(), "one batched embedding call")
	assert.Equal(t, int64(2), emb.texts.Load())

	assert.Equal(t, MethodMultiFactor, v.DetectionMethod)
	assert.Equal(t, 7, v.Index)
	assert.Equal(t, "COMPANY NAMES", v.CompanyName)
	require.NotNil(t, v.ScoreBreakdown)
	assert.InDelta(t, 0.96, v.ScoreBreakdown.Fuzzy, 1e-9)
	assert.InDelta(t, 0.5, v.ScoreBreakdown.Format, 1e-9)

	sem, err := d.semantic.Scores(context.Background(), []string{"COMPANY NAMES"})
	require.NoError(t, err)
	want := opts.Weights.Combine(sem[0], 0.96, 0.5)
	assert.Equal(t, round4(want), v.Similarity)
	assert.Equal(t, ConfidenceFor(want), v.Confidence)
	assert.Equal(t, round4(sem[0]), v.ScoreBreakdown.Semantic)
}

func TestDetectTieKeepsFirst(t *testing.T) {
	d, _ := newTestDetector(t)
	v, err := d.Detect(context.Background(), []Candidate{
		{Text: "BRAND NAMES", Index: 4},
		{Text: "BRAND NAMES", Index: 9},
	}, Options{Threshold: 0, Weights: DefaultWeights()})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 4, v.Index)
}

func TestDetectZeroWeightsGiveLowTier(t *testing.T) {
	d, _ := newTestDetector(t)
	v, err := d.Detect(context.Background(), []Candidate{{Text: "BRAND NAMES", Index: 0}}, Options{Threshold: 0})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Zero(t, v.Similarity)
	assert.Equal(t, ConfidenceLow, v.Confidence)
}

func TestDetectThresholdMonotonic(t *testing.T) {
	d, _ := newTestDetector(t)
	cands := []Candidate{{Text: "COMPANY NAMES"}, {Text: "Acme Robotics", Index: 1}}
	sawNil := false
	for _, th := range []float64{0, 0.2, 0.4, 0.5, 0.6, 0.7, 0.75, 0.8, 0.9, 1, 1.5} {
		opts := DefaultOptions()
		opts.Threshold = th
		v, err := d.Detect(context.Background(), cands, opts)
		require.NoError(t, err)
		if sawNil {
			assert.Nil(t, v, "threshold %v", th)
		}
		if v == nil {
			sawNil = true
		}
	}
	assert.True(t, sawNil)
}

func TestWeightsCombineMonotonic(t *testing.T) {
	sem, fz, ft := 0.6, 0.8, 0.5
	base := DefaultWeights()
	for _, bump := range []func(*Weights){
		func(w *Weights) { w.Semantic += 0.1 },
		func(w *Weights) { w.Fuzzy += 0.1 },
		func(w *Weights) { w.Format += 0.1 },
	} {
		w := base
		bump(&w)
		assert.GreaterOrEqual(t, w.Combine(sem, fz, ft), base.Combine(sem, fz, ft))
	}
	assert.Equal(t, 0.0, Weights{}.Combine(sem, fz, ft))
	assert.Equal(t, fz, Weights{Fuzzy: 1}.Combine(sem, fz, ft))
}

func TestDetectEmbeddingFailure(t *testing.T) {
	d, emb := newTestDetector(t)
	emb.fail = errModelDown
	_, err := d.Detect(context.Background(), []Candidate{{Text: "BRAND NAMES"}}, DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmbedding))
	assert.True(t, errors.Is(err, errModelDown))
}

func TestDetectRejectsNonFiniteOptions(t *testing.T) {
	d, _ := newTestDetector(t)
	opts := DefaultOptions()
	opts.Weights.Fuzzy = math.Inf(1)
	_, err := d.Detect(context.Background(), []Candidate{{Text: "BRAND NAMES"}}, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fuzzy_weight")
}

func TestDetectWithoutSemanticMatcher(t *testing.T) {
	d := NewDetector(DefaultLexicon(), nil)

	v, err := d.Detect(context.Background(), []Candidate{{Text: "COMPANY NAME"}}, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, v)

	_, err = d.Detect(context.Background(), []Candidate{{Text: "BRAND NAMES"}}, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoEmbedder)
}
