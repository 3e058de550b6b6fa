package placeholder

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	ErrEmbedding      = errors.New("placeholder: embedding failed")
	ErrEmbeddingShape = errors.New("placeholder: embedding shape mismatch")
)

// Embedder maps texts to vectors in one shared space. Implementations must
// return one vector per input, in input order, and be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SemanticMatcher scores texts by their closest lexicon entry in embedding
// space. The lexicon table is computed once at construction.
type SemanticMatcher struct {
	emb   Embedder
	table [][]float32
	norms []float64
	dim   int
}

func NewSemanticMatcher(ctx context.Context, lex *Lexicon, emb Embedder) (*SemanticMatcher, error) {
	if lex == nil || emb == nil {
		return nil, errors.New("placeholder: semantic matcher needs a lexicon and an embedder")
	}
	table, err := embed(ctx, emb, lex.normalized)
	if err != nil {
		return nil, fmt.Errorf("embed lexicon: %w", err)
	}
	dim := len(table[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length lexicon vectors", ErrEmbeddingShape)
	}
	norms := make([]float64, len(table))
	for i, v := range table {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: lexicon vector %d has %d dims, want %d", ErrEmbeddingShape, i, len(v), dim)
		}
		norms[i] = l2(v)
	}
	return &SemanticMatcher{emb: emb, table: table, norms: norms, dim: dim}, nil
}

// Dimension reports the embedding width.
func (m *SemanticMatcher) Dimension() int { return m.dim }

// Scores returns, for each text, the maximum cosine similarity against the
// lexicon table. All texts are embedded in one call. If every text is empty
// after normalization the embedder is not called.
func (m *SemanticMatcher) Scores(ctx context.Context, texts []string) ([]float64, error) {
	scores := make([]float64, len(texts))
	normalized := make([]string, len(texts))
	hasText := false
	for i, t := range texts {
		normalized[i] = Normalize(t)
		if normalized[i] != "" {
			hasText = true
		}
	}
	if !hasText {
		return scores, nil
	}

	vecs, err := embed(ctx, m.emb, normalized)
	if err != nil {
		return nil, err
	}
	for i, v := range vecs {
		if len(v) != m.dim {
			return nil, fmt.Errorf("%w: vector %d has %d dims, want %d", ErrEmbeddingShape, i, len(v), m.dim)
		}
		scores[i] = m.best(v)
	}
	return scores, nil
}

func (m *SemanticMatcher) best(v []float32) float64 {
	nv := l2(v)
	if nv == 0 {
		return 0
	}
	best := math.Inf(-1)
	for i, row := range m.table {
		if m.norms[i] == 0 {
			continue
		}
		var dot float64
		for j := range row {
			dot += float64(row[j]) * float64(v[j])
		}
		if c := dot / (nv * m.norms[i]); c > best {
			best = c
		}
	}
	if math.IsInf(best, -1) {
		return 0
	}
	return best
}

func embed(ctx context.Context, emb Embedder, texts []string) ([][]float32, error) {
	vecs, err := emb.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbeddingShape, len(vecs), len(texts))
	}
	return vecs, nil
}

func l2(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}
