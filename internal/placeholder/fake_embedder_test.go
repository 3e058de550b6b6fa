package placeholder

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// hashEmbedder is a bag-of-words embedder: each word bumps one hashed bucket.
type hashEmbedder struct {
	dim   int
	calls atomic.Int64
	texts atomic.Int64
	fail  error
	short bool
}

func newHashEmbedder() *hashEmbedder { return &hashEmbedder{dim: 512} }

func (h *hashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	h.calls.Add(1)
	h.texts.Add(int64(len(texts)))
	if h.fail != nil {
		return nil, h.fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, h.dim)
		for _, w := range words(t) {
			v[xxhash.Sum64String(w)%uint64(h.dim)]++
		}
		out[i] = v
	}
	if h.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

var errModelDown = errors.New("model down")
