package telemetry

import (
	"context"
	"time"

	"github.com/straja-ai/placeholder/internal/embedding"
)

// instrumentedEmbedder times every Embed call.
type instrumentedEmbedder struct {
	embedding.Embedder
	p *Provider
}

// InstrumentEmbedder wraps e so each call lands in
// placeholder_embedding_duration_ms and gets a child span.
func InstrumentEmbedder(e embedding.Embedder, p *Provider) embedding.Embedder {
	if e == nil || p == nil {
		return e
	}
	return &instrumentedEmbedder{Embedder: e, p: p}
}

func (e *instrumentedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := e.p.Tracer().Start(ctx, "placeholder.embed")
	defer span.End()

	start := time.Now()
	out, err := e.Embedder.Embed(ctx, texts)
	e.p.RecordEmbedding(ctx, e.Name(), float64(time.Since(start).Microseconds())/1000, err != nil)
	if err != nil {
		span.RecordError(err)
	}
	return out, err
}
