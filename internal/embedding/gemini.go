package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultGeminiModel = "text-embedding-004"
	geminiBatchLimit   = 100
)

// GeminiEmbedder calls the Gemini embedding API. Vectors are L2-normalized
// so scores are comparable with the local model.
type GeminiEmbedder struct {
	client  *genai.Client
	model   *genai.EmbeddingModel
	name    string
	dim     atomic.Int64
	timeout time.Duration
}

func NewGemini(ctx context.Context, s Settings) (*GeminiEmbedder, error) {
	key := strings.TrimSpace(s.GeminiAPIKey)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	if key == "" {
		return nil, errors.New("gemini api key is empty")
	}
	name := s.GeminiModel
	if name == "" {
		name = defaultGeminiModel
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	m := cl.EmbeddingModel(name)
	m.TaskType = genai.TaskTypeSemanticSimilarity

	s.logger().Info("embedding backend ready", "backend", BackendGemini, "model", name)
	g := &GeminiEmbedder{
		client:  cl,
		model:   m,
		name:    "gemini:" + name,
		timeout: s.Timeout,
	}
	g.dim.Store(int64(s.Dimension))
	return g, nil
}

func (g *GeminiEmbedder) Name() string { return g.name }

// Dimension is known only after the first call unless configured.
func (g *GeminiEmbedder) Dimension() int { return int(g.dim.Load()) }

func (g *GeminiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	for _, r := range chunks(len(texts), geminiBatchLimit) {
		b := g.model.NewBatch()
		for _, t := range texts[r[0]:r[1]] {
			// The API rejects empty parts.
			if t == "" {
				t = " "
			}
			b.AddContent(genai.Text(t))
		}
		res, err := g.model.BatchEmbedContents(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("gemini embed: %w", err)
		}
		if len(res.Embeddings) != r[1]-r[0] {
			return nil, fmt.Errorf("gemini embed: got %d embeddings for %d texts", len(res.Embeddings), r[1]-r[0])
		}
		for _, e := range res.Embeddings {
			if e == nil {
				return nil, errors.New("gemini embed: empty embedding")
			}
			out = append(out, l2Normalize(append([]float32(nil), e.Values...)))
		}
	}
	if len(out) > 0 {
		g.dim.CompareAndSwap(0, int64(len(out[0])))
	}
	return out, nil
}

func (g *GeminiEmbedder) Close() error {
	return g.client.Close()
}
