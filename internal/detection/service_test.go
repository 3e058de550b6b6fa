package detection

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/placeholder/internal/events"
	"github.com/straja-ai/placeholder/internal/placeholder"
)

type wordEmbedder struct {
	fail  atomic.Bool
	calls atomic.Int64
}

func (w *wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	w.calls.Add(1)
	if w.fail.Load() {
		return nil, errors.New("model down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 64)
		for _, f := range strings.Fields(strings.ToLower(t)) {
			v[xxhash.Sum64String(f)%64]++
		}
		out[i] = v
	}
	return out, nil
}

func (w *wordEmbedder) Name() string   { return "words" }
func (w *wordEmbedder) Dimension() int { return 64 }
func (w *wordEmbedder) Close() error   { return nil }

type captureSink struct {
	mu     sync.Mutex
	events []*events.Event
}

func (c *captureSink) Name() string { return "capture" }
func (c *captureSink) Deliver(_ context.Context, ev *events.Event) error {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	return nil
}
func (c *captureSink) Close(context.Context) error { return nil }

func (c *captureSink) all() []*events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*events.Event(nil), c.events...)
}

func newService(t *testing.T, emb *wordEmbedder) (*Service, *events.Emitter, *captureSink) {
	t.Helper()
	sink := &captureSink{}
	em := events.NewEmitter(events.EmitterConfig{QueueSize: 16}, []events.Sink{sink})
	deps := Deps{Lexicon: placeholder.DefaultLexicon(), Events: em}
	if emb != nil {
		deps.Embedder = emb
	}
	svc, err := New(context.Background(), deps)
	require.NoError(t, err)
	return svc, em, sink
}

func TestDetectExactMatchEmitsEvent(t *testing.T) {
	svc, em, sink := newService(t, &wordEmbedder{})

	v, err := svc.Detect(context.Background(), Request{
		RequestID: "req-1",
		Source:    events.SourceHTTP,
		Candidates: []placeholder.Candidate{
			{Text: "Welcome to our site", Index: 0},
			{Text: "CLEANING SERVICE", Index: 1},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, placeholder.MethodExact, v.DetectionMethod)
	assert.Equal(t, 1, v.Index)

	em.Close(context.Background())
	evs := sink.all()
	require.Len(t, evs, 1)
	assert.Equal(t, events.OutcomeMatch, evs[0].Outcome)
	assert.Equal(t, "req-1", evs[0].RequestID)
	assert.Equal(t, 2, evs[0].Candidates)
	assert.Equal(t, svc.Lexicon().Fingerprint(), evs[0].LexiconVersion)
}

func TestDetectNoMatchAndError(t *testing.T) {
	emb := &wordEmbedder{}
	svc, em, sink := newService(t, emb)
	ctx := context.Background()

	v, err := svc.Detect(ctx, Request{RequestID: "r1", Candidates: []placeholder.Candidate{{Text: "Acme Corporation", Index: 0}}})
	require.NoError(t, err)
	assert.Nil(t, v)

	emb.fail.Store(true)
	_, err = svc.Detect(ctx, Request{RequestID: "r2", Candidates: []placeholder.Candidate{{Text: "Acme Corporation", Index: 0}}})
	require.ErrorIs(t, err, placeholder.ErrEmbedding)

	svc.RejectInvalid(ctx, "r3", events.SourceHTTP, "text_json must be a list")

	em.Close(ctx)
	evs := sink.all()
	require.Len(t, evs, 3)
	outcomes := []events.Outcome{evs[0].Outcome, evs[1].Outcome, evs[2].Outcome}
	assert.ElementsMatch(t, []events.Outcome{events.OutcomeNoMatch, events.OutcomeError, events.OutcomeInvalidInput}, outcomes)
}

func TestDetectUsesRequestOptions(t *testing.T) {
	svc, _, _ := newService(t, &wordEmbedder{})
	bad := placeholder.DefaultOptions()
	bad.Threshold = 2

	v, err := svc.Detect(context.Background(), Request{
		Candidates: []placeholder.Candidate{{Text: "[Company Name]", Index: 3}},
		Options:    &bad,
	})
	require.NoError(t, err)
	require.NotNil(t, v, "exact matches ignore the threshold")
	assert.Equal(t, 0.95, v.Similarity)
}

func TestWithoutEmbedderOnlyExactMatches(t *testing.T) {
	svc, _, _ := newService(t, nil)

	v, err := svc.Detect(context.Background(), Request{Candidates: []placeholder.Candidate{{Text: "YOUR COMPANY", Index: 0}}})
	require.NoError(t, err)
	require.NotNil(t, v)

	_, err = svc.Detect(context.Background(), Request{Candidates: []placeholder.Candidate{{Text: "Acme", Index: 0}}})
	require.ErrorIs(t, err, placeholder.ErrNoEmbedder)
	assert.Equal(t, "none", svc.Info().Embedder)
}

func TestNewRequiresLexicon(t *testing.T) {
	_, err := New(context.Background(), Deps{})
	require.Error(t, err)
}

func TestReloadSwapsLexicon(t *testing.T) {
	emb := &wordEmbedder{}
	svc, _, _ := newService(t, emb)
	before := svc.Info()
	assert.Equal(t, 74, before.LexiconEntries)

	lex, err := placeholder.NewLexicon([]string{"TEAM NAME"}, placeholder.DefaultPatterns())
	require.NoError(t, err)
	require.NoError(t, svc.Reload(context.Background(), lex))

	after := svc.Info()
	assert.Equal(t, 1, after.LexiconEntries)
	assert.Equal(t, int64(1), after.Reloads)
	assert.NotEqual(t, before.Fingerprint, after.Fingerprint)
	assert.Equal(t, "words", after.Embedder)

	v, err := svc.Detect(context.Background(), Request{Candidates: []placeholder.Candidate{{Text: "team name", Index: 0}}})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, placeholder.MethodExact, v.DetectionMethod)

	emb.fail.Store(true)
	require.Error(t, svc.Reload(context.Background(), placeholder.DefaultLexicon()))
	assert.Equal(t, after.Fingerprint, svc.Info().Fingerprint, "failed reload keeps the active lexicon")
}

func TestWatchLexiconReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entries: [\"TEAM NAME\"]\n"), 0o644))

	lex, err := placeholder.LoadLexiconFile(path)
	require.NoError(t, err)
	svc, err := New(context.Background(), Deps{Lexicon: lex, Embedder: &wordEmbedder{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.WatchLexicon(ctx, path))

	require.NoError(t, os.WriteFile(path, []byte("entries: [\"TEAM NAME\", \"SQUAD NAME\"]\n"), 0o644))

	require.Eventually(t, func() bool {
		return svc.Info().LexiconEntries == 2
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("entries: [[[\n"), 0o644))
	time.Sleep(3 * watchDebounce)
	assert.Equal(t, 2, svc.Info().LexiconEntries, "broken file keeps the active lexicon")
}
