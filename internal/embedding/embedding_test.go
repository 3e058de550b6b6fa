package embedding

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanPoolHonoursMask(t *testing.T) {
	hidden := []float32{
		1, 2,
		3, 4,
		100, 100,
	}
	got := meanPool(hidden, []int64{1, 1, 0}, 3, 2)
	assert.Equal(t, []float32{2, 3}, got)

	assert.Equal(t, []float32{0, 0}, meanPool(hidden, []int64{0, 0, 0}, 3, 2))
}

func TestL2Normalize(t *testing.T) {
	v := l2Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	var sum float64
	for _, x := range l2Normalize([]float32{1, 2, 3, 4}) {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)

	assert.Equal(t, []float32{0, 0}, l2Normalize([]float32{0, 0}))
}

func TestChunks(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 2}, {2, 4}, {4, 5}}, chunks(5, 2))
	assert.Equal(t, [][2]int{{0, 3}}, chunks(3, 0))
	assert.Nil(t, chunks(0, 4))
}

func TestResolveModelPath(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, resolveModelPath(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.onnx"), []byte("x"), 0o600))
	assert.Equal(t, filepath.Join(dir, "model.onnx"), resolveModelPath(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.int8.onnx"), []byte("x"), 0o600))
	assert.Equal(t, filepath.Join(dir, "model.int8.onnx"), resolveModelPath(dir))
}

func TestResolveSharedLibraryPathEnv(t *testing.T) {
	t.Setenv("ONNXRUNTIME_SHARED_LIBRARY_PATH", "/custom/libonnxruntime.so")
	assert.Equal(t, "/custom/libonnxruntime.so", resolveSharedLibraryPath(t.TempDir()))
}

func TestResolveSharedLibraryPathModelDir(t *testing.T) {
	t.Setenv("ONNXRUNTIME_SHARED_LIBRARY_PATH", "")
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib", "libonnxruntime.so")
	require.NoError(t, os.MkdirAll(filepath.Dir(lib), 0o755))
	require.NoError(t, os.WriteFile(lib, []byte("x"), 0o600))
	assert.Equal(t, lib, resolveSharedLibraryPath(dir))
}

func TestHiddenSizeFromConfig(t *testing.T) {
	dir := t.TempDir()
	assert.Zero(t, hiddenSizeFromConfig(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"hidden_size": 384}`), 0o600))
	assert.Equal(t, 384, hiddenSizeFromConfig(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"dim": 768}`), 0o600))
	assert.Equal(t, 768, hiddenSizeFromConfig(dir))
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(context.Background(), Settings{Backend: "word2vec"})
	assert.ErrorContains(t, err, "unknown embedding backend")

	_, err = Open(context.Background(), Settings{Backend: BackendONNX})
	assert.ErrorContains(t, err, "model dir is empty")

	_, err = Open(context.Background(), Settings{Backend: BackendONNX, ModelDir: t.TempDir()})
	assert.ErrorContains(t, err, "model.onnx not found")

	t.Setenv("GEMINI_API_KEY", "")
	_, err = Open(context.Background(), Settings{Backend: BackendGemini})
	assert.ErrorContains(t, err, "api key")
}

type stubEmbedder struct{ err error }

func (s stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}
func (stubEmbedder) Name() string   { return "stub" }
func (stubEmbedder) Dimension() int { return 1 }
func (stubEmbedder) Close() error   { return nil }

func TestWarmup(t *testing.T) {
	d, err := Warmup(context.Background(), stubEmbedder{}, "company name")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d.Nanoseconds(), int64(0))

	boom := errors.New("boom")
	_, err = Warmup(context.Background(), stubEmbedder{err: boom}, "x")
	assert.ErrorIs(t, err, boom)

	_, err = Warmup(context.Background(), nil, "x")
	assert.Error(t, err)
}
