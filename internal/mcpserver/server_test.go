package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/placeholder/internal/detection"
	"github.com/straja-ai/placeholder/internal/placeholder"
)

type wordEmbedder struct {
	fail atomic.Bool
}

func (w *wordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if w.fail.Load() {
		return nil, errors.New("model unavailable")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 32)
		for _, f := range strings.Fields(strings.ToLower(t)) {
			v[xxhash.Sum64String(f)%32]++
		}
		out[i] = v
	}
	return out, nil
}

func (w *wordEmbedder) Name() string   { return "words" }
func (w *wordEmbedder) Dimension() int { return 32 }
func (w *wordEmbedder) Close() error   { return nil }

func newTestServer(t *testing.T) (*Server, *wordEmbedder) {
	t.Helper()
	emb := &wordEmbedder{}
	svc, err := detection.New(context.Background(), detection.Deps{
		Lexicon:  placeholder.DefaultLexicon(),
		Embedder: emb,
	})
	require.NoError(t, err)
	s, err := New(svc, "test", nil)
	require.NoError(t, err)
	return s, emb
}

func callTool(t *testing.T, handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args any) *mcp.CallToolResult {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	res, err := handler(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Name: name, Arguments: raw},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	return res
}

func decodeText(t *testing.T, res *mcp.CallToolResult, dst any) {
	t.Helper()
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	require.NoError(t, json.Unmarshal([]byte(text.Text), dst))
}

func TestNewRequiresService(t *testing.T) {
	_, err := New(nil, "", nil)
	require.Error(t, err)
}

func TestDetectPlaceholderExact(t *testing.T) {
	s, _ := newTestServer(t)

	res := callTool(t, s.handleDetect, "detect_placeholder", map[string]any{
		"text_json": []map[string]any{
			{"text": "We provide the best cleaning services in town.", "index": 0},
			{"text": "CLEANING SERVICE", "index": 1},
		},
	})
	assert.False(t, res.IsError)

	var out detectResult
	decodeText(t, res, &out)
	require.True(t, out.Match)
	require.NotNil(t, out.Verdict)
	assert.NotEmpty(t, out.RequestID)
	assert.Equal(t, "CLEANING SERVICE", out.Verdict.CompanyName)
	assert.Equal(t, 1, out.Verdict.Index)
	assert.Equal(t, placeholder.MethodExact, out.Verdict.DetectionMethod)
}

func TestDetectPlaceholderDefaultsIndexToPosition(t *testing.T) {
	s, _ := newTestServer(t)

	res := callTool(t, s.handleDetect, "detect_placeholder", map[string]any{
		"text_json": []map[string]any{{"text": "hello"}, {"text": "[Company Name]"}},
	})
	var out detectResult
	decodeText(t, res, &out)
	require.NotNil(t, out.Verdict)
	assert.Equal(t, 1, out.Verdict.Index)
	assert.Equal(t, 0.95, out.Verdict.Similarity)
}

func TestDetectPlaceholderNoMatch(t *testing.T) {
	s, _ := newTestServer(t)

	res := callTool(t, s.handleDetect, "detect_placeholder", map[string]any{
		"text_json": []map[string]any{{"text": "Acme Robotics Inc.", "index": 0}},
	})
	assert.False(t, res.IsError)
	var out detectResult
	decodeText(t, res, &out)
	assert.False(t, out.Match)
	assert.Nil(t, out.Verdict)
	assert.NotEmpty(t, out.Message)
}

func TestDetectPlaceholderErrors(t *testing.T) {
	s, emb := newTestServer(t)

	tests := []struct {
		name string
		args any
		want string
	}{
		{"text_json not a list", map[string]any{"text_json": "YOUR COMPANY"}, "invalid arguments"},
		{"threshold not a number", map[string]any{"text_json": []any{}, "threshold": "high"}, "invalid arguments"},
		{"item not an object", map[string]any{"text_json": []any{7}}, "invalid arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTool(t, s.handleDetect, "detect_placeholder", tt.args)
			require.True(t, res.IsError)
			var out map[string]any
			decodeText(t, res, &out)
			assert.Equal(t, false, out["success"])
			assert.Contains(t, out["error"], tt.want)
		})
	}

	emb.fail.Store(true)
	res := callTool(t, s.handleDetect, "detect_placeholder", map[string]any{
		"text_json": []map[string]any{{"text": "Acme"}},
	})
	assert.True(t, res.IsError)
}

func TestLexiconInfo(t *testing.T) {
	s, _ := newTestServer(t)

	var out lexiconInfoResult
	decodeText(t, callTool(t, s.handleLexiconInfo, "lexicon_info", map[string]any{}), &out)
	assert.Equal(t, 74, out.LexiconEntries)
	assert.Equal(t, "words", out.Embedder)
	assert.NotEmpty(t, out.Fingerprint)
	assert.Empty(t, out.Entries)

	out = lexiconInfoResult{}
	decodeText(t, callTool(t, s.handleLexiconInfo, "lexicon_info", map[string]any{"include_entries": true}), &out)
	assert.Len(t, out.Entries, 74)
	assert.Contains(t, out.Entries, "YOUR COMPANY")
}

func TestToolsOverSession(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := s.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer session.Close()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"detect_placeholder", "lexicon_info"}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "detect_placeholder",
		Arguments: map[string]any{"text_json": []any{map[string]any{"text": "YOUR BRAND", "index": 3}}},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	var out detectResult
	decodeText(t, res, &out)
	require.NotNil(t, out.Verdict)
	assert.Equal(t, 3, out.Verdict.Index)
}
