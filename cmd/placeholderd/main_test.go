package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/straja-ai/placeholder/internal/events"
	"github.com/straja-ai/placeholder/internal/placeholder"
)

// runCLI executes the root command with a config path that does not exist,
// so every test runs on defaults.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "placeholderd.yaml")
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestDetectExactOnlyJSON(t *testing.T) {
	out, err := runCLI(t, "", "detect", "--exact-only", "--json",
		"We provide the best cleaning services in town.", "CLEANING SERVICE")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	var got struct {
		StatusCode int                 `json:"status_code"`
		Data       placeholder.Verdict `json:"data"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.StatusCode != 200 || got.Data.CompanyName != "CLEANING SERVICE" || got.Data.Index != 1 {
		t.Fatalf("unexpected output: %+v", got)
	}
}

func TestDetectExactOnlyNoMatch(t *testing.T) {
	out, err := runCLI(t, "", "detect", "--exact-only", "--json", "Acme Robotics")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !strings.Contains(out, `"status_code": 201`) {
		t.Fatalf("expected no-match envelope, got %s", out)
	}
}

func TestDetectReadsStdin(t *testing.T) {
	out, err := runCLI(t, "hello world\n\n<Business Name>\n", "detect", "--exact-only", "--no-color")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	for _, want := range []string{"<Business Name>", "0.9500", "VERY_HIGH", "EXACT_PATTERN_MATCH"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("unexpected color codes in output:\n%s", out)
	}
}

func TestDetectWithoutCandidates(t *testing.T) {
	if _, err := runCLI(t, "   ", "detect", "--exact-only"); err == nil {
		t.Fatal("expected error for empty stdin")
	}
}

func TestReadCandidates(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []placeholder.Candidate
	}{
		{
			name:  "json array",
			input: `[{"text":"a","index":4},{"text":"b"}]`,
			want:  []placeholder.Candidate{{Text: "a", Index: 4}, {Text: "b", Index: 1}},
		},
		{
			name:  "text_json object",
			input: `{"text_json":[{"text":"x","index":9}]}`,
			want:  []placeholder.Candidate{{Text: "x", Index: 9}},
		},
		{
			name:  "lines keep positions",
			input: "first\r\n\nthird\n",
			want:  []placeholder.Candidate{{Text: "first", Index: 0}, {Text: "", Index: 1}, {Text: "third", Index: 2}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readCandidates(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("readCandidates: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d candidates, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("candidate %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}

	if _, err := readCandidates(strings.NewReader(`[{"text":`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestLexiconCommand(t *testing.T) {
	out, err := runCLI(t, "", "lexicon", "--json")
	if err != nil {
		t.Fatalf("lexicon: %v", err)
	}
	var view lexiconView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Source != "built-in" || len(view.Entries) != 74 || len(view.Patterns) != 9 {
		t.Fatalf("unexpected view: source=%s entries=%d patterns=%d", view.Source, len(view.Entries), len(view.Patterns))
	}
	if view.Fingerprint != placeholder.DefaultLexicon().Fingerprint() {
		t.Fatalf("fingerprint mismatch: %s", view.Fingerprint)
	}
}

func TestLexiconCommandFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	if err := os.WriteFile(path, []byte("entries:\n  - SPONSOR NAME\n  - TEAM NAME\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, "", "lexicon", "--file", path)
	if err != nil {
		t.Fatalf("lexicon: %v", err)
	}
	for _, want := range []string{"entries: 2", "SPONSOR NAME", "sponsor name", path} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	bad := filepath.Join(t.TempDir(), "lexicon.ini")
	if err := os.WriteFile(bad, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "", "lexicon", "--file", bad); err == nil {
		t.Fatal("expected error for unsupported lexicon format")
	}
}

func TestSummarize(t *testing.T) {
	durations := make([]time.Duration, 0, 20)
	for i := 20; i >= 1; i-- {
		durations = append(durations, time.Duration(i)*time.Millisecond)
	}
	stats := summarize(durations, 2)
	if stats.N != 20 || stats.Batch != 2 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.AvgMs != 10.5 || stats.P50Ms != 11 || stats.P95Ms != 20 {
		t.Fatalf("unexpected latencies: %+v", stats)
	}
	if stats.PerSec < 190 || stats.PerSec > 191 {
		t.Fatalf("texts/sec = %f", stats.PerSec)
	}
	if durations[0] != 20*time.Millisecond {
		t.Fatal("summarize must not reorder its input")
	}
	if empty := summarize(nil, 1); empty.N != 0 {
		t.Fatalf("empty = %+v", empty)
	}
}

func TestRenderVerdictBreakdown(t *testing.T) {
	out := renderVerdict(&placeholder.Verdict{
		CompanyName:     "Brand Label",
		Index:           2,
		Similarity:      0.81234,
		Confidence:      placeholder.ConfidenceHigh,
		DetectionMethod: placeholder.MethodMultiFactor,
		ScoreBreakdown:  &placeholder.ScoreBreakdown{Semantic: 0.9, Fuzzy: 0.7, Format: 0.8},
	}, false)
	// go-pretty upper-cases header cells.
	for _, want := range []string{"Brand Label", "0.8123", "HIGH", "SEMANTIC", "FUZZY", "FORMAT", "0.7000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestEventReceiver(t *testing.T) {
	var out bytes.Buffer
	h := newEventReceiver(&out)

	idx := 1
	ev := events.NewEvent("req-1", events.SourceHTTP, 2, 3*time.Millisecond, &placeholder.Verdict{
		CompanyName:     "SHOP NAME",
		Index:           idx,
		Similarity:      1,
		Confidence:      placeholder.ConfidenceVeryHigh,
		DetectionMethod: placeholder.MethodExact,
	}, nil)
	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var got events.Event
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decode printed event: %v", err)
	}
	if got.RequestID != "req-1" || got.Outcome != events.OutcomeMatch || got.Index == nil || *got.Index != idx {
		t.Fatalf("printed event = %+v", got)
	}
	if strings.Contains(out.String(), "SHOP NAME") {
		t.Fatal("event must not carry candidate text")
	}

	for _, tc := range []struct {
		method, body string
		want         int
	}{
		{http.MethodGet, "", http.StatusMethodNotAllowed},
		{http.MethodPost, "not json", http.StatusBadRequest},
		{http.MethodPost, `{"version":"0"}`, http.StatusBadRequest},
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(tc.method, "/events", strings.NewReader(tc.body)))
		if rr.Code != tc.want {
			t.Fatalf("%s %q: expected %d, got %d", tc.method, tc.body, tc.want, rr.Code)
		}
	}
}
