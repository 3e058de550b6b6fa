// Package events delivers one record per detection call to configured sinks
// without blocking the caller.
package events

import (
	"time"

	"github.com/straja-ai/placeholder/internal/placeholder"
)

const Version = "1"

type Outcome string

const (
	OutcomeMatch        Outcome = "match"
	OutcomeNoMatch      Outcome = "no_match"
	OutcomeInvalidInput Outcome = "invalid_input"
	OutcomeError        Outcome = "error"
)

// Source names the surface that served the call.
const (
	SourceHTTP = "http"
	SourceMCP  = "mcp"
	SourceCLI  = "cli"
)

// Event never carries candidate text.
type Event struct {
	Version        string                 `json:"version"`
	Timestamp      time.Time              `json:"timestamp"`
	RequestID      string                 `json:"request_id"`
	Source         string                 `json:"source,omitempty"`
	Outcome        Outcome                `json:"outcome"`
	Method         placeholder.Method     `json:"method,omitempty"`
	Index          *int                   `json:"index,omitempty"`
	Similarity     float64                `json:"similarity,omitempty"`
	Confidence     placeholder.Confidence `json:"confidence,omitempty"`
	Candidates     int                    `json:"candidates"`
	LatencyMs      float64                `json:"latency_ms"`
	Error          string                 `json:"error,omitempty"`
	LexiconVersion string                 `json:"lexicon_fingerprint,omitempty"`
}

// NewEvent builds an event from a finished detection. v and err may both be nil
// (no match).
func NewEvent(requestID, source string, candidates int, latency time.Duration, v *placeholder.Verdict, err error) *Event {
	ev := &Event{
		Version:    Version,
		Timestamp:  time.Now().UTC(),
		RequestID:  requestID,
		Source:     source,
		Candidates: candidates,
		LatencyMs:  float64(latency.Microseconds()) / 1000,
	}
	switch {
	case err != nil:
		ev.Outcome = OutcomeError
		ev.Error = err.Error()
	case v == nil:
		ev.Outcome = OutcomeNoMatch
	default:
		idx := v.Index
		ev.Outcome = OutcomeMatch
		ev.Method = v.DetectionMethod
		ev.Index = &idx
		ev.Similarity = v.Similarity
		ev.Confidence = v.Confidence
	}
	return ev
}

// InvalidInput records a request rejected before detection.
func InvalidInput(requestID, source, reason string) *Event {
	return &Event{
		Version:   Version,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
		Source:    source,
		Outcome:   OutcomeInvalidInput,
		Error:     reason,
	}
}
