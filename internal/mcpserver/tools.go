package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/straja-ai/placeholder/internal/detection"
	"github.com/straja-ai/placeholder/internal/events"
	"github.com/straja-ai/placeholder/internal/placeholder"
	"github.com/straja-ai/placeholder/internal/redact"
)

type candidateArg struct {
	Text  string `json:"text"`
	Index *int   `json:"index"`
}

type detectArgs struct {
	TextJSON       []candidateArg `json:"text_json"`
	Threshold      *float64       `json:"threshold"`
	SemanticWeight *float64       `json:"semantic_weight"`
	FuzzyWeight    *float64       `json:"fuzzy_weight"`
	FormatWeight   *float64       `json:"format_weight"`
}

type detectResult struct {
	RequestID string               `json:"request_id"`
	Match     bool                 `json:"match"`
	Verdict   *placeholder.Verdict `json:"verdict"`
	Message   string               `json:"message,omitempty"`
}

func (a detectArgs) options(defaults placeholder.Options) placeholder.Options {
	opts := defaults
	if a.Threshold != nil {
		opts.Threshold = *a.Threshold
	}
	if a.SemanticWeight != nil {
		opts.Weights.Semantic = *a.SemanticWeight
	}
	if a.FuzzyWeight != nil {
		opts.Weights.Fuzzy = *a.FuzzyWeight
	}
	if a.FormatWeight != nil {
		opts.Weights.Format = *a.FormatWeight
	}
	return opts
}

func (s *Server) handleDetect(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	const tool = "detect_placeholder"
	requestID := uuid.NewString()

	var args detectArgs
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		reason := fmt.Sprintf("invalid arguments: %v", err)
		s.svc.RejectInvalid(ctx, requestID, events.SourceMCP, reason)
		return errorResult(tool, errors.New(reason))
	}

	opts := args.options(s.svc.Defaults())
	if err := opts.Validate(); err != nil {
		s.svc.RejectInvalid(ctx, requestID, events.SourceMCP, err.Error())
		return errorResult(tool, err)
	}

	candidates := make([]placeholder.Candidate, len(args.TextJSON))
	for i, c := range args.TextJSON {
		candidates[i] = placeholder.Candidate{Text: c.Text, Index: i}
		if c.Index != nil {
			candidates[i].Index = *c.Index
		}
	}

	v, err := s.svc.Detect(ctx, detection.Request{
		RequestID:  requestID,
		Source:     events.SourceMCP,
		Candidates: candidates,
		Options:    &opts,
	})
	if err != nil {
		return errorResult(tool, errors.New(redact.String(err.Error())))
	}

	out := detectResult{RequestID: requestID, Match: v != nil, Verdict: v}
	if v == nil {
		out.Message = "No standalone company name placeholders detected above threshold"
	}
	return jsonResult(out)
}

type lexiconInfoArgs struct {
	IncludeEntries bool `json:"include_entries"`
}

type lexiconInfoResult struct {
	detection.Info
	Entries []string `json:"entries,omitempty"`
}

func (s *Server) handleLexiconInfo(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args lexiconInfoArgs
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return errorResult("lexicon_info", fmt.Errorf("invalid arguments: %w", err))
		}
	}
	out := lexiconInfoResult{Info: s.svc.Info()}
	if args.IncludeEntries {
		out.Entries = s.svc.Lexicon().Entries()
	}
	return jsonResult(out)
}
