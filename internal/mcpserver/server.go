// Package mcpserver exposes placeholder detection as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/straja-ai/placeholder/internal/detection"
)

const implementationName = "placeholderd-mcp"

// Server holds the MCP server and the detection service behind its tools.
type Server struct {
	server *mcp.Server
	svc    *detection.Service
	logger *slog.Logger
}

// New registers the detect_placeholder and lexicon_info tools.
func New(svc *detection.Service, version string, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("mcpserver: detection service is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if version == "" {
		version = "dev"
	}
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    implementationName,
			Version: version,
		}, nil),
		svc:    svc,
		logger: logger.With("component", "mcp"),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	number := func(desc string) *jsonschema.Schema {
		return &jsonschema.Schema{Type: "number", Description: desc}
	}

	s.server.AddTool(&mcp.Tool{
		Name: "detect_placeholder",
		Description: "Find the text fragment that is a template placeholder for a business name " +
			"(e.g. \"YOUR COMPANY\", \"[Company Name]\"). Returns the best verdict or null.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"text_json": {
					Type:        "array",
					Description: "Candidate fragments in document order",
					Items: &jsonschema.Schema{
						Type: "object",
						Properties: map[string]*jsonschema.Schema{
							"text":  {Type: "string", Description: "Fragment text"},
							"index": {Type: "integer", Description: "Caller's position for the fragment; defaults to its array position"},
						},
					},
				},
				"threshold":       number("Minimum combined score for a multi-factor match (default 0.75)"),
				"semantic_weight": number("Weight of the semantic score (default 0.4)"),
				"fuzzy_weight":    number("Weight of the fuzzy score (default 0.3)"),
				"format_weight":   number("Weight of the format score (default 0.3)"),
			},
			Required: []string{"text_json"},
		},
	}, s.handleDetect)

	s.server.AddTool(&mcp.Tool{
		Name:        "lexicon_info",
		Description: "Describe the active placeholder lexicon and embedding backend.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"include_entries": {
					Type:        "boolean",
					Description: "Also list every lexicon entry",
				},
			},
		},
	}, s.handleLexiconInfo)
}

// Run serves over stdio until ctx ends or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server starting", "transport", "stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying server, for in-memory transports in tests.
func (s *Server) MCPServer() *mcp.Server { return s.server }

func jsonResult(data any) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
	}, nil
}

// errorResult reports a tool failure inside the result so the model can see
// it and correct its call.
func errorResult(tool string, err error) (*mcp.CallToolResult, error) {
	res, marshalErr := jsonResult(map[string]any{
		"success": false,
		"error":   err.Error(),
		"tool":    tool,
	})
	if marshalErr != nil {
		return nil, marshalErr
	}
	res.IsError = true
	return res, nil
}
