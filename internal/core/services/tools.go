package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driving"
	"github.com/custodia-labs/persona-core/internal/runtime"
)

// VectorSearchTool is the only tool offered to the model
const VectorSearchTool = "vector_search"

// emptyToolResult is sent back when a tool call cannot be served
const emptyToolResult = "[]"

// ToolBridgeConfig holds configuration for the tool bridge
type ToolBridgeConfig struct {
	Retriever driving.RetrievalService
	Services  *runtime.Services // Supplies the current index handle
	Namespace string
	Logger    *slog.Logger
}

// ToolBridge exposes retrieval to the model as a callable function
type ToolBridge struct {
	retriever driving.RetrievalService
	services  *runtime.Services
	namespace string
	logger    *slog.Logger
}

// NewToolBridge creates a new ToolBridge
func NewToolBridge(cfg ToolBridgeConfig) *ToolBridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolBridge{
		retriever: cfg.Retriever,
		services:  cfg.Services,
		namespace: cfg.Namespace,
		logger:    logger,
	}
}

// vectorSearchArgs are the arguments the model passes to vector_search.
// top_k is kept raw since models send it as 10, 10.0 or "10".
type vectorSearchArgs struct {
	QueryText string          `json:"query_text"`
	TopK      json.RawMessage `json:"top_k"`
}

// topK reads top_k leniently. Zero means unset and lets the retriever apply its default.
func (a vectorSearchArgs) topK() (int, bool) {
	raw := strings.TrimSpace(string(a.TopK))
	if raw == "" || raw == "null" {
		return 0, true
	}
	var s string
	if err := json.Unmarshal(a.TopK, &s); err == nil {
		raw = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(raw, 64)
	switch {
	case err != nil || math.IsNaN(f):
		return 0, false
	case f > domain.MaxTopK:
		return domain.MaxTopK, true
	case f < 0:
		return 0, true
	}
	return int(f), true
}

// Definitions returns the tool schema offered on the first model call
func (b *ToolBridge) Definitions() []domain.ToolDefinition {
	return []domain.ToolDefinition{
		{
			Type: "function",
			Function: domain.FunctionDefinition{
				Name:        VectorSearchTool,
				Description: "Search the persona's historical posts for passages semantically related to the query. Returns a JSON list of {id, score, text}.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"query_text": map[string]any{
							"type":        "string",
							"description": "What to search for, in natural language.",
						},
						"top_k": map[string]any{
							"type":        "integer",
							"description": "Maximum number of posts to return.",
							"default":     domain.DefaultTopK,
						},
					},
					"required": []string{"query_text"},
				},
			},
		},
	}
}

// Execute runs one tool call and returns the tool turn answering it.
// Unknown tools and malformed arguments degrade to an empty result.
func (b *ToolBridge) Execute(ctx context.Context, call domain.ToolCall) domain.Turn {
	if call.Function.Name != VectorSearchTool {
		b.logger.Warn("unknown tool requested", "tool", call.Function.Name, "call_id", call.ID)
		return domain.ToolResultTurn(call.ID, emptyToolResult)
	}

	var args vectorSearchArgs
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		b.logger.Warn("malformed tool arguments",
			"tool", call.Function.Name,
			"call_id", call.ID,
			"arguments", call.Function.Arguments,
			"error", err,
		)
		return domain.ToolResultTurn(call.ID, emptyToolResult)
	}

	topK, ok := args.topK()
	if !ok {
		b.logger.Warn("ignoring unreadable top_k", "call_id", call.ID, "top_k", string(args.TopK))
	}

	var handle *domain.IndexHandle
	if b.services != nil {
		handle = b.services.IndexHandle()
	}

	hits := b.retriever.Search(ctx, handle, domain.SearchQuery{
		Text:      args.QueryText,
		Namespace: b.namespace,
		TopK:      topK,
	})

	data, err := json.Marshal(hits)
	if err != nil {
		b.logger.Warn("failed to encode tool result", "call_id", call.ID, "error", err)
		return domain.ToolResultTurn(call.ID, emptyToolResult)
	}

	b.logger.Info("tool executed", "tool", call.Function.Name, "call_id", call.ID, "query", args.QueryText, "hits", len(hits))
	return domain.ToolResultTurn(call.ID, string(data))
}
