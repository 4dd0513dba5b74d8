package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/persona-core/internal/runtime"
)

// createTestServices creates runtime services holding the given model and index handle
func createTestServices(model driven.ChatModel, handle *domain.IndexHandle) *runtime.Services {
	services := runtime.NewServices(domain.NewRuntimeConfig("none", "none"))
	if model != nil {
		services.SetChatModel(model)
	}
	if handle != nil {
		services.SetIndexHandle(handle)
	}
	return services
}

func createTestToolBridge(index *mocks.MockVectorIndex, handle *domain.IndexHandle) *ToolBridge {
	return NewToolBridge(ToolBridgeConfig{
		Retriever: NewRetriever(RetrieverConfig{Index: index}),
		Services:  createTestServices(nil, handle),
		Namespace: "posts",
	})
}

func decodeHits(t *testing.T, turn domain.Turn) []domain.SearchHit {
	t.Helper()
	var hits []domain.SearchHit
	if err := json.Unmarshal([]byte(turn.Text()), &hits); err != nil {
		t.Fatalf("tool content is not a hit list: %v (%q)", err, turn.Text())
	}
	return hits
}

func TestToolBridge_Definitions(t *testing.T) {
	bridge := createTestToolBridge(mocks.NewMockVectorIndex(), nil)

	defs := bridge.Definitions()
	if len(defs) != 1 {
		t.Fatalf("expected one tool, got %d", len(defs))
	}
	def := defs[0]
	if def.Type != "function" || def.Function.Name != VectorSearchTool {
		t.Errorf("unexpected tool: %+v", def)
	}

	required, _ := def.Function.Parameters["required"].([]string)
	if len(required) != 1 || required[0] != "query_text" {
		t.Errorf("expected query_text to be required, got %v", required)
	}
	props := def.Function.Parameters["properties"].(map[string]any)
	topK := props["top_k"].(map[string]any)
	if topK["type"] != "integer" || topK["default"] != domain.DefaultTopK {
		t.Errorf("unexpected top_k schema: %v", topK)
	}
}

func TestToolBridge_Execute(t *testing.T) {
	bridge := createTestToolBridge(seededIndex(), testHandle)

	turn := bridge.Execute(context.Background(), mocks.SearchCall("call_1", `{"query_text":"Michelle","top_k":10}`))

	if turn.Role != domain.RoleTool || turn.ToolCallID != "call_1" {
		t.Errorf("unexpected turn: %+v", turn)
	}
	hits := decodeHits(t, turn)
	if len(hits) != 3 {
		t.Errorf("expected 3 hits, got %d", len(hits))
	}
}

func TestToolBridge_ExecuteDefaultsTopK(t *testing.T) {
	index := seededIndex()
	bridge := createTestToolBridge(index, testHandle)

	bridge.Execute(context.Background(), mocks.SearchCall("call_1", `{"query_text":"care"}`))

	searches := index.Searches()
	if len(searches) != 1 || searches[0].TopK != domain.DefaultTopK || searches[0].Namespace != "posts" {
		t.Errorf("unexpected search: %+v", searches)
	}
}

func TestToolBridge_ExecuteLenientTopK(t *testing.T) {
	tests := []struct {
		name string
		topK string
		want int
	}{
		{"float", `10.0`, 10},
		{"fraction truncated", `7.9`, 7},
		{"numeric string", `"5"`, 5},
		{"null", `null`, domain.DefaultTopK},
		{"unreadable string", `"lots"`, domain.DefaultTopK},
		{"object", `{"k":3}`, domain.DefaultTopK},
		{"above cap", `500`, domain.MaxTopK},
		{"negative", `-3`, domain.DefaultTopK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := seededIndex()
			bridge := createTestToolBridge(index, testHandle)

			turn := bridge.Execute(context.Background(), mocks.SearchCall("call_1", `{"query_text":"Michelle","top_k":`+tt.topK+`}`))

			searches := index.Searches()
			if len(searches) != 1 {
				t.Fatalf("expected the query to run, got %d searches", len(searches))
			}
			if searches[0].Text != "Michelle" || searches[0].TopK != tt.want {
				t.Errorf("expected Michelle with top_k %d, got %+v", tt.want, searches[0])
			}
			if hits := decodeHits(t, turn); len(hits) != 3 {
				t.Errorf("expected 3 hits, got %d", len(hits))
			}
		})
	}
}

func TestToolBridge_ExecuteDegrades(t *testing.T) {
	tests := []struct {
		name string
		call domain.ToolCall
	}{
		{"malformed arguments", mocks.SearchCall("c1", `{"query_text":`)},
		{"wrong argument type", mocks.SearchCall("c2", `{"query_text":42}`)},
		{"unknown tool", domain.ToolCall{ID: "c3", Type: "function", Function: domain.FunctionCall{Name: "web_search", Arguments: `{}`}}},
		{"missing query", mocks.SearchCall("c4", `{}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index := seededIndex()
			bridge := createTestToolBridge(index, testHandle)

			turn := bridge.Execute(context.Background(), tt.call)

			if turn.Role != domain.RoleTool || turn.ToolCallID != tt.call.ID {
				t.Errorf("unexpected turn: %+v", turn)
			}
			if turn.Text() != "[]" {
				t.Errorf("expected empty result, got %q", turn.Text())
			}
			if len(index.Searches()) != 0 {
				t.Error("expected no search")
			}
		})
	}
}

func TestToolBridge_NoIndex(t *testing.T) {
	bridge := createTestToolBridge(seededIndex(), nil)

	turn := bridge.Execute(context.Background(), mocks.SearchCall("call_1", `{"query_text":"Michelle"}`))
	if turn.Text() != "[]" {
		t.Errorf("expected empty result without an index, got %q", turn.Text())
	}
}
