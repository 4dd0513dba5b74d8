package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/custodia-labs/persona-core/internal/core/domain"
)

func TestNewOpenAIChat_RequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIChat("", "gpt-4o-mini", "")
	if err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNewOpenAIChat_Defaults(t *testing.T) {
	model, err := NewOpenAIChat("sk-test", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chat := model.(*OpenAIChat)
	if chat.model != defaultOpenAIModel {
		t.Errorf("expected default model %s, got %s", defaultOpenAIModel, chat.model)
	}
	if chat.baseURL != "https://api.openai.com/v1" {
		t.Errorf("expected default base URL, got %s", chat.baseURL)
	}
}

func TestOpenAIChat_Close(t *testing.T) {
	model, err := NewOpenAIChat("sk-test", "gpt-4o-mini", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := model.Close(); err != nil {
		t.Errorf("expected no error from Close, got %v", err)
	}
}

func TestOpenAIChat_Complete_EmptyMessages(t *testing.T) {
	model, _ := NewOpenAIChat("sk-test", "gpt-4o-mini", "")

	if _, err := model.Complete(context.Background(), nil, nil); err == nil {
		t.Error("expected error for empty transcript")
	}
}

func TestOpenAIChat_Complete_Reply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected authorization header: %s", r.Header.Get("Authorization"))
		}

		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
			return
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("expected model gpt-4o-mini, got %s", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != domain.RoleSystem {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "Yes we can."}
			}]
		}`))
	}))
	defer server.Close()

	model, err := NewOpenAIChat("sk-test", "gpt-4o-mini", server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	completion, err := model.Complete(context.Background(), []domain.Turn{
		domain.SystemTurn("persona"),
		domain.UserTurn("hi"),
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if completion.FinishReason != domain.FinishReasonStop {
		t.Errorf("expected stop, got %s", completion.FinishReason)
	}
	if completion.Message.Text() != "Yes we can." {
		t.Errorf("unexpected content: %q", completion.Message.Text())
	}
}

func TestOpenAIChat_Complete_ToolCalls(t *testing.T) {
	var rawBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		rawBody = string(data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": null,
					"tool_calls": [{
						"id": "call_abc",
						"type": "function",
						"function": {"name": "vector_search", "arguments": "{\"query_text\":\"Michelle Obama\",\"top_k\":10}"}
					}]
				}
			}]
		}`))
	}))
	defer server.Close()

	model, _ := NewOpenAIChat("sk-test", "gpt-4o-mini", server.URL)
	tools := []domain.ToolDefinition{{
		Type: "function",
		Function: domain.FunctionDefinition{
			Name:       "vector_search",
			Parameters: map[string]any{"type": "object"},
		},
	}}

	completion, err := model.Complete(context.Background(), []domain.Turn{domain.UserTurn("Michelle?")}, tools)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !completion.WantsTool() {
		t.Fatal("expected tool request")
	}
	if completion.Message.Content != nil {
		t.Error("expected null content")
	}
	call := completion.Message.ToolCalls[0]
	if call.ID != "call_abc" || call.Function.Name != "vector_search" {
		t.Errorf("unexpected call: %+v", call)
	}
	if !strings.Contains(rawBody, `"tools":[`) || !strings.Contains(rawBody, `"name":"vector_search"`) {
		t.Errorf("expected tools in request, got %s", rawBody)
	}
}

func TestOpenAIChat_Complete_OmitsEmptyTools(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&raw)
		if _, ok := raw["tools"]; ok {
			t.Error("expected tools to be omitted")
		}
		_, _ = w.Write([]byte(`{"choices":[{"finish_reason":"stop","message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer server.Close()

	model, _ := NewOpenAIChat("sk-test", "gpt-4o-mini", server.URL)
	if _, err := model.Complete(context.Background(), []domain.Turn{domain.UserTurn("hi")}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestOpenAIChat_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
	}))
	defer server.Close()

	model, _ := NewOpenAIChat("sk-bad", "gpt-4o-mini", server.URL)
	_, err := model.Complete(context.Background(), []domain.Turn{domain.UserTurn("hi")}, nil)
	if err == nil || !strings.Contains(err.Error(), "Incorrect API key") {
		t.Errorf("expected API error, got %v", err)
	}
}

func TestOpenAIChat_Complete_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	model, _ := NewOpenAIChat("sk-test", "gpt-4o-mini", server.URL)
	if _, err := model.Complete(context.Background(), []domain.Turn{domain.UserTurn("hi")}, nil); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestOpenAIChat_Complete_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	model, _ := NewOpenAIChat("sk-test", "gpt-4o-mini", server.URL)
	if _, err := model.Complete(context.Background(), []domain.Turn{domain.UserTurn("hi")}, nil); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestOpenAIChat_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" || r.URL.Path != "/models" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	model, _ := NewOpenAIChat("sk-test", "gpt-4o-mini", server.URL)
	if err := model.Ping(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOllamaChat_NoAuthorization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("expected no authorization header")
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	model, err := NewOllamaChat(server.URL, "llama3.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := model.Ping(context.Background()); err == nil {
		t.Error("expected ping failure for 503")
	}
}
