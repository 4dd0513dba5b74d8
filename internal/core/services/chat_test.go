package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven/mocks"
)

func createTestChat(model *mocks.MockChatModel, index *mocks.MockVectorIndex, rounds int) *chatOrchestrator {
	services := createTestServices(model, testHandle)
	bridge := NewToolBridge(ToolBridgeConfig{
		Retriever: NewRetriever(RetrieverConfig{Index: index}),
		Services:  services,
		Namespace: "posts",
	})
	svc := NewChatOrchestrator(ChatOrchestratorConfig{
		Services:      services,
		Tools:         bridge,
		Persona:       domain.DefaultPersonaSettings(),
		MaxToolRounds: rounds,
	})
	return svc.(*chatOrchestrator)
}

func roles(turns []domain.Turn) []domain.Role {
	out := make([]domain.Role, len(turns))
	for i, turn := range turns {
		out[i] = turn.Role
	}
	return out
}

func TestChat_NoToolCall(t *testing.T) {
	model := mocks.NewMockChatModel(mocks.Reply("Hello there. Yes we can."))
	svc := createTestChat(model, seededIndex(), 0)

	result, err := svc.Chat(context.Background(), "Hi!", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Reply != "Hello there. Yes we can." {
		t.Errorf("unexpected reply: %q", result.Reply)
	}
	if len(model.Calls()) != 1 || result.ModelCalls != 1 {
		t.Errorf("expected exactly one model call, got %d", len(model.Calls()))
	}
	// system + user + assistant
	if len(result.Transcript) != 3 {
		t.Fatalf("expected transcript of 3 turns, got %d", len(result.Transcript))
	}
	if result.Transcript[2].Role != domain.RoleAssistant || result.Transcript[2].Text() != result.Reply {
		t.Errorf("unexpected final turn: %+v", result.Transcript[2])
	}
	if len(model.Calls()[0].Tools) != 1 {
		t.Error("expected the tool schema on the first call")
	}
}

func TestChat_SystemPromptFirst(t *testing.T) {
	model := mocks.NewMockChatModel(mocks.Reply("ok"))
	svc := createTestChat(model, seededIndex(), 0)

	if _, err := svc.Chat(context.Background(), "Hi!", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := model.Calls()[0].Messages
	if sent[0].Role != domain.RoleSystem || !strings.Contains(sent[0].Text(), "Barack Obama") {
		t.Errorf("expected persona system prompt first, got %+v", sent[0])
	}
	if sent[len(sent)-1].Role != domain.RoleUser || sent[len(sent)-1].Text() != "Hi!" {
		t.Errorf("expected user message last, got %+v", sent[len(sent)-1])
	}
}

func TestChat_SingleToolRoundTrip(t *testing.T) {
	model := mocks.NewMockChatModel(
		mocks.ToolRequest(mocks.SearchCall("call_1", `{"query_text":"Michelle Obama","top_k":10}`)),
		mocks.Reply("Michelle is the love of my life and my best friend."),
	)
	index := seededIndex()
	svc := createTestChat(model, index, 0)

	result, err := svc.Chat(context.Background(), "What do you think about Michelle Obama?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := model.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected two model calls, got %d", len(calls))
	}
	if len(calls[1].Tools) != 0 {
		t.Error("expected second call without tools")
	}

	want := []domain.Role{domain.RoleSystem, domain.RoleUser, domain.RoleAssistant, domain.RoleTool, domain.RoleAssistant}
	got := roles(result.Transcript)
	if len(got) != len(want) {
		t.Fatalf("expected roles %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("turn %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	intent := result.Transcript[2]
	if !intent.HasToolCalls() || intent.Content != nil {
		t.Errorf("expected tool-call intent turn, got %+v", intent)
	}
	toolTurn := result.Transcript[3]
	if toolTurn.ToolCallID != "call_1" {
		t.Errorf("expected tool turn to echo call id, got %q", toolTurn.ToolCallID)
	}
	if hits := decodeHits(t, toolTurn); len(hits) != 3 {
		t.Errorf("expected 3 serialized hits, got %d", len(hits))
	}
	if result.Reply != "Michelle is the love of my life and my best friend." {
		t.Errorf("unexpected reply: %q", result.Reply)
	}
	if result.ToolCalls != 1 {
		t.Errorf("expected one tool call, got %d", result.ToolCalls)
	}

	searches := index.Searches()
	if len(searches) != 1 || searches[0].Text != "Michelle Obama" || searches[0].TopK != 10 {
		t.Errorf("unexpected search: %+v", searches)
	}
}

func TestChat_MultipleToolCallsInOneTurn(t *testing.T) {
	model := mocks.NewMockChatModel(
		mocks.ToolRequest(
			mocks.SearchCall("call_a", `{"query_text":"Michelle"}`),
			mocks.SearchCall("call_b", `{"query_text":"health care"}`),
		),
		mocks.Reply("done"),
	)
	svc := createTestChat(model, seededIndex(), 0)

	result, err := svc.Chat(context.Background(), "Tell me about family and health care", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.Role{domain.RoleSystem, domain.RoleUser, domain.RoleAssistant, domain.RoleTool, domain.RoleTool, domain.RoleAssistant}
	got := roles(result.Transcript)
	if len(got) != len(want) {
		t.Fatalf("expected roles %v, got %v", want, got)
	}
	if result.Transcript[3].ToolCallID != "call_a" || result.Transcript[4].ToolCallID != "call_b" {
		t.Error("expected tool turns in call order")
	}
	if len(result.Transcript[2].ToolCalls) != 2 {
		t.Error("expected one assistant turn recording both calls")
	}
}

func TestChat_ToolRequestAfterLastRound(t *testing.T) {
	// Model ignores the missing schema and asks again
	model := mocks.NewMockChatModel(
		mocks.ToolRequest(mocks.SearchCall("call_1", `{"query_text":"Michelle"}`)),
		mocks.ToolRequest(mocks.SearchCall("call_2", `{"query_text":"again"}`)),
	)
	svc := createTestChat(model, seededIndex(), 1)

	result, err := svc.Chat(context.Background(), "Hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ModelCalls != 2 {
		t.Errorf("expected round trips to stop at 2 calls, got %d", result.ModelCalls)
	}
	if result.Reply != "" {
		t.Errorf("expected empty reply, got %q", result.Reply)
	}
}

func TestChat_MaxToolRounds(t *testing.T) {
	model := mocks.NewMockChatModel(
		mocks.ToolRequest(mocks.SearchCall("call_1", `{"query_text":"Michelle"}`)),
		mocks.ToolRequest(mocks.SearchCall("call_2", `{"query_text":"care"}`)),
		mocks.Reply("final"),
	)
	svc := createTestChat(model, seededIndex(), 2)

	result, err := svc.Chat(context.Background(), "Hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := model.Calls()
	if len(calls) != 3 {
		t.Fatalf("expected 3 model calls, got %d", len(calls))
	}
	if len(calls[1].Tools) == 0 || len(calls[2].Tools) != 0 {
		t.Error("expected tools on the first two calls only")
	}
	if result.Reply != "final" || result.ToolCalls != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestChat_HistoryPreserved(t *testing.T) {
	model := mocks.NewMockChatModel(mocks.Reply("second answer"))
	svc := createTestChat(model, seededIndex(), 0)
	history := []domain.Turn{
		domain.UserTurn("first question"),
		domain.AssistantTurn("first answer"),
	}

	result, err := svc.Chat(context.Background(), "second question", history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := model.Calls()[0].Messages
	if len(sent) != 4 || sent[1].Text() != "first question" || sent[3].Text() != "second question" {
		t.Errorf("unexpected transcript sent: %v", roles(sent))
	}
	if len(result.History) != 4 {
		t.Fatalf("expected history of 4 turns, got %d", len(result.History))
	}
	if result.History[3].Role != domain.RoleAssistant || result.History[3].Text() != "second answer" {
		t.Errorf("unexpected last history turn: %+v", result.History[3])
	}
	if len(history) != 2 {
		t.Error("expected caller history to be left untouched")
	}
}

func TestChat_ModelErrorPropagates(t *testing.T) {
	upstream := errors.New("rate limited")
	model := mocks.NewMockChatModel()
	model.CompleteFn = func(messages []domain.Turn, tools []domain.ToolDefinition) (*domain.Completion, error) {
		return nil, upstream
	}
	svc := createTestChat(model, seededIndex(), 0)

	_, err := svc.Chat(context.Background(), "Hi", nil)
	if !errors.Is(err, domain.ErrModelService) || !errors.Is(err, upstream) {
		t.Errorf("expected wrapped model error, got %v", err)
	}
}

func TestChat_SecondModelCallErrorPropagates(t *testing.T) {
	calls := 0
	model := mocks.NewMockChatModel()
	model.CompleteFn = func(messages []domain.Turn, tools []domain.ToolDefinition) (*domain.Completion, error) {
		calls++
		if calls == 1 {
			return mocks.ToolRequest(mocks.SearchCall("c", `{"query_text":"x"}`)), nil
		}
		return nil, errors.New("boom")
	}
	svc := createTestChat(model, seededIndex(), 0)

	if _, err := svc.Chat(context.Background(), "Hi", nil); !errors.Is(err, domain.ErrModelService) {
		t.Errorf("expected ErrModelService, got %v", err)
	}
}

func TestChat_RetrievalFailureStillAnswers(t *testing.T) {
	model := mocks.NewMockChatModel(
		mocks.ToolRequest(mocks.SearchCall("call_1", `not json`)),
		mocks.Reply("I'll answer anyway."),
	)
	svc := createTestChat(model, seededIndex(), 0)

	result, err := svc.Chat(context.Background(), "Hi", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Transcript[3].Text() != "[]" {
		t.Errorf("expected empty tool result, got %q", result.Transcript[3].Text())
	}
	if result.Reply != "I'll answer anyway." {
		t.Errorf("unexpected reply: %q", result.Reply)
	}
}

func TestChat_EmptyMessage(t *testing.T) {
	model := mocks.NewMockChatModel()
	svc := createTestChat(model, seededIndex(), 0)

	if _, err := svc.Chat(context.Background(), "  ", nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if len(model.Calls()) != 0 {
		t.Error("expected no model call")
	}
}

func TestChat_NoModel(t *testing.T) {
	services := createTestServices(nil, nil)
	svc := NewChatOrchestrator(ChatOrchestratorConfig{Services: services})

	if _, err := svc.Chat(context.Background(), "Hi", nil); !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Errorf("expected ErrServiceUnavailable, got %v", err)
	}
}

func TestChat_WithoutToolBridge(t *testing.T) {
	model := mocks.NewMockChatModel(mocks.Reply("plain"))
	svc := NewChatOrchestrator(ChatOrchestratorConfig{Services: createTestServices(model, nil)})

	if _, err := svc.Chat(context.Background(), "Hi", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(model.Calls()[0].Tools) != 0 {
		t.Error("expected no tools without a bridge")
	}
}

func TestChatState_String(t *testing.T) {
	if chatToolRequested.String() != "tool_requested" {
		t.Errorf("unexpected state name: %s", chatToolRequested)
	}
	if chatState(42).String() != "chatState(42)" {
		t.Errorf("unexpected fallback name: %s", chatState(42))
	}
}
