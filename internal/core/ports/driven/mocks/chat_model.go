package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
)

var _ driven.ChatModel = (*MockChatModel)(nil)

// ModelCall records one Complete invocation
type ModelCall struct {
	Messages []domain.Turn
	Tools    []domain.ToolDefinition
}

// MockChatModel replays scripted completions in order
type MockChatModel struct {
	mu        sync.Mutex
	responses []*domain.Completion
	calls     []ModelCall

	// CompleteFn overrides the scripted responses when set
	CompleteFn func(messages []domain.Turn, tools []domain.ToolDefinition) (*domain.Completion, error)
	PingErr    error
}

// NewMockChatModel creates a model that answers with responses in order
func NewMockChatModel(responses ...*domain.Completion) *MockChatModel {
	return &MockChatModel{responses: responses}
}

func (m *MockChatModel) Complete(ctx context.Context, messages []domain.Turn, tools []domain.ToolDefinition) (*domain.Completion, error) {
	m.mu.Lock()
	snapshot := make([]domain.Turn, len(messages))
	copy(snapshot, messages)
	m.calls = append(m.calls, ModelCall{Messages: snapshot, Tools: tools})
	m.mu.Unlock()

	if m.CompleteFn != nil {
		return m.CompleteFn(messages, tools)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return nil, errors.New("mock chat model: no scripted response")
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func (m *MockChatModel) Model() string {
	return "mock-chat-model"
}

func (m *MockChatModel) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MockChatModel) Close() error {
	return nil
}

// Calls returns every recorded invocation
func (m *MockChatModel) Calls() []ModelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ModelCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Helpers for scripting responses

// Reply builds a normal completion
func Reply(content string) *domain.Completion {
	return &domain.Completion{
		FinishReason: domain.FinishReasonStop,
		Message:      domain.AssistantTurn(content),
	}
}

// ToolRequest builds a completion asking for the given tool calls
func ToolRequest(calls ...domain.ToolCall) *domain.Completion {
	return &domain.Completion{
		FinishReason: domain.FinishReasonToolCalls,
		Message:      domain.ToolCallTurn(calls),
	}
}

// SearchCall builds a vector_search tool call with raw JSON arguments
func SearchCall(id, arguments string) domain.ToolCall {
	return domain.ToolCall{
		ID:   id,
		Type: "function",
		Function: domain.FunctionCall{
			Name:      "vector_search",
			Arguments: arguments,
		},
	}
}
