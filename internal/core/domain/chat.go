package domain

// Role identifies the author of a transcript turn
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// FinishReason reports why the model stopped generating
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonLength        FinishReason = "length"
	FinishReasonContentFilter FinishReason = "content_filter"
)

// Turn is one message in a conversation transcript.
// Content is nil for assistant turns that only carry tool calls.
type Turn struct {
	Role       Role       `json:"role"`
	Content    *string    `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Text returns the turn content or "" when it is null
func (t Turn) Text() string {
	if t.Content == nil {
		return ""
	}
	return *t.Content
}

// HasToolCalls reports whether the turn requests tool execution
func (t Turn) HasToolCalls() bool {
	return len(t.ToolCalls) > 0
}

// SystemTurn creates a system turn
func SystemTurn(content string) Turn {
	return Turn{Role: RoleSystem, Content: &content}
}

// UserTurn creates a user turn
func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: &content}
}

// AssistantTurn creates an assistant reply turn
func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: &content}
}

// ToolCallTurn records the model's intent to call tools
func ToolCallTurn(calls []ToolCall) Turn {
	return Turn{Role: RoleAssistant, ToolCalls: calls}
}

// ToolResultTurn carries a tool result back to the model
func ToolResultTurn(toolCallID, content string) Turn {
	return Turn{Role: RoleTool, Content: &content, ToolCallID: toolCallID}
}

// ToolCall is a model-initiated function invocation
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"` // Always "function"
	Function FunctionCall `json:"function"`
}

// FunctionCall names the function and carries its JSON-encoded arguments
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition declares a callable tool to the model
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a function and its JSON Schema parameters
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Completion is one language model response
type Completion struct {
	FinishReason FinishReason `json:"finish_reason"`
	Message      Turn         `json:"message"`
}

// WantsTool reports whether the model stopped to request tool calls
func (c *Completion) WantsTool() bool {
	return c.FinishReason == FinishReasonToolCalls && c.Message.HasToolCalls()
}

// ChatResult is the outcome of one orchestrated chat exchange
type ChatResult struct {
	Reply      string `json:"reply"`
	History    []Turn `json:"history"`    // Caller-visible history with user + assistant appended
	Transcript []Turn `json:"transcript"` // Full transcript sent to the model, including system and tool turns
	ModelCalls int    `json:"model_calls"`
	ToolCalls  int    `json:"tool_calls"`
}

// ChatRequest is the request body for the chat endpoint
type ChatRequest struct {
	Message string `json:"message" example:"What do you think about Michelle Obama?"`
}

// ChatResponse is the response body for the chat endpoint
type ChatResponse struct {
	Response string `json:"response" example:"Michelle is my rock..."`
}
