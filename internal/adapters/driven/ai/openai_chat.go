package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
)

// Ensure OpenAIChat implements ChatModel
var _ driven.ChatModel = (*OpenAIChat)(nil)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultOllamaBaseURL = "http://localhost:11434/v1"
	defaultOllamaModel   = "llama3.1"
)

// OpenAIChat implements ChatModel using the OpenAI chat completions API.
// Any OpenAI-compatible endpoint works, including Ollama's /v1.
type OpenAIChat struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAIChat creates a new OpenAI chat model
func NewOpenAIChat(apiKey, model, baseURL string) (driven.ChatModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	if model == "" {
		model = defaultOpenAIModel
	}

	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	return newOpenAIChat(apiKey, model, baseURL), nil
}

// NewOllamaChat creates a chat model against a local Ollama server's OpenAI-compatible API
func NewOllamaChat(baseURL, model string) (driven.ChatModel, error) {
	if model == "" {
		model = defaultOllamaModel
	}

	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}

	return newOpenAIChat("", model, baseURL), nil
}

func newOpenAIChat(apiKey, model, baseURL string) *OpenAIChat {
	return &OpenAIChat{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// chatCompletionRequest is the request body for the chat completions API
type chatCompletionRequest struct {
	Model    string                  `json:"model"`
	Messages []domain.Turn           `json:"messages"`
	Tools    []domain.ToolDefinition `json:"tools,omitempty"`
}

// chatCompletionResponse is the response from the chat completions API
type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int                 `json:"index"`
		Message      domain.Turn         `json:"message"`
		FinishReason domain.FinishReason `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

// apiError is the OpenAI error envelope
type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"` // string or null depending on the endpoint
}

// Complete sends the transcript and returns the first choice
func (c *OpenAIChat) Complete(ctx context.Context, messages []domain.Turn, tools []domain.ToolDefinition) (*domain.Completion, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	reqBody := chatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    tools,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	respBody, status, err := c.do(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response (status %d): %w", status, err)
	}

	if chatResp.Error != nil {
		return nil, fmt.Errorf("OpenAI API error: %s (type: %s, code: %v)",
			chatResp.Error.Message, chatResp.Error.Type, chatResp.Error.Code)
	}

	if status != http.StatusOK {
		return nil, fmt.Errorf("OpenAI API returned status %d", status)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("OpenAI API returned no choices")
	}

	choice := chatResp.Choices[0]
	return &domain.Completion{
		FinishReason: choice.FinishReason,
		Message:      choice.Message,
	}, nil
}

// Model returns the model name being used
func (c *OpenAIChat) Model() string {
	return c.model
}

// Ping verifies the API is reachable and the credentials are accepted
func (c *OpenAIChat) Ping(ctx context.Context) error {
	_, status, err := c.do(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("OpenAI API returned status %d", status)
	}
	return nil
}

// Close releases resources held by the chat model
func (c *OpenAIChat) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// do makes a request to the API and returns the raw body and status
func (c *OpenAIChat) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	return respBody, resp.StatusCode, nil
}
