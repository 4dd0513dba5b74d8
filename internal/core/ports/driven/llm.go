package driven

import (
	"context"

	"github.com/custodia-labs/persona-core/internal/core/domain"
)

// ChatModel provides chat completions with tool calling
type ChatModel interface {
	// Complete sends the transcript and returns the model's next message.
	// When tools is empty the model is not offered any tool.
	Complete(ctx context.Context, messages []domain.Turn, tools []domain.ToolDefinition) (*domain.Completion, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
