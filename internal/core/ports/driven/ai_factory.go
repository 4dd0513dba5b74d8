package driven

import (
	"github.com/custodia-labs/persona-core/internal/core/domain"
)

// AIServiceFactory creates AI services based on configuration
type AIServiceFactory interface {
	// CreateChatModel creates a chat model from settings
	// Returns nil, nil if settings are not configured
	CreateChatModel(settings *domain.LLMSettings) (ChatModel, error)
}
