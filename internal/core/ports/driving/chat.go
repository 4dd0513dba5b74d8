package driving

import (
	"context"

	"github.com/custodia-labs/persona-core/internal/core/domain"
)

// ChatService answers a message in the configured persona
type ChatService interface {
	// Chat runs one retrieval-augmented exchange.
	// history holds prior user/assistant turns and may be empty; it is not mutated.
	Chat(ctx context.Context, message string, history []domain.Turn) (*domain.ChatResult, error)
}
