package runtime

import (
	"context"
	"sync"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
)

// Services is the process-wide holder of service handles.
// It is populated once at startup; handles are never re-created implicitly.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	// Config tracks capability flags
	config *domain.RuntimeConfig

	chatModel   driven.ChatModel
	indexHandle *domain.IndexHandle
}

// NewServices creates a new Services registry
func NewServices(config *domain.RuntimeConfig) *Services {
	return &Services{
		config: config,
	}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// ChatModel returns the current chat model (may be nil)
func (s *Services) ChatModel() driven.ChatModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatModel
}

// IndexHandle returns the queryable posts index (may be nil)
func (s *Services) IndexHandle() *domain.IndexHandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexHandle
}

// SetChatModel updates the chat model.
// Closes the old model if present. Updates config flags.
func (s *Services) SetChatModel(m driven.ChatModel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chatModel != nil && s.chatModel != m {
		_ = s.chatModel.Close()
	}

	s.chatModel = m
	s.config.SetLLMAvailable(m != nil)
}

// SetIndexHandle records the provisioned index
func (s *Services) SetIndexHandle(h *domain.IndexHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.indexHandle = h
	s.config.SetIndexAvailable(h != nil)
}

// ValidateAndSetChatModel pings the model before wiring it
func (s *Services) ValidateAndSetChatModel(ctx context.Context, m driven.ChatModel) error {
	if m == nil {
		s.SetChatModel(nil)
		return nil
	}

	if err := m.Ping(ctx); err != nil {
		_ = m.Close()
		return err
	}

	s.SetChatModel(m)
	return nil
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chatModel != nil {
		_ = s.chatModel.Close()
		s.chatModel = nil
	}
	s.indexHandle = nil

	s.config.SetLLMAvailable(false)
	s.config.SetIndexAvailable(false)

	return nil
}
