package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driving"
	"github.com/custodia-labs/persona-core/internal/runtime"
)

// Ensure chatOrchestrator implements ChatService
var _ driving.ChatService = (*chatOrchestrator)(nil)

const defaultMaxToolRounds = 1

// chatState is a step of one chat exchange
type chatState int

const (
	chatStart chatState = iota
	chatAwaitingModel
	chatToolRequested
	chatToolExecuted
	chatDone
)

func (s chatState) String() string {
	switch s {
	case chatStart:
		return "start"
	case chatAwaitingModel:
		return "awaiting_model"
	case chatToolRequested:
		return "tool_requested"
	case chatToolExecuted:
		return "tool_executed"
	case chatDone:
		return "done"
	default:
		return fmt.Sprintf("chatState(%d)", int(s))
	}
}

// ChatOrchestratorConfig holds configuration for the chat orchestrator
type ChatOrchestratorConfig struct {
	Services      *runtime.Services // Supplies the chat model
	Tools         *ToolBridge       // Optional; without it the model is never offered tools
	Persona       domain.PersonaSettings
	MaxToolRounds int // Tool round trips per message (default 1)
	Logger        *slog.Logger
}

// chatOrchestrator drives the persona conversation and its retrieval round trip
type chatOrchestrator struct {
	services      *runtime.Services
	tools         *ToolBridge
	systemPrompt  string
	maxToolRounds int
	logger        *slog.Logger
}

// NewChatOrchestrator creates a new ChatService
func NewChatOrchestrator(cfg ChatOrchestratorConfig) driving.ChatService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rounds := cfg.MaxToolRounds
	if rounds <= 0 {
		rounds = defaultMaxToolRounds
	}

	return &chatOrchestrator{
		services:      cfg.Services,
		tools:         cfg.Tools,
		systemPrompt:  cfg.Persona.SystemPrompt(),
		maxToolRounds: rounds,
		logger:        logger,
	}
}

// Chat answers one user message in the persona's voice.
// The transcript is [system, ...history, user]; after up to MaxToolRounds tool round trips
// the final assistant turn is appended to both the transcript and the returned history.
func (o *chatOrchestrator) Chat(ctx context.Context, message string, history []domain.Turn) (*domain.ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	}

	model := o.services.ChatModel()
	if model == nil {
		return nil, fmt.Errorf("%w: no chat model configured", domain.ErrServiceUnavailable)
	}

	var (
		transcript []domain.Turn
		completion *domain.Completion
		rounds     int
		result     = &domain.ChatResult{}
		start      = time.Now()
	)

	for state := chatStart; state != chatDone; {
		o.logger.Debug("chat state", "state", state.String())
		switch state {
		case chatStart:
			transcript = make([]domain.Turn, 0, len(history)+5)
			transcript = append(transcript, domain.SystemTurn(o.systemPrompt))
			transcript = append(transcript, history...)
			transcript = append(transcript, domain.UserTurn(message))
			state = chatAwaitingModel

		case chatAwaitingModel:
			// Tools are only offered while round trips remain, so the last call must answer
			var tools []domain.ToolDefinition
			if o.tools != nil && rounds < o.maxToolRounds {
				tools = o.tools.Definitions()
			}

			c, err := model.Complete(ctx, transcript, tools)
			result.ModelCalls++
			if err != nil {
				o.logger.Error("model call failed", "model", model.Model(), "call", result.ModelCalls, "error", err)
				return nil, fmt.Errorf("%w: %w", domain.ErrModelService, err)
			}
			completion = c

			if len(tools) > 0 && completion.WantsTool() {
				state = chatToolRequested
			} else {
				if completion.Message.HasToolCalls() {
					o.logger.Warn("model requested tools after the last round trip", "model", model.Model())
				}
				state = chatDone
			}

		case chatToolRequested:
			calls := completion.Message.ToolCalls
			transcript = append(transcript, domain.ToolCallTurn(calls))
			for _, call := range calls {
				transcript = append(transcript, o.tools.Execute(ctx, call))
				result.ToolCalls++
			}
			rounds++
			state = chatToolExecuted

		case chatToolExecuted:
			state = chatAwaitingModel
		}
	}

	reply := completion.Message.Text()
	transcript = append(transcript, domain.AssistantTurn(reply))

	result.Reply = reply
	result.Transcript = transcript
	result.History = make([]domain.Turn, 0, len(history)+2)
	result.History = append(result.History, history...)
	result.History = append(result.History, domain.UserTurn(message), domain.AssistantTurn(reply))

	o.logger.Info("chat completed",
		"model", model.Model(),
		"model_calls", result.ModelCalls,
		"tool_calls", result.ToolCalls,
		"duration", time.Since(start),
	)
	return result, nil
}
