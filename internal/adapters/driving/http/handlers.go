package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/swaggo/swag"

	"github.com/custodia-labs/persona-core/internal/core/domain"
)

// maxChatBody bounds the request body of POST /chat
const maxChatBody = 64 << 10

// readyTimeout bounds the dependency pings of GET /ready
const readyTimeout = 5 * time.Second

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"message is required"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports each dependency checked by the readiness probe
// @Description Readiness probe result
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Pings the language model and the vector index, plus PostgreSQL and Redis when configured
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	checks := map[string]Pinger{
		"index": s.index,
		"llm": PingFunc(func(ctx context.Context) error {
			model := s.services.ChatModel()
			if model == nil {
				return domain.ErrServiceUnavailable
			}
			return model.Ping(ctx)
		}),
	}
	if s.db != nil {
		checks["postgres"] = s.db
	}
	if s.redisClient != nil {
		checks["redis"] = s.redisClient
	}

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(checks))}
	status := http.StatusOK
	for name, p := range checks {
		if p == nil {
			resp.Checks[name] = "not configured"
			status = http.StatusServiceUnavailable
			continue
		}
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("readiness check failed", "check", name, "error", err)
			resp.Checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	if status != http.StatusOK {
		resp.Status = "not ready"
	}

	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// handleSwaggerDoc serves the registered OpenAPI document
func (s *Server) handleSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		writeError(w, http.StatusNotFound, "api docs not available")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, doc)
}

// Chat endpoints

// handleChat godoc
// @Summary      Chat with the persona
// @Description  Answers a message in the persona's voice, grounded in semantically similar historical posts. Each request starts a fresh conversation.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        request  body      domain.ChatRequest  true  "User message"
// @Success      200      {object}  domain.ChatResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body or empty message"
// @Failure      502      {object}  ErrorResponse  "Language model call failed"
// @Failure      503      {object}  ErrorResponse  "Chat model not configured"
// @Router       /chat [post]
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxChatBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := s.chatService.Chat(r.Context(), req.Message, nil)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "message is required")
		case errors.Is(err, domain.ErrServiceUnavailable):
			writeError(w, http.StatusServiceUnavailable, "chat model not configured")
		default:
			s.logger.Error("chat failed", "request_id", RequestIDFromContext(r.Context()), "error", err)
			writeError(w, http.StatusBadGateway, "chat failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, domain.ChatResponse{Response: result.Reply})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
