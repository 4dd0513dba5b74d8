package http

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/runtime"
)

func newListeningServer(port int) *Server {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = port
	services := runtime.NewServices(domain.NewRuntimeConfig("none", "none"))
	return NewServer(cfg, &mockChatService{}, services, PingFunc(func(context.Context) error { return nil }), nil, nil)
}

func TestServer_StartStopsOnContextCancel(t *testing.T) {
	s := newListeningServer(0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after context cancellation")
	}
}

func TestServer_StartReportsListenError(t *testing.T) {
	s := newListeningServer(-1)

	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server error")
	case <-time.After(5 * time.Second):
		t.Fatal("expected listen failure to end Start")
	}
}
