package domain

import "sync"

// RuntimeConfig tracks which services are available at runtime.
// Backends are set at startup; capability flags change as services are wired.
// Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	LockBackend  string // "redis", "postgres" or "none"
	CacheBackend string // "redis" or "none"

	// Dynamic capability flags
	llmAvailable   bool
	indexAvailable bool
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(lockBackend, cacheBackend string) *RuntimeConfig {
	return &RuntimeConfig{
		LockBackend:  lockBackend,
		CacheBackend: cacheBackend,
	}
}

// LLMAvailable returns whether a chat model is wired
func (c *RuntimeConfig) LLMAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.llmAvailable
}

// IndexAvailable returns whether a queryable index handle is wired
func (c *RuntimeConfig) IndexAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexAvailable
}

// SetLLMAvailable updates the LLM availability flag
func (c *RuntimeConfig) SetLLMAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.llmAvailable = available
}

// SetIndexAvailable updates the index availability flag
func (c *RuntimeConfig) SetIndexAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexAvailable = available
}

// CanRetrieve returns true if chat can ground replies in retrieved posts
func (c *RuntimeConfig) CanRetrieve() bool {
	return c.IndexAvailable()
}

// CanChat returns true if the chat endpoint can serve requests
func (c *RuntimeConfig) CanChat() bool {
	return c.LLMAvailable()
}
