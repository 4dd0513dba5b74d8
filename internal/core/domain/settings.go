package domain

import (
	"fmt"
	"strings"
)

// AIProvider identifies the language model provider
type AIProvider string

const (
	AIProviderOpenAI AIProvider = "openai"
	AIProviderOllama AIProvider = "ollama" // OpenAI-compatible local endpoint
)

// LLMSettings configures the chat model
type LLMSettings struct {
	Provider AIProvider `yaml:"provider" json:"provider"`
	Model    string     `yaml:"model" json:"model"`
	APIKey   string     `yaml:"-" json:"-"` // Never serialize
	BaseURL  string     `yaml:"base_url" json:"base_url,omitempty"`
}

// IsConfigured returns true if LLM settings are properly configured
func (l *LLMSettings) IsConfigured() bool {
	if l.Provider == "" {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RequiresAPIKey returns true if this provider requires an API key
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOllama:
		return false // Self-hosted, no API key needed
	default:
		return true
	}
}

// IsValid returns true if this is a known provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderOllama:
		return true
	default:
		return false
	}
}

// PersonaSettings configures the voice the model impersonates
type PersonaSettings struct {
	Name   string `yaml:"name" json:"name"`
	Prompt string `yaml:"prompt" json:"prompt"` // Overrides the generated prompt when set
}

// DefaultPersonaSettings returns the persona of the bundled tweet dataset
func DefaultPersonaSettings() PersonaSettings {
	return PersonaSettings{Name: "Barack Obama"}
}

// SystemPrompt returns the fixed persona system message
func (p PersonaSettings) SystemPrompt() string {
	if strings.TrimSpace(p.Prompt) != "" {
		return p.Prompt
	}
	name := p.Name
	if name == "" {
		name = DefaultPersonaSettings().Name
	}
	return fmt.Sprintf(`Pretend you are %[1]s. Base your tone and phrasing on the language used in %[1]s's verified posts.
Use the vector_search tool when you need examples of what %[1]s has actually said.
Respond only in ways consistent with %[1]s's public voice and persona.`, name)
}
