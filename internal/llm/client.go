// Package llm provides the minimal LLM completion interface the
// classifier calls, with OpenAI-compatible and Google GenAI
// implementations.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Client is the completion capability the classifier depends on.
type Client interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config selects and configures the completion provider.
type Config struct {
	// Provider: "openai" (any OpenAI-compatible API) or "genai"
	Provider string        `yaml:"provider"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url"` // OpenAI-compatible only
	Timeout  time.Duration `yaml:"timeout"`
}

// DefaultConfig targets OpenRouter with the source system's model.
func DefaultConfig() Config {
	return Config{
		Provider: "openai",
		BaseURL:  "https://openrouter.ai/api/v1",
		Model:    "meta-llama/llama-3.3-8b-instruct:free",
		Timeout:  60 * time.Second,
	}
}

// NewClient creates a completion client based on configuration.
func NewClient(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg), nil
	case "genai":
		return NewGenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s (use 'openai' or 'genai')", cfg.Provider)
	}
}
