// Package embedding provides vector embedding generation for semantic
// retrieval. Supports two backends: Google GenAI and any OpenAI-compatible
// API (OpenAI, OpenRouter).
package embedding

import (
	"context"
	"fmt"

	"taskpulse/internal/logging"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the dimensionality of embeddings.
	Dimensions() int

	// Name returns the engine name.
	Name() string
}

// Config holds embedding engine configuration.
type Config struct {
	// Provider: "genai" or "openai"
	Provider string `yaml:"provider"`

	// GenAI configuration
	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"` // Default: "gemini-embedding-001"

	// OpenAI-compatible configuration
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"` // Default: "https://api.openai.com/v1"
	OpenAIModel   string `yaml:"openai_model"`    // Default: "text-embedding-3-small"
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Provider:      "openai",
		GenAIModel:    "gemini-embedding-001",
		OpenAIBaseURL: "https://api.openai.com/v1",
		OpenAIModel:   "text-embedding-3-small",
	}
}

// NewEngine creates an embedding engine based on configuration.
func NewEngine(cfg Config) (Engine, error) {
	logging.Embedding("Creating embedding engine with provider=%s", cfg.Provider)

	var engine Engine
	var err error

	switch cfg.Provider {
	case "genai":
		engine, err = NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel)
	case "openai":
		engine, err = NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	default:
		err = fmt.Errorf("unsupported embedding provider: %s (use 'genai' or 'openai')", cfg.Provider)
	}

	if err != nil {
		logging.Get(logging.CategoryEmbedding).Error("Failed to create embedding engine: %v", err)
		return nil, err
	}

	logging.Embedding("Embedding engine ready: name=%s, dimensions=%d", engine.Name(), engine.Dimensions())
	return engine, nil
}
