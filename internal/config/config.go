// Package config loads taskpulse configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"taskpulse/internal/embedding"
	"taskpulse/internal/engine"
	"taskpulse/internal/llm"
	"taskpulse/internal/retrieval"
	"taskpulse/internal/scorer"
)

// Config holds all taskpulse configuration.
type Config struct {
	Name string `yaml:"name"`

	// DataDir holds the database and log files.
	DataDir string `yaml:"data_dir"`

	Database  DatabaseConfig   `yaml:"database"`
	Embedding embedding.Config `yaml:"embedding"`
	LLM       llm.Config       `yaml:"llm"`
	Retrieval retrieval.Config `yaml:"retrieval"`
	Scorer    scorer.Config    `yaml:"scorer"`
	Engine    engine.Config    `yaml:"engine"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig configures the sqlite store.
type DatabaseConfig struct {
	// Path is the sqlite file, relative paths resolved under DataDir.
	// ":memory:" runs without persistence.
	Path string `yaml:"path"`
}

// LoggingConfig configures the category file loggers.
type LoggingConfig struct {
	Debug bool   `yaml:"debug"`
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "taskpulse",
		DataDir: "data",
		Database: DatabaseConfig{
			Path: "taskpulse.db",
		},
		Embedding: embedding.DefaultConfig(),
		LLM:       llm.DefaultConfig(),
		Retrieval: retrieval.DefaultConfig(),
		Scorer:    scorer.DefaultConfig(),
		Engine:    engine.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields
// defaults; environment variables override either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// DatabasePath resolves the sqlite path against DataDir.
func (c *Config) DatabasePath() string {
	p := c.Database.Path
	if p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// EnsureDataDir creates the data directory if needed.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}

// applyEnvOverrides layers environment variables over the loaded values.
// Provider keys are checked in precedence order: an OpenRouter key wins
// over a plain OpenAI key, Gemini selects the genai provider for both
// the embedding engine and the classifier.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TASKPULSE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("TASKPULSE_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("TASKPULSE_DEBUG"); v == "1" || v == "true" {
		c.Logging.Debug = true
	}
	if v := os.Getenv("TASKPULSE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Embedding.Provider = "genai"
		c.Embedding.GenAIAPIKey = v
		if c.LLM.Provider == "" || c.LLM.APIKey == "" {
			c.LLM.Provider = "genai"
			c.LLM.APIKey = v
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Embedding.Provider = "openai"
		c.Embedding.OpenAIAPIKey = v
		c.LLM.Provider = "openai"
		c.LLM.APIKey = v
		c.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.LLM.Provider = "openai"
		c.LLM.APIKey = v
		c.LLM.BaseURL = "https://openrouter.ai/api/v1"
	}

	if v := os.Getenv("TASKPULSE_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("TASKPULSE_EMBEDDING_MODEL"); v != "" {
		if c.Embedding.Provider == "genai" {
			c.Embedding.GenAIModel = v
		} else {
			c.Embedding.OpenAIModel = v
		}
	}
	if v := os.Getenv("TASKPULSE_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.LLM.Timeout = d
		}
	}
}
