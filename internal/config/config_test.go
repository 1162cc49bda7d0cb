package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY",
		"TASKPULSE_DATA_DIR", "TASKPULSE_DB_PATH", "TASKPULSE_DEBUG",
		"TASKPULSE_LOG_LEVEL", "TASKPULSE_LLM_MODEL",
		"TASKPULSE_EMBEDDING_MODEL", "TASKPULSE_LLM_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "taskpulse", cfg.Name)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "meta-llama/llama-3.3-8b-instruct:free", cfg.LLM.Model)
	assert.Equal(t, 100, cfg.Retrieval.MaxMessages)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, 20, cfg.Retrieval.MaxTasks)
	assert.InDelta(t, 0.5, cfg.Scorer.Threshold, 1e-9)
	assert.Equal(t, 50, cfg.Engine.SweepLimit)
	assert.Equal(t, 200*time.Millisecond, cfg.Engine.SweepDelay)
	assert.True(t, cfg.Engine.Fallback.Enabled)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	clearProviderEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().LLM.Model, cfg.LLM.Model)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearProviderEnv(t)

	path := filepath.Join(t.TempDir(), "taskpulse.yaml")
	yaml := `
data_dir: /var/lib/taskpulse
database:
  path: custom.db
llm:
  model: gpt-4o-mini
retrieval:
  top_k: 5
scorer:
  threshold: 0.6
engine:
  sweep_limit: 10
  fallback:
    enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/taskpulse", cfg.DataDir)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.6, cfg.Scorer.Threshold, 1e-9)
	assert.Equal(t, 10, cfg.Engine.SweepLimit)
	assert.False(t, cfg.Engine.Fallback.Enabled)
	assert.Equal(t, filepath.Join("/var/lib/taskpulse", "custom.db"), cfg.DatabasePath())
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: ["), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides_ProviderPrecedence(t *testing.T) {
	t.Run("gemini selects genai", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv("GEMINI_API_KEY", "gem-key")

		cfg := DefaultConfig()
		cfg.LLM.APIKey = ""
		cfg.LLM.Provider = ""
		cfg.applyEnvOverrides()

		assert.Equal(t, "genai", cfg.Embedding.Provider)
		assert.Equal(t, "gem-key", cfg.Embedding.GenAIAPIKey)
		assert.Equal(t, "genai", cfg.LLM.Provider)
	})

	t.Run("openai overrides gemini", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv("GEMINI_API_KEY", "gem-key")
		t.Setenv("OPENAI_API_KEY", "oa-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "openai", cfg.Embedding.Provider)
		assert.Equal(t, "oa-key", cfg.LLM.APIKey)
		assert.Equal(t, "https://api.openai.com/v1", cfg.LLM.BaseURL)
	})

	t.Run("openrouter wins for the classifier", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("OPENROUTER_API_KEY", "or-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "or-key", cfg.LLM.APIKey)
		assert.Equal(t, "https://openrouter.ai/api/v1", cfg.LLM.BaseURL)
		// Embeddings still use the OpenAI key.
		assert.Equal(t, "oa-key", cfg.Embedding.OpenAIAPIKey)
	})
}

func TestEnvOverrides_Tuning(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("TASKPULSE_DB_PATH", "/tmp/x.db")
	t.Setenv("TASKPULSE_DEBUG", "true")
	t.Setenv("TASKPULSE_LLM_MODEL", "custom-model")
	t.Setenv("TASKPULSE_LLM_TIMEOUT", "90s")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.True(t, cfg.Logging.Debug)
	assert.Equal(t, "custom-model", cfg.LLM.Model)
	assert.Equal(t, 90*time.Second, cfg.LLM.Timeout)
}

func TestSaveAndReload(t *testing.T) {
	clearProviderEnv(t)

	path := filepath.Join(t.TempDir(), "nested", "taskpulse.yaml")
	cfg := DefaultConfig()
	cfg.LLM.Model = "round-trip-model"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "round-trip-model", loaded.LLM.Model)
}

func TestDatabasePath_Memory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Path = ":memory:"
	assert.Equal(t, ":memory:", cfg.DatabasePath())
}
