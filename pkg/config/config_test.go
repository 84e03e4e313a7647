package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OLLAMA_BASE_URL", "DATABASE_URL", "ANTHROPIC_API_KEY", "REDIS_ADDR", "MEDILEX_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)

	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  base_url: "http://localhost:11434"
  model: "llama3"
  max_tokens: 1000
  temperature: 0.5

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_docs"
  vector_dim: 384
  batch_size: 50

processor:
  strategy: sentence
  chunk_size: 400
  chunk_overlap: 40

rag:
  top_k: 5
  mode: llm

ocr:
  timeout: 30s

translate:
  enabled: true
  target: ta

cache:
  backend: redis
  redis_addr: "localhost:6380"

ui:
  streaming: false
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, "postgres", config.Store.Backend)
	assert.Equal(t, 384, config.Database.VectorDim)
	assert.Equal(t, "sentence", config.Processor.Strategy)
	assert.Equal(t, 400, config.Processor.ChunkSize)
	assert.Equal(t, 5, config.RAG.TopK)
	assert.Equal(t, "llm", config.RAG.Mode)
	assert.Equal(t, 30*time.Second, config.OCR.Timeout)
	assert.True(t, config.Translate.Enabled)
	assert.Equal(t, "ta", config.Translate.Target)
	assert.Equal(t, "redis", config.Cache.Backend)
	assert.False(t, config.UI.Streaming)
	assert.True(t, config.History.Enabled)

	assert.Empty(t, config.Validate())
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, "mistral", config.LLM.Model)
	assert.Equal(t, "nomic-embed-text:latest", config.Embedder.Model)
	assert.Equal(t, config.LLM.BaseURL, config.Embedder.BaseURL)
	assert.Equal(t, 768, config.Database.VectorDim)
	assert.Equal(t, "memory", config.Store.Backend)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Equal(t, 50, config.Processor.ChunkOverlap)
	assert.Equal(t, 3, config.RAG.TopK)
	assert.Equal(t, "extractive", config.RAG.Mode)
	assert.Equal(t, "eng", config.OCR.Lang)
	assert.Equal(t, "hi", config.Translate.Target)
	assert.True(t, config.UI.Streaming)
	assert.Empty(t, config.Validate())
}

func TestConfigValidation(t *testing.T) {
	clearEnv(t)

	valid, err := getDefaultConfig()
	require.NoError(t, err)

	invalid, err := getDefaultConfig()
	require.NoError(t, err)
	invalid.LLM.BaseURL = "invalid-url"
	invalid.LLM.MaxTokens = 5000
	invalid.LLM.Temperature = 3.0
	invalid.Database.URL = "invalid-url"
	invalid.Database.VectorDim = -1

	anthropicNoKey, err := getDefaultConfig()
	require.NoError(t, err)
	anthropicNoKey.LLM.Provider = "anthropic"

	badEnums, err := getDefaultConfig()
	require.NoError(t, err)
	badEnums.RAG.Mode = "generative"
	badEnums.Cache.Backend = "memcached"
	badEnums.Processor.ChunkOverlap = 500

	tests := []struct {
		name          string
		config        *Config
		expectedErrs  int
		errorMessages []string
	}{
		{
			name:         "valid config",
			config:       valid,
			expectedErrs: 0,
		},
		{
			name:         "invalid config",
			config:       invalid,
			expectedErrs: 5,
			errorMessages: []string{
				"llm.base_url: invalid Ollama base URL",
				"max_tokens: max_tokens must be between 1 and 4096",
				"temperature: temperature must be between 0 and 2",
				"database.url: invalid database URL",
				"vector_dim: vector_dim must be positive",
			},
		},
		{
			name:          "anthropic without key",
			config:        anthropicNoKey,
			expectedErrs:  1,
			errorMessages: []string{"llm.api_key"},
		},
		{
			name:         "bad enums",
			config:       badEnums,
			expectedErrs: 3,
			errorMessages: []string{
				"processor.chunk_overlap",
				"rag.mode",
				"cache.backend",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := tt.config.Validate()
			assert.Len(t, errors, tt.expectedErrs)

			for i, msg := range tt.errorMessages {
				if i < len(errors) {
					assert.Contains(t, errors[i].Error(), msg)
				}
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("REDIS_ADDR", "env-redis:6379")
	t.Setenv("MEDILEX_LOG_LEVEL", "debug")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
	assert.Equal(t, "sk-test", config.LLM.APIKey)
	assert.Equal(t, "env-redis:6379", config.Cache.RedisAddr)
	assert.Equal(t, "debug", config.Log.Level)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
