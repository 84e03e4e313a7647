package llm

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/xhad/medilex/internal/types"
	"github.com/xhad/medilex/pkg/config"
)

// NewGenerator builds the generator selected by cfg.Provider.
func NewGenerator(cfg config.LLMConfig, logger *zerolog.Logger) (types.Generator, error) {
	retry := DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries
	retry.MaxConcurrentCalls = cfg.Concurrency

	switch cfg.Provider {
	case "", "ollama":
		return NewWithConfig(ChatConfig{
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			BaseURL:     cfg.BaseURL,
			Retry:       retry,
			Logger:      logger,
		})
	case "anthropic":
		return NewAnthropicGenerator(AnthropicConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Retry:       retry,
			Logger:      logger,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
