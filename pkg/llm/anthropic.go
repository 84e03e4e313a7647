package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"github.com/xhad/medilex/pkg/logging"
)

// AnthropicConfig configures a Claude-backed generator.
type AnthropicConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	BaseURL     string // optional, for proxies and tests
	Retry       RetryConfig
	Logger      *zerolog.Logger
}

// AnthropicGenerator generates text with the Anthropic Messages API.
type AnthropicGenerator struct {
	client  *anthropic.Client
	config  AnthropicConfig
	retrier *Retrier
	logger  zerolog.Logger
}

func NewAnthropicGenerator(config AnthropicConfig) (*AnthropicGenerator, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if config.Model == "" {
		config.Model = "claude-3-5-haiku-20241022"
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 2000
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		// retries are handled by the Retrier so the breaker sees every failure
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	logger := logging.Or(config.Logger, "anthropic")
	return &AnthropicGenerator{
		client:  &client,
		config:  config,
		retrier: NewRetrier(config.Retry, logger),
		logger:  logger,
	}, nil
}

func (g *AnthropicGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.config.Model),
		MaxTokens: int64(g.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if t := g.config.Temperature; t > 0 {
		// Messages API accepts 0..1
		params.Temperature = anthropic.Float(min(t, 1))
	}

	var response *anthropic.Message
	err := g.retrier.Do(ctx, "anthropic_generate", func(attemptCtx context.Context) error {
		resp, apiErr := g.client.Messages.New(attemptCtx, params)
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var responseText strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			responseText.WriteString(block.Text)
		}
	}
	if responseText.Len() == 0 {
		return "", ErrEmptyResponse
	}

	g.logger.Debug().
		Int64("input_tokens", response.Usage.InputTokens).
		Int64("output_tokens", response.Usage.OutputTokens).
		Str("model", g.config.Model).
		Msg("anthropic usage")

	return strings.TrimSpace(responseText.String()), nil
}
