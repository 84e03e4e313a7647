// Package llm talks to language models: local Ollama models through langchaingo
// and hosted Claude models through the Anthropic SDK.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/pkg/logging"
)

// ErrEmptyResponse is returned when the model produced no choices.
var ErrEmptyResponse = errors.New("no response from LLM")

const defaultSystemTemplate = "You are a careful medical assistant. Explain prescriptions, medicines and symptoms " +
	"in simple, patient-friendly language using the reference passages provided. " +
	"If the passages do not cover the question, say so and advise consulting a doctor."

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model           string
	Temperature     float64
	MaxTokens       int
	SystemTemplate  string
	ContextTemplate string // formatted with the joined passages, then the question
	BaseURL         string // Ollama server URL
	Retry           RetryConfig
	Logger          *zerolog.Logger
}

// ChatEngine is an engine that uses an LLM to generate chat responses.
type ChatEngine struct {
	config  ChatConfig
	llm     llms.Model
	retrier *Retrier
	logger  zerolog.Logger
}

// NewWithConfig creates a ChatEngine backed by an Ollama server.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	llm, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewWithModel(config, llm)
}

// NewWithModel creates a ChatEngine around any langchaingo model.
func NewWithModel(config ChatConfig, model llms.Model) (*ChatEngine, error) {
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}
	if config.ContextTemplate == "" {
		config.ContextTemplate = "Reference passages:\n%s\nQuestion: %s"
	}

	logger := logging.Or(config.Logger, "llm")
	return &ChatEngine{
		config:  config,
		llm:     model,
		retrier: NewRetrier(config.Retry, logger),
		logger:  logger,
	}, nil
}

// Generate sends a single system + user exchange and returns the reply text.
func (ce *ChatEngine) Generate(ctx context.Context, system, prompt string) (string, error) {
	if system == "" {
		system = ce.config.SystemTemplate
	}
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	var out string
	err := ce.retrier.Do(ctx, "generate", func(ctx context.Context) error {
		resp, err := ce.llm.GenerateContent(ctx, content, ce.callOptions()...)
		if err != nil {
			return err
		}
		text, err := firstChoice(resp)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Chat answers query grounded in docs.
func (ce *ChatEngine) Chat(ctx context.Context, query string, docs []models.Document) (string, error) {
	return ce.Generate(ctx, ce.config.SystemTemplate, ce.prompt(query, docs))
}

// ChatStream streams the answer to query. The text channel is closed when the
// reply is complete; the error channel then yields at most one error.
func (ce *ChatEngine) ChatStream(ctx context.Context, query string, docs []models.Document) (<-chan string, <-chan error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, ce.prompt(query, docs)),
	}

	resultChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		defer close(errChan)
		defer close(resultChan)

		streamed := false
		opts := append(ce.callOptions(), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			streamed = true
			select {
			case resultChan <- string(chunk):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}))

		err := ce.retrier.Once(ctx, "chat_stream", func(ctx context.Context) error {
			resp, err := ce.llm.GenerateContent(ctx, content, opts...)
			if err != nil {
				return err
			}
			if streamed {
				return nil
			}
			// models that ignore the streaming func still return the full reply
			text, err := firstChoice(resp)
			if err != nil {
				return err
			}
			select {
			case resultChan <- text:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			errChan <- fmt.Errorf("chat error: %w", err)
		}
	}()

	return resultChan, errChan
}

func (ce *ChatEngine) prompt(query string, docs []models.Document) string {
	if len(docs) == 0 {
		return query
	}
	var contextBuilder strings.Builder
	for _, doc := range docs {
		contextBuilder.WriteString(fmt.Sprintf("Source: %s\n%s\n\n", doc.Source(), doc.Content))
	}
	return fmt.Sprintf(ce.config.ContextTemplate, contextBuilder.String(), query)
}

func (ce *ChatEngine) callOptions() []llms.CallOption {
	return []llms.CallOption{
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	}
}

func firstChoice(resp *llms.ContentResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

// FormatSources lists the distinct sources of docs for citation.
func FormatSources(docs []models.Document) string {
	if docs == nil {
		return ""
	}

	var sources []string
	seen := make(map[string]bool)

	for _, doc := range docs {
		src := doc.Source()
		if !seen[src] {
			sources = append(sources, src)
			seen[src] = true
		}
	}

	if len(sources) == 0 {
		return ""
	}

	return fmt.Sprintf("\nSources:\n%s", strings.Join(sources, "\n"))
}
