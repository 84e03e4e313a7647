package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/xhad/medilex/pkg/logging"
	"golang.org/x/sync/errgroup"
)

// EmbeddingModel is the part of an embedding backend the Embedder needs.
// *ollama.LLM satisfies it.
type EmbeddingModel interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	Model       string
	BaseURL     string // Ollama server URL
	BatchSize   int
	Concurrency int
	Logger      *zerolog.Logger
}

// Embedder turns text chunks into vectors in batches.
type Embedder struct {
	config EmbedderConfig
	model  EmbeddingModel
	logger zerolog.Logger
}

func (c *EmbedderConfig) applyDefaults() {
	if c.Model == "" {
		c.Model = "nomic-embed-text:latest"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 16
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
}

// NewEmbedderWithConfig creates an Embedder backed by an Ollama server.
func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	config.applyDefaults()

	emb, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return NewEmbedderWithModel(config, emb), nil
}

// NewEmbedderWithModel creates an Embedder around any embedding backend.
func NewEmbedderWithModel(config EmbedderConfig, model EmbeddingModel) *Embedder {
	config.applyDefaults()
	return &Embedder{
		config: config,
		model:  model,
		logger: logging.Or(config.Logger, "embedder"),
	}
}

func (e *Embedder) Model() string { return e.config.Model }

// CreateEmbedding embeds texts, keeping the input order. Batches run concurrently.
func (e *Embedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)

	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(texts))
		batch := texts[start:end]
		offset := start

		g.Go(func() error {
			vecs, err := e.model.CreateEmbedding(gctx, batch)
			if err != nil {
				return fmt.Errorf("embedding batch %d-%d: %w", offset, offset+len(batch), err)
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("embedding batch %d-%d: got %d vectors for %d texts", offset, offset+len(batch), len(vecs), len(batch))
			}
			copy(out[offset:], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.Debug().Int("texts", len(texts)).Str("model", e.config.Model).Msg("created embeddings")
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
