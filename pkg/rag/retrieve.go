package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/internal/types"
	"github.com/xhad/medilex/pkg/logging"
	"github.com/xhad/medilex/pkg/metrics"
)

var ErrEmptyQuestion = errors.New("question is empty")

type RetrieverConfig struct {
	Embedder types.QueryEmbedder
	Store    types.VectorStore
	TopK     int // default 3
	Logger   *zerolog.Logger
}

// Retriever finds the passages most similar to a question.
type Retriever struct {
	config RetrieverConfig
	logger zerolog.Logger
}

func NewRetriever(config RetrieverConfig) *Retriever {
	if config.TopK <= 0 {
		config.TopK = 3
	}
	return &Retriever{config: config, logger: logging.Or(config.Logger, "retriever")}
}

// Retrieve returns up to topK passages; topK <= 0 uses the configured default.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) (results []models.SearchResult, err error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if topK <= 0 {
		topK = r.config.TopK
	}

	start := time.Now()
	defer func() { metrics.ObserveStage(metrics.StageRetrieve, start, err) }()

	vec, err := r.config.Embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	results, err = r.config.Store.Query(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("querying store: %w", err)
	}

	r.logger.Debug().Int("results", len(results)).Int("top_k", topK).Msg("retrieved passages")
	return results, nil
}
