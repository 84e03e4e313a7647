package types

import (
	"context"

	"github.com/xhad/medilex/internal/models"
)

// Core interfaces
type VectorStore interface {
	Store(ctx context.Context, docs []models.ProcessedDocument) error
	Query(ctx context.Context, embedding []float32, limit int) ([]models.SearchResult, error)
	Count(ctx context.Context) (int, error)
	Close()
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

type QueryEmbedder interface {
	Embedder
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator produces a completion for a system instruction and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type Processor interface {
	Process(docs []models.Document) ([]models.ProcessedDocument, error)
}

type TextExtractor interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, outPath string) error
}

type Translator interface {
	Translate(ctx context.Context, text, src, dst string) (string, error)
}
