// Package store keeps embedded document chunks and answers nearest-neighbour queries.
package store

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/internal/types"
	"github.com/xhad/medilex/pkg/config"
)

// ErrDimensionMismatch is returned when a vector does not match the store's dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// New opens the backend selected in cfg.Store.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (types.VectorStore, error) {
	switch cfg.Store.Backend {
	case "postgres":
		return NewWithConfig(ctx, VectorStoreConfig{
			ConnString: cfg.Database.URL,
			TableName:  cfg.Database.TableName,
			VectorDim:  cfg.Database.VectorDim,
			BatchSize:  cfg.Database.BatchSize,
			Logger:     &logger,
		})
	case "memory", "":
		return NewMemoryStore(MemoryConfig{
			VectorDim: cfg.Database.VectorDim,
			Path:      cfg.Store.Path,
			Logger:    &logger,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// chunkRow is one stored chunk of a processed document.
type chunkRow struct {
	id     string
	doc    models.Document
	index  int
	vector []float32
}

// flatten validates docs and expands them into one row per chunk.
func flatten(docs []models.ProcessedDocument, dim int) ([]chunkRow, error) {
	var rows []chunkRow
	for _, doc := range docs {
		if len(doc.Embedding) != len(doc.Chunks) {
			return nil, fmt.Errorf("document %s has %d chunks but %d embeddings", doc.ID, len(doc.Chunks), len(doc.Embedding))
		}
		for i, chunk := range doc.Chunks {
			vec := doc.Embedding[i]
			if dim > 0 && len(vec) != dim {
				return nil, fmt.Errorf("%w: chunk %s_%d has %d, want %d", ErrDimensionMismatch, doc.ID, i, len(vec), dim)
			}
			d := doc.Document
			d.Title = sanitizeUTF8(d.Title)
			d.Content = sanitizeUTF8(chunk)
			rows = append(rows, chunkRow{
				id:     fmt.Sprintf("%s_%d", doc.ID, i),
				doc:    d,
				index:  i,
				vector: vec,
			})
		}
	}
	return rows, nil
}

// sanitizeUTF8 drops invalid bytes; Postgres rejects them in TEXT columns.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
