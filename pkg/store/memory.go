package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/pkg/logging"
)

type MemoryConfig struct {
	VectorDim   int
	Path        string // JSON index file; empty keeps the store in memory only
	SearchLimit int
	Logger      *zerolog.Logger
}

// MemoryStore is a brute-force cosine index. With a Path it is loaded on open
// and written back after every Store.
type MemoryStore struct {
	mu      sync.RWMutex
	saveMu  sync.Mutex // serializes writes of the index file
	config  MemoryConfig
	entries map[string]*memoryEntry
	logger  zerolog.Logger
}

type memoryEntry struct {
	ID         string                 `json:"id"`
	DocID      string                 `json:"doc_id"`
	URL        string                 `json:"url"`
	Title      string                 `json:"title"`
	Content    string                 `json:"content"`
	ChunkIndex int                    `json:"chunk_index"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Embedding  []float32              `json:"embedding"`

	norm float64
}

type memoryFile struct {
	VectorDim int            `json:"vector_dim"`
	Entries   []*memoryEntry `json:"entries"`
}

func NewMemoryStore(config MemoryConfig) (*MemoryStore, error) {
	if config.SearchLimit == 0 {
		config.SearchLimit = 3
	}
	s := &MemoryStore{
		config:  config,
		entries: make(map[string]*memoryEntry),
		logger:  logging.Or(config.Logger, "memstore"),
	}
	if config.Path != "" {
		if err := s.Load(config.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *MemoryStore) Store(_ context.Context, docs []models.ProcessedDocument) error {
	rows, err := flatten(docs, s.config.VectorDim)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for _, r := range rows {
		s.entries[r.id] = &memoryEntry{
			ID:         r.id,
			DocID:      r.doc.ID,
			URL:        r.doc.URL,
			Title:      r.doc.Title,
			Content:    r.doc.Content,
			ChunkIndex: r.index,
			Metadata:   r.doc.Metadata,
			Embedding:  append([]float32(nil), r.vector...),
			norm:       norm(r.vector),
		}
	}
	s.mu.Unlock()

	if s.config.Path != "" {
		return s.Save(s.config.Path)
	}
	return nil
}

// Query returns up to limit chunks ordered by descending cosine similarity.
func (s *MemoryStore) Query(_ context.Context, embedding []float32, limit int) ([]models.SearchResult, error) {
	if s.config.VectorDim > 0 && len(embedding) != s.config.VectorDim {
		return nil, fmt.Errorf("%w: query has %d, want %d", ErrDimensionMismatch, len(embedding), s.config.VectorDim)
	}
	if limit <= 0 {
		limit = s.config.SearchLimit
	}
	qnorm := norm(embedding)

	s.mu.RLock()
	results := make([]models.SearchResult, 0, len(s.entries))
	for _, e := range s.entries {
		if len(e.Embedding) != len(embedding) {
			continue
		}
		results = append(results, models.SearchResult{
			Document: models.Document{
				ID:       e.ID,
				URL:      e.URL,
				Title:    e.Title,
				Content:  e.Content,
				Metadata: e.Metadata,
			},
			Score: cosine(embedding, qnorm, e.Embedding, e.norm),
		})
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *MemoryStore) Close() {}

// Save writes the index to path atomically. Concurrent saves are serialized.
func (s *MemoryStore) Save(path string) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	file := memoryFile{VectorDim: s.config.VectorDim, Entries: make([]*memoryEntry, 0, len(s.entries))}
	for _, e := range s.entries {
		file.Entries = append(file.Entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(file.Entries, func(i, j int) bool { return file.Entries[i].ID < file.Entries[j].ID })

	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".idx-*")
	if err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace index: %w", err)
	}

	s.logger.Debug().Str("path", path).Int("chunks", len(file.Entries)).Msg("saved index")
	return nil
}

// Load merges the index at path into the store.
func (s *MemoryStore) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file memoryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to decode index %s: %w", path, err)
	}
	if s.config.VectorDim > 0 && file.VectorDim > 0 && file.VectorDim != s.config.VectorDim {
		return fmt.Errorf("%w: index %s has %d, want %d", ErrDimensionMismatch, path, file.VectorDim, s.config.VectorDim)
	}

	s.mu.Lock()
	for _, e := range file.Entries {
		e.norm = norm(e.Embedding)
		s.entries[e.ID] = e
	}
	s.mu.Unlock()

	s.logger.Info().Str("path", path).Int("chunks", len(file.Entries)).Msg("loaded index")
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, anorm float64, b []float32, bnorm float64) float64 {
	if anorm == 0 || bnorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (anorm * bnorm)
}
