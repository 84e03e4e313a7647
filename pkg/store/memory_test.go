package store_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/medilex/internal/models"
	"github.com/xhad/medilex/pkg/store"
)

func testDocs() []models.ProcessedDocument {
	return []models.ProcessedDocument{
		{
			Document: models.Document{
				ID:       "fever",
				URL:      "file://corpus/fever.txt",
				Title:    "fever",
				Metadata: map[string]interface{}{"source": "corpus/fever.txt"},
			},
			Chunks:    []string{"Fever is a raised body temperature.", "Paracetamol lowers fever."},
			Embedding: [][]float32{{1, 0, 0}, {0.8, 0.6, 0}},
		},
		{
			Document: models.Document{
				ID:       "diet",
				Title:    "diet",
				Metadata: map[string]interface{}{"source": "corpus/diet.txt"},
			},
			Chunks:    []string{"Eat khichdi and soup when unwell."},
			Embedding: [][]float32{{0, 0, 1}},
		},
	}
}

func TestMemoryStore_Query(t *testing.T) {
	s, err := store.NewMemoryStore(store.MemoryConfig{VectorDim: 3})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, testDocs()))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := s.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "fever_0", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "fever_1", results[1].ID)
	assert.InDelta(t, 0.8, results[1].Score, 1e-6)
	assert.Equal(t, "Paracetamol lowers fever.", results[1].Content)
	assert.Equal(t, "corpus/fever.txt", results[1].Source())

	results, err = s.Query(ctx, []float32{0, 0, 2}, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "diet_0", results[0].ID)
}

func TestMemoryStore_Upsert(t *testing.T) {
	s, err := store.NewMemoryStore(store.MemoryConfig{VectorDim: 3})
	require.NoError(t, err)
	ctx := context.Background()

	docs := testDocs()
	require.NoError(t, s.Store(ctx, docs))
	docs[0].Chunks[0] = "Fever means a temperature above 38C."
	require.NoError(t, s.Store(ctx, docs[:1]))

	n, _ := s.Count(ctx)
	assert.Equal(t, 3, n)

	results, err := s.Query(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "Fever means a temperature above 38C.", results[0].Content)
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	s, err := store.NewMemoryStore(store.MemoryConfig{VectorDim: 4})
	require.NoError(t, err)
	ctx := context.Background()

	err = s.Store(ctx, testDocs())
	assert.ErrorIs(t, err, store.ErrDimensionMismatch)

	_, err = s.Query(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, store.ErrDimensionMismatch)
}

func TestMemoryStore_ChunkEmbeddingCountMismatch(t *testing.T) {
	s, err := store.NewMemoryStore(store.MemoryConfig{})
	require.NoError(t, err)

	docs := testDocs()
	docs[0].Embedding = docs[0].Embedding[:1]
	assert.Error(t, s.Store(context.Background(), docs))
}

func TestMemoryStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "medilex_index.json")
	ctx := context.Background()

	s, err := store.NewMemoryStore(store.MemoryConfig{VectorDim: 3, Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Store(ctx, testDocs()))
	s.Close()

	reopened, err := store.NewMemoryStore(store.MemoryConfig{VectorDim: 3, Path: path})
	require.NoError(t, err)

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := reopened.Query(ctx, []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, "Eat khichdi and soup when unwell.", results[0].Content)
	assert.Equal(t, "corpus/diet.txt", results[0].Source())

	_, err = store.NewMemoryStore(store.MemoryConfig{VectorDim: 5, Path: path})
	assert.ErrorIs(t, err, store.ErrDimensionMismatch)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s, err := store.NewMemoryStore(store.MemoryConfig{VectorDim: 3})
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Store(ctx, testDocs()))
		}()
		go func() {
			defer wg.Done()
			_, err := s.Query(ctx, []float32{1, 1, 1}, 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestMemoryStore_ConcurrentPersistence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medilex_index.json")
	ctx := context.Background()

	s, err := store.NewMemoryStore(store.MemoryConfig{VectorDim: 3, Path: path})
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc := models.ProcessedDocument{
				Document:  models.Document{ID: fmt.Sprintf("doc-%d", i)},
				Chunks:    []string{fmt.Sprintf("chunk %d", i)},
				Embedding: [][]float32{{float32(i + 1), 1, 0}},
			}
			assert.NoError(t, s.Store(ctx, []models.ProcessedDocument{doc}))
		}()
	}
	wg.Wait()

	reopened, err := store.NewMemoryStore(store.MemoryConfig{VectorDim: 3, Path: path})
	require.NoError(t, err)
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, writers, n)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1, "temporary index files left behind")
	assert.Equal(t, "medilex_index.json", files[0].Name())
}

func TestMemoryStore_SanitizesInvalidUTF8(t *testing.T) {
	s, err := store.NewMemoryStore(store.MemoryConfig{VectorDim: 3})
	require.NoError(t, err)
	ctx := context.Background()

	docs := []models.ProcessedDocument{{
		Document:  models.Document{ID: "bad"},
		Chunks:    []string{"dose \xff500 mg"},
		Embedding: [][]float32{{1, 0, 0}},
	}}
	require.NoError(t, s.Store(ctx, docs))

	results, err := s.Query(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "dose 500 mg", results[0].Content)
}
