package llm_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/medilex/pkg/cache"
	"github.com/xhad/medilex/pkg/llm"
)

func TestCachedEmbedder(t *testing.T) {
	inner := &lengthEmbedder{}
	mem := cache.NewMemoryCache(0)
	defer mem.Close()

	emb := llm.NewCachedEmbedder(inner, mem, "nomic", time.Hour)
	ctx := context.Background()

	first, err := emb.CreateEmbedding(ctx, []string{"fever", "cough"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())

	second, err := emb.CreateEmbedding(ctx, []string{"cough", "rash", "fever"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())

	require.Len(t, inner.batches, 2)
	assert.Equal(t, []string{"rash"}, inner.batches[1])

	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])
	assert.Equal(t, float32(4), second[1][0])

	vec, err := emb.EmbedQuery(ctx, "fever")
	require.NoError(t, err)
	assert.Equal(t, first[0], vec)
	assert.Equal(t, int32(2), inner.calls.Load())
}

func TestCachedEmbedder_ModelIsPartOfKey(t *testing.T) {
	inner := &lengthEmbedder{}
	mem := cache.NewMemoryCache(0)
	defer mem.Close()
	ctx := context.Background()

	_, err := llm.NewCachedEmbedder(inner, mem, "model-a", time.Hour).CreateEmbedding(ctx, []string{"fever"})
	require.NoError(t, err)
	_, err = llm.NewCachedEmbedder(inner, mem, "model-b", time.Hour).CreateEmbedding(ctx, []string{"fever"})
	require.NoError(t, err)

	assert.Equal(t, int32(2), inner.calls.Load())
}
