package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xhad/medilex/internal/types"
	"github.com/xhad/medilex/pkg/cache"
	"github.com/xhad/medilex/pkg/metrics"
)

// CachedEmbedder serves repeated texts from a cache and embeds only the misses.
type CachedEmbedder struct {
	inner types.Embedder
	cache cache.Cache
	model string
	ttl   time.Duration
}

func NewCachedEmbedder(inner types.Embedder, c cache.Cache, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: c, model: model, ttl: ttl}
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, t := range texts {
		if raw, ok := c.cache.Get(ctx, c.key(t)); ok {
			var vec []float32
			if err := json.Unmarshal(raw, &vec); err == nil {
				out[i] = vec
				metrics.RecordCacheLookup(true)
				continue
			}
		}
		metrics.RecordCacheLookup(false)
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.CreateEmbedding(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(missTexts))
	}
	for j, vec := range vecs {
		out[missIdx[j]] = vec
		if raw, err := json.Marshal(vec); err == nil {
			c.cache.Set(ctx, c.key(missTexts[j]), raw, c.ttl)
		}
	}
	return out, nil
}

func (c *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
