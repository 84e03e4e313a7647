package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	c, err := NewRedisCache(RedisConfig{Addr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	c.Set(ctx, "emb", []byte(`[0.1,0.2]`), time.Hour)

	got, ok := c.Get(ctx, "emb")
	require.True(t, ok)
	assert.Equal(t, `[0.1,0.2]`, string(got))
	assert.True(t, mr.Exists("medilex:emb"))

	_, ok = c.Get(ctx, "missing")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.CurrentSize)
}

func TestRedisCache_TTL(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	mr.FastForward(2 * time.Minute)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisCache_Delete(t *testing.T) {
	c, _ := newTestRedis(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), 0)
	c.Delete(ctx, "k")

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	require.NoError(t, c.HealthCheck(ctx))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(RedisConfig{Addr: addr}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNew_RedisFallsBackToMemory(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	c, closer, err := New(Config{Backend: "redis", RedisAddr: addr}, zerolog.Nop())
	require.NoError(t, err)
	defer closer.Close()
	assert.IsType(t, &MemoryCache{}, c)
}

func TestNew_Redis(t *testing.T) {
	mr := miniredis.RunT(t)

	c, closer, err := New(Config{Backend: "redis", RedisAddr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	defer closer.Close()
	assert.IsType(t, &RedisCache{}, c)
}
