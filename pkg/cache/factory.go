package cache

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Backend   string // memory, redis or none
	RedisAddr string
	RedisDB   int
}

// New builds the configured cache. An unreachable Redis falls back to memory so
// the pipeline keeps working offline. The returned Closer releases the backend.
func New(cfg Config, logger zerolog.Logger) (Cache, io.Closer, error) {
	switch cfg.Backend {
	case "", "memory":
		c := NewMemoryCache(10 * time.Minute)
		return c, c, nil
	case "none":
		return NoOpCache{}, NoOpCache{}, nil
	case "redis":
		addr := cfg.RedisAddr
		if addr == "" {
			addr = "localhost:6379"
		}
		rc, err := NewRedisCache(RedisConfig{Addr: addr, DB: cfg.RedisDB}, logger)
		if err != nil {
			logger.Warn().Err(err).Str("addr", addr).Msg("redis unavailable, falling back to memory cache")
			c := NewMemoryCache(10 * time.Minute)
			return c, c, nil
		}
		return rc, rc, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
