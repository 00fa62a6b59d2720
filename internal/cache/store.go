package cache

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"kultuurivoog/internal/config"
)

// Store holds small serialized values shared by the API and the refresh
// job. Incr backs monotonic counters such as the status version.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

// Open returns a Redis store when an address is configured and an
// in-process store otherwise.
func Open(ctx context.Context, cfg config.StatusCacheConfig) (Store, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return NewMemoryStore(), nil
	}
	s := NewRedisStore(&redis.Options{
		Addr:     addr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
