package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-hangar/pkg/config"
)

// New creates the store selected by cfg.Backend. longestTTL is the longest
// ttl callers will Set; the memory store keeps entries at least that long.
func New(ctx context.Context, cfg config.CacheConfig, longestTTL time.Duration, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case config.CacheBackendMemory, "":
		maxTTL := max(DefaultMaxTTL, longestTTL)
		logger.Info("using in-memory result cache",
			zap.Int("size", cfg.MemorySize),
			zap.Duration("max_ttl", maxTTL))
		return NewMemoryStore(cfg.MemorySize, maxTTL), nil
	case config.CacheBackendRedis:
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		logger.Info("using redis result cache",
			zap.String("addr", cfg.Redis.Addr()),
			zap.Int("db", cfg.Redis.DB))
		return NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}
