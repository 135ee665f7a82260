package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rohankatakam/patchnote/internal/config"
)

// NewFromConfig builds the ResponseCache for the configured backend
func NewFromConfig(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (*ResponseCache, error) {
	var store Store
	switch cfg.Backend {
	case "", config.CacheBackendMemory:
		store = NewMemoryStore(cfg.CleanupInterval)
	case config.CacheBackendRedis:
		rs, err := NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			return nil, err
		}
		store = rs
	case config.CacheBackendBolt:
		bs, err := NewBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt cache at %s: %w", cfg.BoltPath, err)
		}
		store = bs
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
	return New(store, logger), nil
}
