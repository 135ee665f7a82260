package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by RedisStore
const DefaultRedisPrefix = "patchnote:"

// RedisStore shares cached responses across processes through Redis
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
	prefix string
}

// NewRedisStore connects to Redis and verifies connectivity.
// Credentials come from configuration, never from code.
func NewRedisStore(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address missing")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password, // Empty string if no password
		DB:       db,
	})

	// Fail fast on startup
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "redis")
	logger.Info("redis client connected", "addr", addr, "db", db)

	return &RedisStore{
		client: client,
		logger: logger,
		prefix: DefaultRedisPrefix,
	}, nil
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Close closes the Redis client connection
func (s *RedisStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	s.logger.Info("redis client closed")
	return nil
}

// HealthCheck verifies Redis connectivity
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// Get retrieves a cached value. A miss is not an error.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed for key %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores a value. Redis treats a zero expiration as "keep forever".
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed for key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key from cache
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed for key %s: %w", key, err)
	}
	return nil
}

// Clear deletes every key under the store prefix
func (s *RedisStore) Clear(ctx context.Context) error {
	deleted, err := s.deletePattern(ctx, s.prefix+"*")
	if err != nil {
		return err
	}
	s.logger.Info("cache cleared", "deleted", deleted)
	return nil
}

func (s *RedisStore) deletePattern(ctx context.Context, pattern string) (int64, error) {
	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error
		batch, cursor, err = s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return 0, fmt.Errorf("redis scan failed for pattern %s: %w", pattern, err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return 0, nil
	}

	deleted, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis delete failed for pattern %s: %w", pattern, err)
	}
	return deleted, nil
}
