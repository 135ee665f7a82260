package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rohankatakam/patchnote/internal/logging"
)

// Entry is a cached gateway response
type Entry struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Stats reports cache effectiveness since creation or the last Clear
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// ResponseCache is a read-through cache of gateway responses. It is
// advisory: any failure of the underlying store is logged and treated
// as a miss, so callers behave correctly when it always misses.
type ResponseCache struct {
	store  Store
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New wraps a store
func New(store Store, logger *slog.Logger) *ResponseCache {
	return &ResponseCache{
		store:  store,
		logger: logging.OrDiscard(logger).With("component", "cache"),
	}
}

// NewMemory returns a cache backed by a fresh MemoryStore
func NewMemory(cleanupInterval time.Duration, logger *slog.Logger) *ResponseCache {
	return New(NewMemoryStore(cleanupInterval), logger)
}

// Get returns the entry stored under key. A nil cache always misses.
func (c *ResponseCache) Get(ctx context.Context, key string) (*Entry, bool) {
	if c == nil || c.store == nil {
		return nil, false
	}

	raw, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	if !found {
		c.misses.Add(1)
		c.logger.Debug("cache miss", "key", key)
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("cache entry corrupt, evicting", "key", key, "error", err)
		_ = c.store.Delete(ctx, key)
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return &entry, true
}

// Set stores entry under key. ttl == 0 disables caching for the call;
// ttl < 0 keeps the entry until Clear.
func (c *ResponseCache) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) {
	if c == nil || c.store == nil || entry == nil || ttl == 0 {
		return
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("cache entry encode failed", "key", key, "error", err)
		return
	}
	if ttl < 0 {
		ttl = NoExpiration
	}
	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
		return
	}
	c.logger.Debug("cache set", "key", key, "ttl", ttl)
}

// Clear drops every entry and resets the counters
func (c *ResponseCache) Clear(ctx context.Context) error {
	if c == nil || c.store == nil {
		return nil
	}
	if err := c.store.Clear(ctx); err != nil {
		return err
	}
	c.hits.Store(0)
	c.misses.Store(0)
	c.logger.Info("cache cleared")
	return nil
}

// Stats returns hit and miss counters
func (c *ResponseCache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Close releases the underlying store
func (c *ResponseCache) Close() error {
	if c == nil || c.store == nil {
		return nil
	}
	return c.store.Close()
}
