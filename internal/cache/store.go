package cache

import (
	"context"
	"time"
)

// NoExpiration marks an entry that never expires
const NoExpiration time.Duration = -1

// Store is a byte-oriented TTL store. Implementations must be safe
// for concurrent use. A ttl < 0 means the entry never expires.
type Store interface {
	// Get returns the value and true, or false on a miss. Expired
	// entries are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}
