package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps entries in process memory. Expired entries are
// evicted lazily on Get and swept by the go-cache janitor.
type MemoryStore struct {
	items *gocache.Cache
}

// NewMemoryStore creates a memory store. cleanupInterval <= 0 disables
// the background sweep.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		items: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, found := m.items.Get(key)
	if !found {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		m.items.Delete(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = gocache.NoExpiration
	}
	m.items.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.items.Delete(key)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.items.Flush()
	return nil
}

// Len reports the number of stored items, including expired ones not
// yet swept
func (m *MemoryStore) Len() int {
	return m.items.ItemCount()
}

func (m *MemoryStore) Close() error {
	return nil
}
