package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (failingStore) Delete(context.Context, string) error { return nil }
func (failingStore) Clear(context.Context) error          { return errors.New("connection refused") }
func (failingStore) Close() error                         { return nil }

func TestResponseCacheRoundTripAndStats(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(0, nil)

	key := Key("GET", "repos/acme/api/tags?per_page=100&page=1")
	_, found := c.Get(ctx, key)
	assert.False(t, found)

	c.Set(ctx, key, &Entry{StatusCode: 200, ContentType: "application/json", Body: []byte(`[{"name":"v1"}]`)}, time.Minute)

	entry, found := c.Get(ctx, key)
	require.True(t, found)
	assert.Equal(t, 200, entry.StatusCode)
	assert.Equal(t, "application/json", entry.ContentType)
	assert.JSONEq(t, `[{"name":"v1"}]`, string(entry.Body))

	assert.Equal(t, Stats{Hits: 1, Misses: 1}, c.Stats())

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, Stats{}, c.Stats())
	_, found = c.Get(ctx, key)
	assert.False(t, found)
}

func TestResponseCacheZeroTTLDoesNotStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	c := New(store, nil)

	c.Set(ctx, "k", &Entry{Body: []byte("x")}, 0)
	assert.Equal(t, 0, store.Len())
	_, found := c.Get(ctx, "k")
	assert.False(t, found)
}

func TestResponseCacheStoreFailureIsMiss(t *testing.T) {
	ctx := context.Background()
	c := New(failingStore{}, nil)

	c.Set(ctx, "k", &Entry{Body: []byte("x")}, time.Minute)
	_, found := c.Get(ctx, "k")
	assert.False(t, found)
	assert.Equal(t, int64(1), c.Stats().Misses)
	assert.Error(t, c.Clear(ctx))
}

func TestResponseCacheCorruptEntryEvicted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	c := New(store, nil)

	require.NoError(t, store.Set(ctx, "k", []byte("not json"), time.Minute))
	_, found := c.Get(ctx, "k")
	assert.False(t, found)
	assert.Equal(t, 0, store.Len())
}

func TestNilResponseCacheAlwaysMisses(t *testing.T) {
	var c *ResponseCache
	ctx := context.Background()

	c.Set(ctx, "k", &Entry{Body: []byte("x")}, time.Minute)
	_, found := c.Get(ctx, "k")
	assert.False(t, found)
	assert.NoError(t, c.Clear(ctx))
	assert.Equal(t, Stats{}, c.Stats())
}
