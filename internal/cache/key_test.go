package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyNormalizesQueryOrder(t *testing.T) {
	a := Key("get", "/repos/acme/api/commits?until=2024-01-04&since=2024-01-01&per_page=100")
	b := Key("GET", "repos/acme/api/commits?per_page=100&since=2024-01-01&until=2024-01-04")
	assert.Equal(t, a, b)
	assert.Equal(t, "GET repos/acme/api/commits?per_page=100&since=2024-01-01&until=2024-01-04", a)
}

func TestKeySortsRepeatedValues(t *testing.T) {
	assert.Equal(t,
		Key("GET", "search?q=b&q=a"),
		Key("GET", "search?q=a&q=b"))
}

func TestKeyDistinguishesRequests(t *testing.T) {
	keys := []string{
		Key("GET", "repos/acme/api/tags"),
		Key("GET", "repos/acme/web/tags"),
		Key("GET", "repos/acme/api/tags?page=2"),
		Key("GET", "repos/acme/api/tags?page=2&per_page=50"),
		Key("HEAD", "repos/acme/api/tags"),
		Key("GET", "repos/acme/api/commits?since=2024-01-01"),
		Key("GET", "repos/acme/api/commits?since=2024-01-02"),
	}

	seen := make(map[string]bool)
	for _, k := range keys {
		assert.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}

func TestKeyDefaultsMethod(t *testing.T) {
	assert.Equal(t, "GET repos/acme/api", Key("", "repos/acme/api"))
}
