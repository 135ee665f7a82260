package github

import (
	"strings"
	"sync"
	"time"

	"github.com/rohankatakam/patchnote/internal/cache"
)

// Rate-limit families. GitHub tracks separate quotas for each.
const (
	FamilyCore    = "core"
	FamilySearch  = "search"
	FamilyGraphQL = "graphql"
)

// FamilyFor returns the rate-limit family an endpoint is billed to
func FamilyFor(endpoint string) string {
	path := strings.TrimLeft(endpoint, "/")
	switch {
	case strings.HasPrefix(path, "search/"):
		return FamilySearch
	case path == "graphql" || strings.HasPrefix(path, "graphql?"):
		return FamilyGraphQL
	default:
		return FamilyCore
	}
}

// RateLimitState is the last quota observed for one family
type RateLimitState struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RateLimitTracker holds per-family quota state. It is shared by every
// request issued through a GatewayContext and is safe for concurrent use.
type RateLimitTracker struct {
	mu     sync.Mutex
	states map[string]RateLimitState
}

// NewRateLimitTracker creates an empty tracker
func NewRateLimitTracker() *RateLimitTracker {
	return &RateLimitTracker{states: make(map[string]RateLimitState)}
}

// Update records the quota observed on a response
func (t *RateLimitTracker) Update(family string, state RateLimitState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[family] = state
}

// Get returns the last state for family
func (t *RateLimitTracker) Get(family string) (RateLimitState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.states[family]
	return st, ok
}

// Snapshot copies every known family state
func (t *RateLimitTracker) Snapshot() map[string]RateLimitState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]RateLimitState, len(t.states))
	for k, v := range t.states {
		out[k] = v
	}
	return out
}

// GatewayContext carries the process-wide shared state of the API layer:
// the response cache and the rate-limit tracker. Build one per process
// and pass it to every Gateway; tests build a fresh one per case.
type GatewayContext struct {
	Cache  *cache.ResponseCache
	Limits *RateLimitTracker
}

// NewGatewayContext creates a context around c. A nil cache disables caching.
func NewGatewayContext(c *cache.ResponseCache) *GatewayContext {
	return &GatewayContext{
		Cache:  c,
		Limits: NewRateLimitTracker(),
	}
}
