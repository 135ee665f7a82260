package github

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/patchnote/internal/cache"
	"github.com/rohankatakam/patchnote/internal/errors"
)

// fakeClock replaces the gateway's time source and sleep; sleeping
// advances the clock instantly and records the duration.
type fakeClock struct {
	mu     sync.Mutex
	t      time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 4, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.t = c.t.Add(d)
	}
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func newTestGateway(t *testing.T, handler http.Handler, shared *GatewayContext) (*Gateway, *fakeClock) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gw, err := NewGateway(GatewayOptions{
		Token:             "ghp_test",
		BaseURL:           srv.URL,
		MaxRetries:        3,
		BaseBackoff:       100 * time.Millisecond,
		LowWaterMark:      10,
		MaxRateLimitWaits: 3,
		MaxRateLimitWait:  time.Hour,
	}, shared)
	require.NoError(t, err)

	clock := newFakeClock()
	gw.now = clock.Now
	gw.sleep = clock.Sleep
	gw.jitter = func() float64 { return 0 }
	return gw, clock
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func TestExecuteDecodesJSON(t *testing.T) {
	var auth string
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "/repos/acme/api/tags", r.URL.Path)
		writeJSON(w, http.StatusOK, `[{"name":"v1.0"}]`)
	}), nil)

	resp, err := gw.Execute(context.Background(), "repos/acme/api/tags", RequestOptions{})
	require.NoError(t, err)
	assert.False(t, resp.Raw)

	var tags []struct{ Name string }
	require.NoError(t, resp.Decode(&tags))
	require.Len(t, tags, 1)
	assert.Equal(t, "v1.0", tags[0].Name)
	assert.Equal(t, "Bearer ghp_test", auth)
}

func TestExecuteRawText(t *testing.T) {
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, MediaTypeDiff, r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "diff --git a/x b/x\n")
	}), nil)

	resp, err := gw.Execute(context.Background(), "repos/acme/api/commits/abc", RequestOptions{Accept: MediaTypeDiff, Raw: true})
	require.NoError(t, err)
	assert.True(t, resp.Raw)
	assert.Equal(t, "diff --git a/x b/x\n", resp.Text())
	assert.Error(t, resp.Decode(&struct{}{}))
}

func TestExecuteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	gw, clock := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusBadGateway, `{"message":"bad gateway"}`)
			return
		}
		writeJSON(w, http.StatusOK, `[]`)
	}), nil)

	_, err := gw.Execute(context.Background(), "repos/acme/api/tags", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, clock.Sleeps())
}

func TestExecuteRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	gw, clock := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusServiceUnavailable, `{"message":"unavailable"}`)
	}), nil)

	_, err := gw.Execute(context.Background(), "repos/acme/api/tags", RequestOptions{})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrTransientAPI))
	assert.Equal(t, http.StatusServiceUnavailable, errors.StatusCode(err))
	assert.Equal(t, int32(4), calls.Load())
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond,
	}, clock.Sleeps())
}

func TestExecuteBackoffJitterBounded(t *testing.T) {
	gw, _ := newTestGateway(t, http.NotFoundHandler(), nil)
	gw.jitter = func() float64 { return 1 }

	assert.Equal(t, 120*time.Millisecond, gw.backoff(0))
	assert.Equal(t, 480*time.Millisecond, gw.backoff(2))
}

func TestBackoffSaturates(t *testing.T) {
	gw, _ := newTestGateway(t, http.NotFoundHandler(), nil)

	assert.Equal(t, maxBackoff, gw.backoff(40))
	assert.Equal(t, maxBackoff, gw.backoff(200))
	for attempt := 0; attempt < 100; attempt++ {
		assert.Positive(t, gw.backoff(attempt))
	}
}

func TestExecutePermanentErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	gw, clock := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, `{"message":"Not Found"}`)
	}), nil)

	_, err := gw.Execute(context.Background(), "repos/acme/missing/tags", RequestOptions{})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrPermanentAPI))
	assert.Equal(t, http.StatusNotFound, errors.StatusCode(err))
	assert.Contains(t, err.Error(), "Not Found")
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, clock.Sleeps())
}

func TestExecuteForbiddenWithoutRateSemanticsIsPermanent(t *testing.T) {
	var calls atomic.Int32
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("X-RateLimit-Remaining", "4000")
		writeJSON(w, http.StatusForbidden, `{"message":"Resource not accessible by integration"}`)
	}), nil)

	_, err := gw.Execute(context.Background(), "repos/acme/api/tags", RequestOptions{})
	assert.True(t, stderrors.Is(err, errors.ErrPermanentAPI))
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecuteRateLimitedWaitsForReset(t *testing.T) {
	var calls atomic.Int32
	var clock *fakeClock
	var reset time.Time
	var mu sync.Mutex
	var secondCallAt time.Time

	gw, clock := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("X-RateLimit-Limit", "5000")
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			writeJSON(w, http.StatusForbidden, `{"message":"API rate limit exceeded"}`)
			return
		}
		mu.Lock()
		secondCallAt = clock.Now()
		mu.Unlock()
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Add(time.Hour).Unix(), 10))
		writeJSON(w, http.StatusOK, `[]`)
	}), nil)
	reset = clock.Now().Add(30 * time.Second)

	_, err := gw.Execute(context.Background(), "repos/acme/api/tags", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []time.Duration{30 * time.Second}, clock.Sleeps())
	mu.Lock()
	assert.False(t, secondCallAt.Before(reset))
	mu.Unlock()

	st, ok := gw.Context().Limits.Get(FamilyCore)
	require.True(t, ok)
	assert.Equal(t, 4999, st.Remaining)
}

func TestExecuteTooManyRequestsUsesRetryAfter(t *testing.T) {
	var calls atomic.Int32
	gw, clock := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			writeJSON(w, http.StatusTooManyRequests, `{"message":"slow down"}`)
			return
		}
		writeJSON(w, http.StatusOK, `[]`)
	}), nil)

	_, err := gw.Execute(context.Background(), "repos/acme/api/tags", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{7 * time.Second}, clock.Sleeps())
}

func TestRateLimitWaitsDoNotConsumeRetries(t *testing.T) {
	var calls atomic.Int32
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1, 3, 5:
			writeJSON(w, http.StatusTooManyRequests, `{"message":"slow down"}`)
		case 2, 4, 6:
			writeJSON(w, http.StatusInternalServerError, `{"message":"boom"}`)
		default:
			writeJSON(w, http.StatusOK, `[]`)
		}
	}), nil)

	_, err := gw.Execute(context.Background(), "repos/acme/api/tags", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(7), calls.Load())
}

func TestRateLimitWaitsAreBounded(t *testing.T) {
	var calls atomic.Int32
	gw, clock := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusTooManyRequests, `{"message":"slow down"}`)
	}), nil)

	_, err := gw.Execute(context.Background(), "repos/acme/api/tags", RequestOptions{})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrTransientAPI))
	assert.Equal(t, http.StatusTooManyRequests, errors.StatusCode(err))
	assert.Equal(t, "upstream service is rate-limited, try again later", errors.UserMessage(err))
	assert.Equal(t, int32(4), calls.Load())
	assert.Len(t, clock.Sleeps(), 3)
}

func TestPreemptiveWaitBelowLowWaterMark(t *testing.T) {
	var calls atomic.Int32
	var reset time.Time
	var mu sync.Mutex
	var requestTimes []time.Time
	var clock *fakeClock

	gw, clock := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		mu.Lock()
		requestTimes = append(requestTimes, clock.Now())
		mu.Unlock()
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		writeJSON(w, http.StatusOK, `[]`)
	}), nil)
	reset = clock.Now().Add(45 * time.Second)

	ctx := context.Background()
	_, err := gw.Execute(ctx, "repos/acme/api/tags", RequestOptions{})
	require.NoError(t, err)
	assert.Empty(t, clock.Sleeps())

	_, err = gw.Execute(ctx, "repos/acme/api/releases", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{45 * time.Second}, clock.Sleeps())
	mu.Lock()
	require.Len(t, requestTimes, 2)
	assert.False(t, requestTimes[1].Before(reset))
	mu.Unlock()

	// the reset instant has passed: no further wait even though the
	// recorded quota is still exhausted
	_, err = gw.Execute(ctx, "repos/acme/api/labels", RequestOptions{})
	require.NoError(t, err)
	assert.Len(t, clock.Sleeps(), 1)
}

func TestPreemptiveWaitRunsToReset(t *testing.T) {
	gw, clock := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[]`)
	}), nil)
	gw.opts.MaxRateLimitWait = time.Minute
	reset := clock.Now().Add(2 * time.Hour)
	gw.Context().Limits.Update(FamilyCore, RateLimitState{Remaining: 0, Reset: reset})

	_, err := gw.Execute(context.Background(), "repos/acme/api/tags", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Hour}, clock.Sleeps())
	assert.False(t, clock.Now().Before(reset))
}

func TestExecuteRateLimitedWaitIsCapped(t *testing.T) {
	var calls atomic.Int32
	// go-github compares against the wall clock, so the reset must be
	// ahead of real time for its local quota check to apply
	reset := time.Now().Add(time.Hour)
	gw, clock := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		writeJSON(w, http.StatusForbidden, `{"message":"API rate limit exceeded"}`)
	}), nil)
	gw.opts.MaxRateLimitWait = 2 * time.Minute
	gw.opts.MaxRateLimitWaits = 2

	_, err := gw.Execute(context.Background(), "repos/acme/api/tags", RequestOptions{})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrTransientAPI))
	assert.Equal(t, http.StatusForbidden, errors.StatusCode(err))
	assert.Equal(t, []time.Duration{2 * time.Minute, 2 * time.Minute}, clock.Sleeps())
	// the retries inside the reset window are answered by go-github
	// without reaching the server
	assert.Equal(t, int32(1), calls.Load())
}

func TestPreemptiveWaitIsPerFamily(t *testing.T) {
	gw, clock := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"items":[]}`)
	}), nil)
	gw.Context().Limits.Update(FamilySearch, RateLimitState{Remaining: 0, Reset: clock.Now().Add(time.Minute)})

	_, err := gw.Execute(context.Background(), "repos/acme/api/tags", RequestOptions{})
	require.NoError(t, err)
	assert.Empty(t, clock.Sleeps())

	_, err = gw.Execute(context.Background(), "search/commits?q=fix", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Minute}, clock.Sleeps())
}

func TestMissingRateHeadersKeepState(t *testing.T) {
	gw, clock := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[]`)
	}), nil)
	known := RateLimitState{Remaining: 4000, Reset: clock.Now().Add(time.Hour)}
	gw.Context().Limits.Update(FamilyCore, known)

	_, err := gw.Execute(context.Background(), "repos/acme/api/tags", RequestOptions{})
	require.NoError(t, err)

	st, _ := gw.Context().Limits.Get(FamilyCore)
	assert.Equal(t, known, st)
}

func TestExecuteCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"message":"boom"}`)
	}), nil)
	gw.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}

	_, err := gw.Execute(ctx, "repos/acme/api/tags", RequestOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteCancelledBeforeRequest(t *testing.T) {
	var calls atomic.Int32
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, `[]`)
	}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gw.Execute(ctx, "repos/acme/api/tags", RequestOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls.Load())
}

func TestSleepContextHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCachedHitsWithinTTL(t *testing.T) {
	var calls atomic.Int32
	shared := NewGatewayContext(cache.NewMemory(0, nil))
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, `[{"name":"v1.0"}]`)
	}), shared)

	ctx := context.Background()
	first, err := gw.Cached(ctx, "repos/acme/api/tags?per_page=100&page=1", RequestOptions{}, time.Minute)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := gw.Cached(ctx, "repos/acme/api/tags?page=1&per_page=100", RequestOptions{}, time.Minute)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.False(t, second.Raw)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, cache.Stats{Hits: 1, Misses: 1}, shared.Cache.Stats())
}

func TestCachedExpiresAfterTTL(t *testing.T) {
	var calls atomic.Int32
	shared := NewGatewayContext(cache.NewMemory(0, nil))
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, `[]`)
	}), shared)

	ctx := context.Background()
	ttl := 30 * time.Millisecond
	_, err := gw.Cached(ctx, "repos/acme/api/tags", RequestOptions{}, ttl)
	require.NoError(t, err)
	_, err = gw.Cached(ctx, "repos/acme/api/tags", RequestOptions{}, ttl)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	time.Sleep(2 * ttl)

	_, err = gw.Cached(ctx, "repos/acme/api/tags", RequestOptions{}, ttl)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCachedKeysByAcceptAndZeroTTL(t *testing.T) {
	var calls atomic.Int32
	shared := NewGatewayContext(cache.NewMemory(0, nil))
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Accept") == MediaTypeDiff {
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "diff")
			return
		}
		writeJSON(w, http.StatusOK, `{"sha":"abc"}`)
	}), shared)

	ctx := context.Background()
	endpoint := "repos/acme/api/commits/abc"

	jsonResp, err := gw.Cached(ctx, endpoint, RequestOptions{}, time.Hour)
	require.NoError(t, err)
	diffResp, err := gw.Cached(ctx, endpoint, RequestOptions{Accept: MediaTypeDiff, Raw: true}, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, jsonResp.Body, diffResp.Body)
	assert.Equal(t, int32(2), calls.Load())

	_, err = gw.Cached(ctx, "repos/acme/api/commits", RequestOptions{}, 0)
	require.NoError(t, err)
	_, err = gw.Cached(ctx, "repos/acme/api/commits", RequestOptions{}, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(4), calls.Load())
}

func TestCachedDoesNotStoreFailures(t *testing.T) {
	var calls atomic.Int32
	shared := NewGatewayContext(cache.NewMemory(0, nil))
	gw, _ := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, `{"message":"Not Found"}`)
	}), shared)

	for i := 0; i < 2; i++ {
		_, err := gw.Cached(context.Background(), "repos/acme/api/tags", RequestOptions{}, time.Hour)
		require.Error(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestSharedContextAcrossGateways(t *testing.T) {
	shared := NewGatewayContext(nil)
	var reset time.Time
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "3")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		writeJSON(w, http.StatusOK, `[]`)
	})

	first, clock := newTestGateway(t, handler, shared)
	reset = clock.Now().Add(10 * time.Second)
	_, err := first.Execute(context.Background(), "repos/acme/api/tags", RequestOptions{})
	require.NoError(t, err)

	second, clock2 := newTestGateway(t, handler, shared)
	_, err = second.Execute(context.Background(), "repos/acme/web/tags", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{10 * time.Second}, clock2.Sleeps())
}

func TestFamilyFor(t *testing.T) {
	assert.Equal(t, FamilyCore, FamilyFor("repos/acme/api/commits"))
	assert.Equal(t, FamilySearch, FamilyFor("/search/commits?q=x"))
	assert.Equal(t, FamilyGraphQL, FamilyFor("graphql"))
}

func TestNewGatewayRejectsBadBaseURL(t *testing.T) {
	_, err := NewGateway(GatewayOptions{BaseURL: "::not a url"}, nil)
	assert.True(t, stderrors.Is(err, errors.ErrConfig))
}
