package github

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	"github.com/rohankatakam/patchnote/internal/cache"
	"github.com/rohankatakam/patchnote/internal/config"
	"github.com/rohankatakam/patchnote/internal/errors"
	"github.com/rohankatakam/patchnote/internal/logging"
)

const (
	// MediaTypeDiff asks for a commit as a unified diff
	MediaTypeDiff = "application/vnd.github.v3.diff"
	// MediaTypeRaw asks for raw file content
	MediaTypeRaw = "application/vnd.github.raw"
)

// GatewayOptions configures request execution
type GatewayOptions struct {
	Token             string
	BaseURL           string
	RateLimit         int // client-side requests per second, 0 = unlimited
	MaxRetries        int
	BaseBackoff       time.Duration
	LowWaterMark      int
	MaxRateLimitWaits int
	MaxRateLimitWait  time.Duration // cap on a single rate-limit wait, 0 = uncapped
	RequestTimeout    time.Duration
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// GatewayOptionsFromConfig maps the loaded configuration onto GatewayOptions
func GatewayOptionsFromConfig(cfg *config.Config, logger *slog.Logger) GatewayOptions {
	return GatewayOptions{
		Token:             cfg.GitHub.Token,
		BaseURL:           cfg.GitHub.BaseURL,
		RateLimit:         cfg.GitHub.RateLimit,
		MaxRetries:        cfg.Gateway.MaxRetries,
		BaseBackoff:       cfg.Gateway.BaseBackoff,
		LowWaterMark:      cfg.Gateway.LowWaterMark,
		MaxRateLimitWaits: cfg.Gateway.MaxRateLimitWaits,
		MaxRateLimitWait:  cfg.Gateway.MaxRateLimitWait,
		RequestTimeout:    cfg.Gateway.RequestTimeout,
		Logger:            logger,
	}
}

// RequestOptions describes one logical request
type RequestOptions struct {
	Method  string            // default GET
	Body    interface{}       // JSON-encoded when non-nil
	Accept  string            // overrides the default JSON media type
	Headers map[string]string // extra headers
	Raw     bool              // return text instead of a structured payload
}

func (o RequestOptions) method() string {
	if o.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(o.Method)
}

// Response is a successful gateway response
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Raw         bool // true when the payload is text rather than JSON
	FromCache   bool
}

// Decode unmarshals a structured payload into v
func (r *Response) Decode(v interface{}) error {
	if r.Raw {
		return fmt.Errorf("response is raw %q content, not JSON", r.ContentType)
	}
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// Text returns the payload as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// Requester is the part of Gateway that the paginator and repository need
type Requester interface {
	Execute(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error)
	Cached(ctx context.Context, endpoint string, opts RequestOptions, ttl time.Duration) (*Response, error)
}

// Gateway executes authenticated requests against the GitHub REST API
// with rate-limit tracking and bounded retry.
type Gateway struct {
	client  *github.Client
	shared  *GatewayContext
	limiter *rate.Limiter
	opts    GatewayOptions
	logger  *slog.Logger

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// NewGateway creates a gateway. shared may be nil, in which case the
// gateway gets a private context without a cache.
func NewGateway(opts GatewayOptions, shared *GatewayContext) (*Gateway, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.RequestTimeout}
	}

	client := github.NewClient(httpClient)
	if opts.Token != "" {
		client = client.WithAuthToken(opts.Token)
	}

	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, errors.ConfigErrorf("invalid GitHub base URL %q", opts.BaseURL)
		}
		client.BaseURL = u
	}

	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 500 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.MaxRateLimitWaits <= 0 {
		opts.MaxRateLimitWaits = 1
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	if shared == nil {
		shared = NewGatewayContext(nil)
	}
	if shared.Limits == nil {
		shared.Limits = NewRateLimitTracker()
	}

	return &Gateway{
		client:  client,
		shared:  shared,
		limiter: rate.NewLimiter(limit, 1),
		opts:    opts,
		logger:  logging.OrDiscard(opts.Logger).With("component", "gateway"),
		now:     time.Now,
		sleep:   sleepContext,
		jitter:  rand.Float64,
	}, nil
}

// Context returns the shared state this gateway reports into
func (g *Gateway) Context() *GatewayContext {
	return g.shared
}

// RateLimits returns a snapshot of every known rate-limit family
func (g *Gateway) RateLimits() map[string]RateLimitState {
	return g.shared.Limits.Snapshot()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Cached is the read-through variant of Execute. Only GET requests are
// cached; ttl == 0 bypasses the cache entirely.
func (g *Gateway) Cached(ctx context.Context, endpoint string, opts RequestOptions, ttl time.Duration) (*Response, error) {
	if ttl == 0 || opts.method() != http.MethodGet || g.shared.Cache == nil {
		return g.Execute(ctx, endpoint, opts)
	}

	key := cache.Key(opts.method(), endpoint)
	if opts.Accept != "" {
		key += " accept=" + opts.Accept
	}

	if entry, ok := g.shared.Cache.Get(ctx, key); ok {
		return &Response{
			StatusCode:  entry.StatusCode,
			ContentType: entry.ContentType,
			Body:        entry.Body,
			Raw:         opts.Raw || !isJSON(entry.ContentType),
			FromCache:   true,
		}, nil
	}

	resp, err := g.Execute(ctx, endpoint, opts)
	if err != nil {
		return nil, err
	}
	g.shared.Cache.Set(ctx, key, &cache.Entry{
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType,
		Body:        resp.Body,
	}, ttl)
	return resp, nil
}

type failureKind int

const (
	failurePermanent failureKind = iota
	failureTransient
	failureRateLimited
)

// Execute runs one logical request. Rate-limited responses wait and
// retry without consuming the retry budget; 5xx and network failures
// retry with exponential backoff; other 4xx fail immediately.
//
// go-github keeps its own record of an exhausted quota and answers a
// request made before the reset with a local *RateLimitError. That
// error is handled like a 403 from the server, so a wait capped short
// of the reset ends in another wait rather than a network call.
func (g *Gateway) Execute(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error) {
	family := FamilyFor(endpoint)

	if err := g.awaitQuota(ctx, family, endpoint); err != nil {
		return nil, err
	}

	attempt := 0
	rateWaits := 0
	for {
		if err := g.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		resp, ghResp, err := g.do(ctx, family, endpoint, opts)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		kind, status := classify(err, ghResp)
		switch kind {
		case failureRateLimited:
			rateWaits++
			if rateWaits > g.opts.MaxRateLimitWaits {
				g.logger.Warn("rate limit persisted, giving up",
					"endpoint", endpoint, "waits", rateWaits-1, "status", status)
				return nil, errors.TransientAPIError(err, status, attempt+rateWaits)
			}
			wait := g.rateLimitWait(family, err, ghResp)
			g.logger.Warn("rate limited, waiting",
				"endpoint", endpoint, "family", family, "status", status, "wait", wait)
			if err := g.sleep(ctx, wait); err != nil {
				return nil, err
			}

		case failureTransient:
			if attempt >= g.opts.MaxRetries {
				g.logger.Warn("request failed, retries exhausted",
					"endpoint", endpoint, "attempts", attempt+1, "error", err)
				return nil, errors.TransientAPIError(err, status, attempt+1)
			}
			backoff := g.backoff(attempt)
			attempt++
			g.logger.Debug("transient failure, retrying",
				"endpoint", endpoint, "attempt", attempt, "backoff", backoff, "error", err)
			if err := g.sleep(ctx, backoff); err != nil {
				return nil, err
			}

		default:
			if status == 0 {
				return nil, err
			}
			return nil, errors.PermanentAPIError(status, errorMessage(err)).
				WithContext("endpoint", endpoint)
		}
	}
}

// do issues a single HTTP request
func (g *Gateway) do(ctx context.Context, family, endpoint string, opts RequestOptions) (*Response, *github.Response, error) {
	req, err := g.client.NewRequest(opts.method(), strings.TrimLeft(endpoint, "/"), opts.Body)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeInternal, errors.SeverityHigh, "build request")
	}

	switch {
	case opts.Accept != "":
		req.Header.Set("Accept", opts.Accept)
	case opts.Raw:
		req.Header.Set("Accept", MediaTypeRaw)
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	var buf bytes.Buffer
	ghResp, err := g.client.Do(ctx, req, &buf)
	if ghResp != nil {
		g.recordRate(family, ghResp)
	}
	if err != nil {
		return nil, ghResp, err
	}

	contentType := ghResp.Header.Get("Content-Type")
	return &Response{
		StatusCode:  ghResp.StatusCode,
		ContentType: contentType,
		Body:        buf.Bytes(),
		Raw:         opts.Raw || !isJSON(contentType),
	}, ghResp, nil
}

// recordRate updates the tracker, but only when the response carried
// rate headers; a proxy error page must not reset known state.
func (g *Gateway) recordRate(family string, resp *github.Response) {
	if resp.Header.Get("X-RateLimit-Remaining") == "" {
		return
	}
	state := RateLimitState{
		Limit:     resp.Rate.Limit,
		Remaining: resp.Rate.Remaining,
		Reset:     resp.Rate.Reset.Time,
		UpdatedAt: g.now(),
	}
	g.shared.Limits.Update(family, state)

	if state.Remaining < g.opts.LowWaterMark {
		g.logger.Warn("rate limit low",
			"family", family, "remaining", state.Remaining, "limit", state.Limit, "reset", state.Reset)
	}
}

// awaitQuota suspends once when the family is below the low-water mark
// and the reset instant is still ahead. A reset already in the past
// never causes a wait. The wait always runs to the reset instant;
// MaxRateLimitWait only caps waits after a rate-limited response.
func (g *Gateway) awaitQuota(ctx context.Context, family, endpoint string) error {
	st, ok := g.shared.Limits.Get(family)
	if !ok || st.Remaining >= g.opts.LowWaterMark {
		return nil
	}
	wait := st.Reset.Sub(g.now())
	if wait <= 0 {
		return nil
	}
	g.logger.Info("quota below low-water mark, waiting for reset",
		"endpoint", endpoint, "family", family, "remaining", st.Remaining, "wait", wait)
	return g.sleep(ctx, wait)
}

// rateLimitWait picks how long to wait after a rate-limited response:
// Retry-After, then the reset instant, then BaseBackoff.
func (g *Gateway) rateLimitWait(family string, err error, resp *github.Response) time.Duration {
	var abuse *github.AbuseRateLimitError
	if stderrors.As(err, &abuse) && abuse.RetryAfter != nil && *abuse.RetryAfter > 0 {
		return g.capWait(*abuse.RetryAfter)
	}

	if resp != nil {
		if secs, convErr := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); convErr == nil && secs > 0 {
			return g.capWait(time.Duration(secs) * time.Second)
		}
	}

	var limited *github.RateLimitError
	if stderrors.As(err, &limited) {
		if wait := limited.Rate.Reset.Time.Sub(g.now()); wait > 0 {
			return g.capWait(wait)
		}
	}

	if st, ok := g.shared.Limits.Get(family); ok && st.Remaining == 0 {
		if wait := st.Reset.Sub(g.now()); wait > 0 {
			return g.capWait(wait)
		}
	}

	return g.capWait(g.opts.BaseBackoff)
}

func (g *Gateway) capWait(d time.Duration) time.Duration {
	if g.opts.MaxRateLimitWait > 0 && d > g.opts.MaxRateLimitWait {
		return g.opts.MaxRateLimitWait
	}
	return d
}

// maxBackoff bounds a single retry delay before jitter
const maxBackoff = 2 * time.Minute

// backoff returns BaseBackoff * 2^attempt, saturating at maxBackoff,
// plus up to 20% jitter
func (g *Gateway) backoff(attempt int) time.Duration {
	d := g.opts.BaseBackoff
	for i := 0; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	return d + time.Duration(float64(d)*0.2*g.jitter())
}

// classify maps a failed call onto the retry policy
func classify(err error, resp *github.Response) (failureKind, int) {
	var limited *github.RateLimitError
	if stderrors.As(err, &limited) {
		return failureRateLimited, statusOf(limited.Response, http.StatusForbidden)
	}
	var abuse *github.AbuseRateLimitError
	if stderrors.As(err, &abuse) {
		return failureRateLimited, statusOf(abuse.Response, http.StatusForbidden)
	}
	var accepted *github.AcceptedError
	if stderrors.As(err, &accepted) {
		// GitHub is still computing the result
		return failureTransient, http.StatusAccepted
	}

	var internal *errors.Error
	if stderrors.As(err, &internal) && internal.Type == errors.ErrorTypeInternal {
		return failurePermanent, 0
	}

	if resp == nil || resp.Response == nil {
		// network failure, or a body that could not be read
		return failureTransient, 0
	}

	status := resp.StatusCode
	switch {
	case status == http.StatusTooManyRequests:
		return failureRateLimited, status
	case status == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return failureRateLimited, status
	case status >= 500:
		return failureTransient, status
	case status >= 400:
		return failurePermanent, status
	default:
		// 2xx with an unreadable body
		return failureTransient, status
	}
}

func statusOf(resp *http.Response, fallback int) int {
	if resp == nil {
		return fallback
	}
	return resp.StatusCode
}

func errorMessage(err error) string {
	var er *github.ErrorResponse
	if stderrors.As(err, &er) && er.Message != "" {
		return er.Message
	}
	return err.Error()
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
