package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rohankatakam/patchnote/internal/errors"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  ❌ %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  ⚠️  %s\n", warn))
		}
	}

	return sb.String()
}

// Validate validates the whole configuration
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true}

	c.validateGitHub(result)
	c.validateGateway(result)
	c.validateCache(result)
	c.validateSelection(result)

	return result
}

// Require returns a config error when validation fails
func (c *Config) Require() error {
	result := c.Validate()
	if result.HasErrors() {
		return errors.ConfigError(result.Error())
	}
	return nil
}

func (c *Config) validateGitHub(result *ValidationResult) {
	if c.GitHub.Token == "" {
		result.AddWarning("GITHUB_TOKEN is not set. Only public repositories are reachable and the rate limit is 60 requests/hour.")
	}

	if c.GitHub.BaseURL == "" {
		result.AddError("github.base_url is required")
	} else if u, err := url.Parse(c.GitHub.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		result.AddError("github.base_url is invalid: %q", c.GitHub.BaseURL)
	} else if u.Scheme != "https" && u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		result.AddWarning("github.base_url uses %s, credentials will be sent in clear text", u.Scheme)
	}

	if c.GitHub.RateLimit < 0 {
		result.AddError("GITHUB_RATE_LIMIT must not be negative, got %d", c.GitHub.RateLimit)
	}
}

func (c *Config) validateGateway(result *ValidationResult) {
	g := c.Gateway
	if g.PerPage <= 0 || g.PerPage > 100 {
		result.AddError("gateway.per_page must be between 1 and 100, got %d", g.PerPage)
	}
	if g.MaxPages <= 0 {
		result.AddError("gateway.max_pages must be positive, got %d", g.MaxPages)
	}
	if g.MaxRetries < 0 || g.MaxRetries > MaxGatewayRetries {
		result.AddError("gateway.max_retries must be between 0 and %d, got %d", MaxGatewayRetries, g.MaxRetries)
	}
	if g.BaseBackoff <= 0 {
		result.AddError("gateway.base_backoff must be positive, got %s", g.BaseBackoff)
	}
	if g.LowWaterMark < 0 {
		result.AddError("gateway.low_water_mark must not be negative, got %d", g.LowWaterMark)
	}
	if g.MaxRateLimitWait <= 0 {
		result.AddWarning("gateway.max_rate_limit_wait is not set, rate-limit waits are unbounded")
	}
}

func (c *Config) validateCache(result *ValidationResult) {
	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if c.Cache.RedisAddr == "" {
			result.AddError("cache.redis_addr is required for the redis backend")
		}
	case CacheBackendBolt:
		if c.Cache.BoltPath == "" {
			result.AddError("cache.bolt_path is required for the bolt backend")
		}
	default:
		result.AddError("cache.backend must be one of memory, redis, bolt; got %q", c.Cache.Backend)
	}

	if c.Cache.ShortTTL > c.Cache.MediumTTL || c.Cache.MediumTTL > c.Cache.LongTTL {
		result.AddWarning("cache TTL tiers are not ascending (short %s, medium %s, long %s)",
			c.Cache.ShortTTL, c.Cache.MediumTTL, c.Cache.LongTTL)
	}
}

func (c *Config) validateSelection(result *ValidationResult) {
	s := c.Selection
	if s.LabelConcurrency < 1 {
		result.AddWarning("selection.label_concurrency < 1, labels will be resolved sequentially")
	}
	if s.StatsConcurrency < 1 {
		result.AddWarning("selection.stats_concurrency < 1, stats will be resolved sequentially")
	}
	if s.StatsSampleSize < 1 {
		result.AddError("selection.stats_sample_size must be positive, got %d", s.StatsSampleSize)
	}
	if s.ReleaseLookbackDays < 1 {
		result.AddError("selection.release_lookback_days must be positive, got %d", s.ReleaseLookbackDays)
	}
}
