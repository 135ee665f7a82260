package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// GitHub API access
	GitHub GitHubConfig `yaml:"github" mapstructure:"github"`

	// Request execution: paging, retries, rate-limit handling
	Gateway GatewayConfig `yaml:"gateway" mapstructure:"gateway"`

	// Response cache tiers and backend
	Cache CacheConfig `yaml:"cache" mapstructure:"cache"`

	// Commit selection tuning
	Selection SelectionConfig `yaml:"selection" mapstructure:"selection"`

	// Logging
	Log LogConfig `yaml:"log" mapstructure:"log"`
}

type GitHubConfig struct {
	Token       string `yaml:"token" mapstructure:"token"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   int    `yaml:"rate_limit" mapstructure:"rate_limit"` // Client-side requests per second, 0 = unlimited
	UseKeychain bool   `yaml:"use_keychain" mapstructure:"use_keychain"`
}

type GatewayConfig struct {
	PerPage           int           `yaml:"per_page" mapstructure:"per_page"`
	MaxPages          int           `yaml:"max_pages" mapstructure:"max_pages"`
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
	BaseBackoff       time.Duration `yaml:"base_backoff" mapstructure:"base_backoff"`
	LowWaterMark      int           `yaml:"low_water_mark" mapstructure:"low_water_mark"`
	MaxRateLimitWaits int           `yaml:"max_rate_limit_waits" mapstructure:"max_rate_limit_waits"`
	MaxRateLimitWait  time.Duration `yaml:"max_rate_limit_wait" mapstructure:"max_rate_limit_wait"`
	RequestTimeout    time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

type CacheConfig struct {
	Backend         string        `yaml:"backend" mapstructure:"backend"` // "memory", "redis", "bolt"
	ShortTTL        time.Duration `yaml:"short_ttl" mapstructure:"short_ttl"`
	MediumTTL       time.Duration `yaml:"medium_ttl" mapstructure:"medium_ttl"`
	LongTTL         time.Duration `yaml:"long_ttl" mapstructure:"long_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
	RedisAddr       string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword   string        `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB         int           `yaml:"redis_db" mapstructure:"redis_db"`
	BoltPath        string        `yaml:"bolt_path" mapstructure:"bolt_path"`
}

type SelectionConfig struct {
	LabelConcurrency    int `yaml:"label_concurrency" mapstructure:"label_concurrency"`
	StatsConcurrency    int `yaml:"stats_concurrency" mapstructure:"stats_concurrency"`
	StatsSampleSize     int `yaml:"stats_sample_size" mapstructure:"stats_sample_size"`
	ReleaseLookbackDays int `yaml:"release_lookback_days" mapstructure:"release_lookback_days"`
}

type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"` // "debug", "info", "warn", "error"
	File  string `yaml:"file" mapstructure:"file"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendBolt   = "bolt"

	DefaultBaseURL = "https://api.github.com/"

	// MaxGatewayRetries bounds gateway.max_retries
	MaxGatewayRetries = 20
)

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		GitHub: GitHubConfig{
			BaseURL:     DefaultBaseURL,
			RateLimit:   10, // 10 requests per second
			UseKeychain: true,
		},
		Gateway: GatewayConfig{
			PerPage:           100,
			MaxPages:          10,
			MaxRetries:        3,
			BaseBackoff:       500 * time.Millisecond,
			LowWaterMark:      10,
			MaxRateLimitWaits: 3,
			MaxRateLimitWait:  15 * time.Minute,
			RequestTimeout:    30 * time.Second,
		},
		Cache: CacheConfig{
			Backend:         CacheBackendMemory,
			ShortTTL:        2 * time.Minute,
			MediumTTL:       10 * time.Minute,
			LongTTL:         30 * 24 * time.Hour,
			CleanupInterval: 10 * time.Minute,
			RedisAddr:       "localhost:6379",
			BoltPath:        filepath.Join(homeDir, ".patchnote", "cache.db"),
		},
		Selection: SelectionConfig{
			LabelConcurrency:    1,
			StatsConcurrency:    4,
			StatsSampleSize:     50,
			ReleaseLookbackDays: 30,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Unmarshal only overwrites keys present in the file, so the
	// struct defaults survive for everything else
	cfg := Default()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath(".patchnote")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".patchnote"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	applyKeychain(cfg, NewKeyringManager())

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence.
// godotenv never overrides variables that are already set, so the
// first file to define a key wins.
func loadEnvFiles() {
	envFiles := []string{
		".env.local",
		".env",
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".patchnote", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		_ = godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	}
	if url := os.Getenv("GITHUB_API_URL"); url != "" {
		cfg.GitHub.BaseURL = url
	}
	if rateLimit := os.Getenv("GITHUB_RATE_LIMIT"); rateLimit != "" {
		if rate, err := strconv.Atoi(rateLimit); err == nil {
			cfg.GitHub.RateLimit = rate
		}
	}

	cfg.Gateway.PerPage = GetInt("PATCHNOTE_PER_PAGE", cfg.Gateway.PerPage)
	cfg.Gateway.MaxPages = GetInt("PATCHNOTE_MAX_PAGES", cfg.Gateway.MaxPages)
	cfg.Gateway.MaxRetries = GetInt("PATCHNOTE_MAX_RETRIES", cfg.Gateway.MaxRetries)
	cfg.Gateway.BaseBackoff = GetDuration("PATCHNOTE_BASE_BACKOFF", cfg.Gateway.BaseBackoff)

	if backend := os.Getenv("PATCHNOTE_CACHE_BACKEND"); backend != "" {
		cfg.Cache.Backend = strings.ToLower(backend)
	}
	cfg.Cache.ShortTTL = GetDuration("PATCHNOTE_CACHE_SHORT_TTL", cfg.Cache.ShortTTL)
	cfg.Cache.MediumTTL = GetDuration("PATCHNOTE_CACHE_MEDIUM_TTL", cfg.Cache.MediumTTL)
	cfg.Cache.LongTTL = GetDuration("PATCHNOTE_CACHE_LONG_TTL", cfg.Cache.LongTTL)
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Cache.RedisPassword = password
	}
	if path := os.Getenv("PATCHNOTE_CACHE_PATH"); path != "" {
		cfg.Cache.BoltPath = expandPath(path)
	}

	if level := os.Getenv("PATCHNOTE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = strings.ToLower(level)
	}
	if file := os.Getenv("PATCHNOTE_LOG_FILE"); file != "" {
		cfg.Log.File = expandPath(file)
	}
}

// tokenSource is the subset of KeyringManager that Load needs
type tokenSource interface {
	IsAvailable() bool
	GetGitHubToken() (string, error)
}

// applyKeychain fills the token from the OS keychain when neither the
// environment nor the config file provided one
func applyKeychain(cfg *Config, km tokenSource) {
	if cfg.GitHub.Token != "" || !cfg.GitHub.UseKeychain {
		return
	}
	if !km.IsAvailable() {
		return
	}
	if token, err := km.GetGitHubToken(); err == nil && token != "" {
		cfg.GitHub.Token = token
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file. The token is never written.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	gh := c.GitHub
	gh.Token = ""

	v.Set("github", gh)
	v.Set("gateway", c.Gateway)
	v.Set("cache", c.Cache)
	v.Set("selection", c.Selection)
	v.Set("log", c.Log)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// ReleaseLookback returns the publishedAt window used for release selectors
func (s SelectionConfig) ReleaseLookback() time.Duration {
	return time.Duration(s.ReleaseLookbackDays) * 24 * time.Hour
}
