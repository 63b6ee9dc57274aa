// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/product-copy/internal/product"
)

// EnvPrefix prefixes every environment override, e.g. PRODUCTCOPY_SERVER_PORT.
const EnvPrefix = "PRODUCTCOPY"

// Cache backends.
const (
	CacheBackendFile     = "file"
	CacheBackendMemory   = "memory"
	CacheBackendGCS      = "gcs"
	CacheBackendPostgres = "postgres"
	CacheBackendNone     = "none"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Merchant MerchantConfig `mapstructure:"merchant"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Static   StaticConfig   `mapstructure:"static"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// MerchantConfig names the single site product URLs must belong to.
type MerchantConfig struct {
	Domain   string `mapstructure:"domain"`
	ForceWWW bool   `mapstructure:"force_www"`
}

// FetchConfig selects the fetch policy, its hard time bound and the
// outbound request rate toward the merchant.
type FetchConfig struct {
	Policy         string  `mapstructure:"policy"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	EventTopic     string  `mapstructure:"event_topic"`
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	RateBurst      int     `mapstructure:"rate_burst"`
}

// StaticConfig tunes the plain HTTP fetcher.
type StaticConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	AcceptLanguage string `mapstructure:"accept_language"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	SkipWarmUp     bool   `mapstructure:"skip_warm_up"`
}

// HeadlessConfig configures the headless browser fetcher.
type HeadlessConfig struct {
	Enabled             bool     `mapstructure:"enabled"`
	ExecPath            string   `mapstructure:"exec_path"`
	NoSandbox           bool     `mapstructure:"no_sandbox"`
	UserAgent           string   `mapstructure:"user_agent"`
	SettleMillis        int      `mapstructure:"settle_ms"`
	ProbeTimeoutSeconds int      `mapstructure:"probe_timeout_seconds"`
	NavTimeoutSeconds   int      `mapstructure:"nav_timeout_seconds"`
	ProbeSelectors      []string `mapstructure:"probe_selectors"`
}

// CacheConfig picks the cache backend and entry lifetime.
type CacheConfig struct {
	Backend  string `mapstructure:"backend"`
	TTLHours int    `mapstructure:"ttl_hours"`
	Path     string `mapstructure:"path"`
}

// PostgresConfig controls the Postgres cache backend.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// GCSConfig locates the cache snapshot object.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Object string `mapstructure:"object"`
}

// PubSubConfig holds metadata for fetch event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
}

// OpenAIConfig configures the copy generator.
type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// LoadDotEnv reads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The bare OPENAI_API_KEY is what most deployments already export.
	if err := v.BindEnv("openai.api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return Config{}, fmt.Errorf("bind openai.api_key: %w", err)
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("merchant.domain", "leonardo.vn")
	v.SetDefault("merchant.force_www", true)
	v.SetDefault("fetch.policy", string(product.DefaultPolicy))
	v.SetDefault("fetch.timeout_seconds", 60)
	v.SetDefault("fetch.event_topic", product.DefaultEventTopic)
	v.SetDefault("fetch.rate_per_second", 2.0)
	v.SetDefault("fetch.rate_burst", 4)
	v.SetDefault("static.timeout_seconds", 10)
	v.SetDefault("static.skip_warm_up", false)
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.no_sandbox", false)
	v.SetDefault("headless.settle_ms", 2000)
	v.SetDefault("headless.probe_timeout_seconds", 10)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.probe_selectors", []string{".product-title", ".product-description", "h1"})
	v.SetDefault("cache.backend", CacheBackendFile)
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("cache.path", "data/product_cache.json")
	v.SetDefault("postgres.table", "product_cache")
	v.SetDefault("postgres.max_conns", 4)
	v.SetDefault("gcs.object", "product-cache.json")
	v.SetDefault("openai.model", "gpt-4")
	v.SetDefault("openai.timeout_seconds", 90)
	v.SetDefault("openai.max_retries", 2)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if strings.TrimSpace(c.Merchant.Domain) == "" {
		return fmt.Errorf("merchant.domain must be set")
	}
	policy, err := product.ParsePolicy(c.Fetch.Policy)
	if err != nil {
		return fmt.Errorf("fetch.policy: %w", err)
	}
	if policy == product.PolicyDynamicOnly && !c.Headless.Enabled {
		return fmt.Errorf("fetch.policy %s requires headless.enabled", policy)
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.RatePerSecond < 0 || c.Fetch.RateBurst < 0 {
		return fmt.Errorf("fetch.rate_per_second and fetch.rate_burst must be >= 0")
	}
	if c.Static.TimeoutSeconds <= 0 {
		return fmt.Errorf("static.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && (c.Headless.SettleMillis < 0 || c.Headless.ProbeTimeoutSeconds <= 0) {
		return fmt.Errorf("headless.settle_ms must be >= 0 and headless.probe_timeout_seconds > 0")
	}
	if c.Cache.TTLHours <= 0 {
		return fmt.Errorf("cache.ttl_hours must be > 0")
	}
	switch c.Cache.Backend {
	case CacheBackendFile:
		if c.Cache.Path == "" {
			return fmt.Errorf("cache.path must be set for the file backend")
		}
	case CacheBackendGCS:
		if c.GCS.Bucket == "" {
			return fmt.Errorf("gcs.bucket must be set for the gcs backend")
		}
	case CacheBackendPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn must be set for the postgres backend")
		}
	case CacheBackendMemory, CacheBackendNone:
	default:
		return fmt.Errorf("cache.backend %q is not supported", c.Cache.Backend)
	}
	return nil
}

// FetchPolicy returns the validated fetch policy.
func (c Config) FetchPolicy() product.Policy {
	p, err := product.ParsePolicy(c.Fetch.Policy)
	if err != nil {
		return product.DefaultPolicy
	}
	return p
}

// FetchTimeout is the hard bound applied to each fetcher call.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// CacheTTL converts cache.ttl_hours to a duration.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// RequestTimeout bounds a single API request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
