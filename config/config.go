package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigPath = "config/config.yml"

	DataKindTicker    = "ticker"
	DataKindOrderbook = "orderbook"
	DataKindFunding   = "funding"
)

type Config struct {
	Gateway    GatewayConfig           `yaml:"gateway"`
	Server     ServerConfig            `yaml:"server"`
	Logging    LoggingConfig           `yaml:"logging"`
	HTTP       HTTPConfig              `yaml:"http"`
	RateLimits RateLimitsConfig        `yaml:"rate_limits"`
	Budget     BudgetConfig            `yaml:"budget"`
	Cache      CacheConfig             `yaml:"cache"`
	Retry      RetryConfig             `yaml:"retry"`
	Fees       FeesConfig              `yaml:"fees"`
	Aggregator AggregatorConfig        `yaml:"aggregator"`
	Sources    map[string]SourceConfig `yaml:"sources"`
	Metrics    MetricsConfig           `yaml:"metrics"`
}

type GatewayConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ServerConfig struct {
	Address        string        `yaml:"address"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// EventHistory bounds the recent metrics and logs kept for /api/v1/events.
	EventHistory int `yaml:"event_history"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type HTTPConfig struct {
	Timeout        time.Duration        `yaml:"timeout"`
	UserAgent      string               `yaml:"user_agent"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// RateLimit is the admission policy of one upstream source: at most
// MaxRequests calls within any trailing WindowMs milliseconds.
type RateLimit struct {
	MaxRequests int `yaml:"max_requests"`
	WindowMs    int `yaml:"window_ms"`
}

func (r RateLimit) Window() time.Duration {
	return time.Duration(r.WindowMs) * time.Millisecond
}

type RateLimitsConfig struct {
	Default RateLimit            `yaml:"default"`
	Sources map[string]RateLimit `yaml:"sources"`
}

// For returns the policy configured for source, or the default policy.
func (r RateLimitsConfig) For(source string) RateLimit {
	if rl, ok := r.Sources[strings.ToLower(source)]; ok {
		return rl
	}
	return r.Default
}

// BudgetConfig is the process-wide outbound budget shared by every source.
// A zero RequestsPerSecond disables it.
type BudgetConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type CacheConfig struct {
	MaxSize int                      `yaml:"max_size"`
	TTL     map[string]time.Duration `yaml:"ttl"`
}

// TTLFor returns the freshness window for a data kind; unknown kinds get the
// ticker window.
func (c CacheConfig) TTLFor(kind string) time.Duration {
	if ttl, ok := c.TTL[kind]; ok {
		return ttl
	}
	return c.TTL[DataKindTicker]
}

type RetryConfig struct {
	MaxAttempts       int             `yaml:"max_attempts"`
	Delays            []time.Duration `yaml:"delays"`
	RetryAfterDefault time.Duration   `yaml:"retry_after_default"`
}

type Fee struct {
	Taker float64 `yaml:"taker"`
	Maker float64 `yaml:"maker"`
}

type FeesConfig struct {
	Taker   float64        `yaml:"taker"`
	Maker   float64        `yaml:"maker"`
	Sources map[string]Fee `yaml:"sources"`
}

// For returns the fee schedule of a source, falling back to the global one.
func (f FeesConfig) For(source string) Fee {
	if fee, ok := f.Sources[strings.ToLower(source)]; ok {
		return fee
	}
	return Fee{Taker: f.Taker, Maker: f.Maker}
}

type AggregatorConfig struct {
	SourceTimeout  time.Duration `yaml:"source_timeout"`
	OrderbookDepth int           `yaml:"orderbook_depth"`
}

type SourceConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BaseURL    string `yaml:"base_url"`
	FuturesURL string `yaml:"futures_url"`
}

type MetricsConfig struct {
	Prometheus bool             `yaml:"prometheus"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Namespace       string `yaml:"namespace"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// envOverrides lists the settings that may be replaced through the
// environment, e.g. GATEWAY_SERVER_ADDRESS or AWS_REGION.
type envOverrides struct {
	ServerAddress      string `envconfig:"SERVER_ADDRESS"`
	LogLevel           string `envconfig:"LOG_LEVEL"`
	AWSRegion          string `envconfig:"AWS_REGION"`
	AWSAccessKeyID     string `envconfig:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey string `envconfig:"AWS_SECRET_ACCESS_KEY"`
}

var envConfigPaths = map[string]string{
	environmentProduction: "config/config.production.yml",
	environmentStaging:    "config/config.staging.yml",
}

// LoadConfig reads the YAML file at path (or its environment specific variant),
// fills unset values with defaults, applies environment overrides and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	path = resolveEnvSpecificPath(path, DefaultConfigPath, envConfigPaths)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Maps from the defaults would be merged with the document, so only the
	// scalar defaults are kept before decoding.
	config := Default()
	config.Sources = nil
	config.RateLimits.Sources = nil
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.applyDefaults()

	if err := config.applyEnv(); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process("gateway", &env); err != nil {
		return err
	}
	if v := strings.TrimSpace(env.ServerAddress); v != "" {
		c.Server.Address = v
	}
	if v := strings.TrimSpace(env.LogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := strings.TrimSpace(env.AWSRegion); v != "" {
		c.Metrics.CloudWatch.Region = v
	}
	if v := strings.TrimSpace(env.AWSAccessKeyID); v != "" {
		c.Metrics.CloudWatch.AccessKeyID = v
	}
	if v := strings.TrimSpace(env.AWSSecretAccessKey); v != "" {
		c.Metrics.CloudWatch.SecretAccessKey = v
	}
	return nil
}

// EnabledSources returns the names of enabled sources in a stable order.
func (c *Config) EnabledSources() []string {
	names := make([]string, 0, len(c.Sources))
	for name, src := range c.Sources {
		if src.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func validateConfig(cfg *Config) error {
	if cfg.Gateway.Name == "" {
		return fmt.Errorf("gateway.name is required")
	}

	if cfg.Gateway.Version == "" {
		return fmt.Errorf("gateway.version is required")
	}

	if err := validateRateLimit("rate_limits.default", cfg.RateLimits.Default); err != nil {
		return err
	}
	for name, rl := range cfg.RateLimits.Sources {
		if err := validateRateLimit("rate_limits.sources."+name, rl); err != nil {
			return err
		}
	}

	if cfg.Budget.RequestsPerSecond < 0 {
		return fmt.Errorf("budget.requests_per_second must not be negative")
	}
	if cfg.Budget.RequestsPerSecond > 0 && cfg.Budget.Burst <= 0 {
		return fmt.Errorf("budget.burst must be greater than 0 when the budget is enabled")
	}

	if cfg.Cache.MaxSize <= 0 {
		return fmt.Errorf("cache.max_size must be greater than 0")
	}
	for kind, ttl := range cfg.Cache.TTL {
		if ttl <= 0 {
			return fmt.Errorf("cache.ttl.%s must be greater than 0", kind)
		}
	}

	if cfg.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be greater than 0")
	}
	for i, d := range cfg.Retry.Delays {
		if d < 0 {
			return fmt.Errorf("retry.delays[%d] must not be negative", i)
		}
	}

	if cfg.Fees.Taker < 0 || cfg.Fees.Maker < 0 {
		return fmt.Errorf("fees must not be negative")
	}

	if cfg.Aggregator.SourceTimeout <= 0 {
		return fmt.Errorf("aggregator.source_timeout must be greater than 0")
	}

	if len(cfg.EnabledSources()) == 0 {
		return fmt.Errorf("at least one source must be enabled")
	}
	for name, src := range cfg.Sources {
		if src.Enabled && src.BaseURL == "" {
			return fmt.Errorf("sources.%s.base_url is required when the source is enabled", name)
		}
	}

	if cw := cfg.Metrics.CloudWatch; cw.Enabled && cw.Namespace == "" {
		return fmt.Errorf("metrics.cloudwatch.namespace is required when CloudWatch is enabled")
	}

	return nil
}

func validateRateLimit(prefix string, rl RateLimit) error {
	if rl.MaxRequests <= 0 {
		return fmt.Errorf("%s.max_requests must be greater than 0", prefix)
	}
	if rl.WindowMs <= 0 {
		return fmt.Errorf("%s.window_ms must be greater than 0", prefix)
	}
	return nil
}
