package config

import "time"

const (
	DefaultServerAddress  = ":8080"
	DefaultRequestTimeout = 15 * time.Second
	DefaultEventHistory   = 200

	DefaultHTTPTimeout     = 10 * time.Second
	DefaultUserAgent       = "nexus-gateway/1.0"
	DefaultMaxIdleConns    = 100
	DefaultMaxConnsPerHost = 20
	DefaultIdleConnTimeout = 90 * time.Second

	DefaultMaxRequests = 10
	DefaultWindowMs    = 1000

	DefaultCacheMaxSize = 1000
	DefaultTickerTTL    = 5 * time.Second
	DefaultOrderbookTTL = 2 * time.Second
	DefaultFundingTTL   = 60 * time.Second

	DefaultMaxAttempts       = 3
	DefaultRetryAfterDefault = 5 * time.Second

	DefaultTakerFee = 0.001
	DefaultMakerFee = 0.001

	DefaultSourceTimeout  = 8 * time.Second
	DefaultOrderbookDepth = 50

	DefaultCloudWatchNamespace = "NexusGateway"
)

// DefaultRetryDelays is the wait schedule between generic retry attempts.
var DefaultRetryDelays = []time.Duration{time.Second, 2 * time.Second, 5 * time.Second}

var defaultSources = map[string]SourceConfig{
	"binance":  {Enabled: true, BaseURL: "https://api.binance.com", FuturesURL: "https://fapi.binance.com"},
	"bybit":    {Enabled: true, BaseURL: "https://api.bybit.com"},
	"okx":      {Enabled: true, BaseURL: "https://www.okx.com"},
	"kucoin":   {Enabled: true, BaseURL: "https://api.kucoin.com", FuturesURL: "https://api-futures.kucoin.com"},
	"coinbase": {Enabled: true, BaseURL: "https://api.exchange.coinbase.com"},
	"kraken":   {Enabled: true, BaseURL: "https://api.kraken.com"},
}

var defaultSourceLimits = map[string]RateLimit{
	"binance":  {MaxRequests: 20, WindowMs: 1000},
	"bybit":    {MaxRequests: 10, WindowMs: 1000},
	"okx":      {MaxRequests: 10, WindowMs: 2000},
	"kucoin":   {MaxRequests: 10, WindowMs: 1000},
	"coinbase": {MaxRequests: 10, WindowMs: 1000},
	"kraken":   {MaxRequests: 1, WindowMs: 1000},
}

// Default returns a configuration that runs the gateway against every
// supported venue with conservative limits.
func Default() *Config {
	cfg := &Config{
		Gateway: GatewayConfig{Name: "nexus-gateway", Version: "1.0.0"},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Fees:    FeesConfig{Taker: DefaultTakerFee, Maker: DefaultMakerFee},
		Metrics: MetricsConfig{Prometheus: true},
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults populates zero values left by a partial YAML document.
func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultServerAddress
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = DefaultRequestTimeout
	}
	if c.Server.EventHistory == 0 {
		c.Server.EventHistory = DefaultEventHistory
	}

	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = DefaultHTTPTimeout
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = DefaultUserAgent
	}
	if c.HTTP.ConnectionPool.MaxIdleConns == 0 {
		c.HTTP.ConnectionPool.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.HTTP.ConnectionPool.MaxConnsPerHost == 0 {
		c.HTTP.ConnectionPool.MaxConnsPerHost = DefaultMaxConnsPerHost
	}
	if c.HTTP.ConnectionPool.IdleConnTimeout == 0 {
		c.HTTP.ConnectionPool.IdleConnTimeout = DefaultIdleConnTimeout
	}

	if c.RateLimits.Default.MaxRequests == 0 {
		c.RateLimits.Default.MaxRequests = DefaultMaxRequests
	}
	if c.RateLimits.Default.WindowMs == 0 {
		c.RateLimits.Default.WindowMs = DefaultWindowMs
	}
	if c.RateLimits.Sources == nil {
		c.RateLimits.Sources = make(map[string]RateLimit, len(defaultSourceLimits))
		for name, rl := range defaultSourceLimits {
			c.RateLimits.Sources[name] = rl
		}
	}

	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = DefaultCacheMaxSize
	}
	if c.Cache.TTL == nil {
		c.Cache.TTL = make(map[string]time.Duration, 3)
	}
	setTTL := func(kind string, ttl time.Duration) {
		if _, ok := c.Cache.TTL[kind]; !ok {
			c.Cache.TTL[kind] = ttl
		}
	}
	setTTL(DataKindTicker, DefaultTickerTTL)
	setTTL(DataKindOrderbook, DefaultOrderbookTTL)
	setTTL(DataKindFunding, DefaultFundingTTL)

	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if len(c.Retry.Delays) == 0 {
		c.Retry.Delays = append([]time.Duration(nil), DefaultRetryDelays...)
	}
	if c.Retry.RetryAfterDefault == 0 {
		c.Retry.RetryAfterDefault = DefaultRetryAfterDefault
	}

	if c.Aggregator.SourceTimeout == 0 {
		c.Aggregator.SourceTimeout = DefaultSourceTimeout
	}
	if c.Aggregator.OrderbookDepth == 0 {
		c.Aggregator.OrderbookDepth = DefaultOrderbookDepth
	}

	if c.Sources == nil {
		c.Sources = make(map[string]SourceConfig, len(defaultSources))
		for name, src := range defaultSources {
			c.Sources[name] = src
		}
	}

	if c.Metrics.CloudWatch.Namespace == "" {
		c.Metrics.CloudWatch.Namespace = DefaultCloudWatchNamespace
	}
}
