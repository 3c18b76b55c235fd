// Package fetcher turns one request descriptor into a payload: cache first,
// then rate limited HTTP with retries, then cache population.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rapfii/NEXUS-Terminal-sub001/config"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/cache"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/metrics"
	ratereport "github.com/rapfii/NEXUS-Terminal-sub001/internal/metrics/rate"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/ratelimit"
	"github.com/rapfii/NEXUS-Terminal-sub001/logger"
)

const (
	maxBodyBytes  = 8 << 20
	maxErrorBytes = 512
)

// Request describes one outbound call. It is not modified by the fetcher.
type Request struct {
	URL      string
	Source   string
	Kind     string
	Symbol   string
	CacheKey string
	TTL      time.Duration
	// Retryable false means a single attempt with no backoff.
	Retryable bool
	// Decode parses a 2xx body. A nil Decode yields the raw bytes.
	Decode func([]byte) (any, error)
}

// Fetcher is safe for concurrent use.
type Fetcher struct {
	client            *http.Client
	cache             *cache.Cache
	limits            *ratelimit.Registry
	budget            *rate.Limiter
	maxAttempts       int
	delays            []time.Duration
	retryAfterDefault time.Duration
	userAgent         string
	log               *logger.Log
}

type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithRetryPolicy overrides the attempt count and the delays between attempts.
func WithRetryPolicy(maxAttempts int, delays ...time.Duration) Option {
	return func(f *Fetcher) {
		f.maxAttempts = maxAttempts
		f.delays = delays
	}
}

// WithRetryAfterDefault sets the wait used after a 429 without a usable
// Retry-After header.
func WithRetryAfterDefault(d time.Duration) Option {
	return func(f *Fetcher) { f.retryAfterDefault = d }
}

// WithBudget sets the process wide request budget shared by every source.
// A non-positive rps disables it.
func WithBudget(rps float64, burst int) Option {
	return func(f *Fetcher) {
		if rps <= 0 {
			f.budget = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		f.budget = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

func WithLogger(l *logger.Log) Option {
	return func(f *Fetcher) { f.log = l }
}

// New builds a Fetcher from the http, retry and budget sections of cfg.
func New(cfg *config.Config, c *cache.Cache, l *ratelimit.Registry, opts ...Option) *Fetcher {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.HTTP.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.HTTP.ConnectionPool.MaxConnsPerHost,
		MaxConnsPerHost:     cfg.HTTP.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.HTTP.ConnectionPool.IdleConnTimeout,
	}

	f := &Fetcher{
		client:            &http.Client{Timeout: cfg.HTTP.Timeout, Transport: transport},
		cache:             c,
		limits:            l,
		maxAttempts:       cfg.Retry.MaxAttempts,
		delays:            cfg.Retry.Delays,
		retryAfterDefault: cfg.Retry.RetryAfterDefault,
		userAgent:         cfg.HTTP.UserAgent,
		log:               logger.GetLogger(),
	}
	WithBudget(cfg.Budget.RequestsPerSecond, cfg.Budget.Burst)(f)

	for _, opt := range opts {
		opt(f)
	}
	if f.maxAttempts <= 0 {
		f.maxAttempts = 1
	}

	f.log.WithComponent("fetcher").WithFields(logger.Fields{
		"max_attempts": f.maxAttempts,
		"user_agent":   f.userAgent,
		"budget":       f.budget != nil,
	}).Info("fetcher initialized")
	return f
}

// Fetch returns the payload for req. A cache hit costs no upstream quota.
// On a miss every attempt waits for the shared budget and the source's rate
// limiter before the HTTP call. A 429 is retried after its Retry-After hint
// without spending an attempt. Cancelled fetches never write the cache.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (any, error) {
	if req.CacheKey != "" {
		if payload, ok := f.cache.Get(req.CacheKey); ok {
			return payload, nil
		}
	}

	attempts := f.maxAttempts
	if !req.Retryable {
		attempts = 1
	}
	log := f.log.WithComponent("fetcher").WithFields(logger.Fields{
		"source": req.Source,
		"kind":   req.Kind,
		"symbol": req.Symbol,
	})

	var lastErr error
	attempt := 0
	for attempt < attempts {
		attempt++
		payload, outcome, err := f.attempt(ctx, req)
		switch outcome {
		case OutcomeSuccess:
			if err := ctx.Err(); err != nil {
				return nil, &FetchError{Source: req.Source, URL: req.URL, Attempts: attempt, Cause: err}
			}
			if req.CacheKey != "" {
				f.cache.Set(req.CacheKey, payload, req.TTL)
			}
			return payload, nil
		case OutcomeFatal:
			return nil, &FetchError{Source: req.Source, URL: req.URL, Attempts: attempt, Cause: err}
		}

		lastErr = err
		if attempt == attempts {
			break
		}
		delay := f.delay(attempt)
		log.WithError(err).WithFields(logger.Fields{
			"attempt":  attempt,
			"delay_ms": delay.Milliseconds(),
		}).Warn("upstream attempt failed; retrying")
		if err := sleep(ctx, delay); err != nil {
			return nil, &FetchError{Source: req.Source, URL: req.URL, Attempts: attempt, Cause: err}
		}
	}

	log.WithError(lastErr).WithFields(logger.Fields{"attempts": attempt}).Error("upstream fetch failed")
	metrics.EmitMetric(f.log, "fetcher", "fetch_failed", int64(1), "counter", logger.Fields{"exchange": req.Source, "type": req.Kind})
	return nil, &FetchError{Source: req.Source, URL: req.URL, Attempts: attempt, Cause: lastErr}
}

// attempt performs one logical attempt, re-issuing the call for as long as the
// upstream answers 429.
func (f *Fetcher) attempt(ctx context.Context, req Request) (any, Outcome, error) {
	for {
		payload, outcome, retryAfter, err := f.do(ctx, req)
		if outcome != OutcomeRateLimited {
			return payload, outcome, err
		}
		ratereport.ReportRateLimited(f.log, req.Source, req.Symbol, req.Kind)
		if err := sleep(ctx, retryAfter); err != nil {
			return nil, OutcomeFatal, err
		}
	}
}

func (f *Fetcher) do(ctx context.Context, req Request) (any, Outcome, time.Duration, error) {
	if f.budget != nil {
		if err := f.budget.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, OutcomeFatal, 0, ctxErr
			}
			return nil, OutcomeFatal, 0, fmt.Errorf("shared budget: %w", err)
		}
	}
	if err := f.limits.Acquire(ctx, req.Source); err != nil {
		return nil, OutcomeFatal, 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, OutcomeFatal, 0, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", f.userAgent)
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	payload, outcome, retryAfter, err := f.roundTrip(ctx, httpReq, req)
	elapsed := time.Since(start)
	metrics.RecordUpstreamRequest(req.Source, outcome.String(), elapsed)
	if outcome == OutcomeSuccess {
		logger.LogPerformanceEntry(f.log.WithComponent("fetcher"), "fetcher", "upstream_request", elapsed, logger.Fields{
			"source": req.Source,
			"kind":   req.Kind,
		})
	}
	return payload, outcome, retryAfter, err
}

func (f *Fetcher) roundTrip(ctx context.Context, httpReq *http.Request, req Request) (any, Outcome, time.Duration, error) {
	resp, err := f.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, OutcomeFatal, 0, ctxErr
		}
		return nil, OutcomeRetryable, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBytes))
		return nil, OutcomeRateLimited, parseRetryAfter(resp.Header.Get("Retry-After"), f.retryAfterDefault, time.Now()), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		body := strings.TrimSpace(string(snippet))
		ratereport.ReportLimitFromMessage(f.log, req.Source, req.Symbol, req.Kind, body)
		return nil, OutcomeRetryable, 0, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, OutcomeFatal, 0, ctxErr
		}
		return nil, OutcomeRetryable, 0, fmt.Errorf("read body: %w", err)
	}

	if req.Decode == nil {
		return body, OutcomeSuccess, 0, nil
	}
	payload, err := req.Decode(body)
	if err != nil {
		return nil, OutcomeRetryable, 0, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return payload, OutcomeSuccess, 0, nil
}

func (f *Fetcher) delay(attempt int) time.Duration {
	if len(f.delays) == 0 {
		return 0
	}
	if attempt-1 < len(f.delays) {
		return f.delays[attempt-1]
	}
	return f.delays[len(f.delays)-1]
}

// parseRetryAfter reads a Retry-After value given in seconds or as an HTTP
// date. Missing or malformed values yield def.
func parseRetryAfter(value string, def time.Duration, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return def
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return def
}

func sleep(ctx context.Context, d time.Duration) error {
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

// IsCancellation reports whether err stems from the caller's context.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
