package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rapfii/NEXUS-Terminal-sub001/config"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/cache"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/ratelimit"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Retry.Delays = []time.Duration{5 * time.Millisecond, 10 * time.Millisecond}
	cfg.Retry.RetryAfterDefault = 10 * time.Millisecond
	cfg.Budget.RequestsPerSecond = 0
	cfg.RateLimits = config.RateLimitsConfig{Default: config.RateLimit{MaxRequests: 100, WindowMs: 60000}}
	return cfg
}

func newTestFetcher(t *testing.T, opts ...Option) (*Fetcher, *cache.Cache, *ratelimit.Registry) {
	t.Helper()
	cfg := testConfig()
	c := cache.New(16)
	l := ratelimit.NewRegistry(cfg.RateLimits)
	return New(cfg, c, l, opts...), c, l
}

func decodePrice(body []byte) (any, error) {
	var v struct {
		Price float64 `json:"price"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return v.Price, nil
}

func request(url string) Request {
	return Request{
		URL:       url,
		Source:    "test",
		Kind:      "ticker",
		CacheKey:  "test:ticker:" + url,
		TTL:       time.Minute,
		Retryable: true,
		Decode:    decodePrice,
	}
}

func TestFetchCachesAndSkipsLimiterOnHit(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"price":101.5}`))
	}))
	defer srv.Close()

	f, c, l := newTestFetcher(t)
	req := request(srv.URL)
	for i := 0; i < 3; i++ {
		v, err := f.Fetch(context.Background(), req)
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if v.(float64) != 101.5 {
			t.Fatalf("unexpected payload %v", v)
		}
	}

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected 1 upstream call, got %d", got)
	}
	if got := l.Count("test"); got != 1 {
		t.Fatalf("cache hits must not consume limiter slots, count=%d", got)
	}
	if c.Len() != 1 {
		t.Fatalf("expected cached entry")
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"price":7}`))
	}))
	defer srv.Close()

	f, _, _ := newTestFetcher(t)
	v, err := f.Fetch(context.Background(), request(srv.URL))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if v.(float64) != 7 || atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("unexpected result %v after %d calls", v, hits)
	}
}

func TestFetchExhaustsAttempts(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	f, c, _ := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), request(srv.URL))

	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Attempts != 3 || atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("expected 3 attempts, got %d (%d calls)", fe.Attempts, hits)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected last cause to be HTTP 502, got %v", fe.Cause)
	}
	if c.Len() != 0 {
		t.Fatalf("failed fetch must not populate cache")
	}
}

func TestFetchRateLimitedDoesNotConsumeAttempts(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n <= 4 {
			if n%2 == 0 {
				w.Header().Set("Retry-After", "0")
			}
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"price":3}`))
	}))
	defer srv.Close()

	// a single attempt still survives any number of 429 responses
	f, _, l := newTestFetcher(t)
	req := request(srv.URL)
	req.Retryable = false
	v, err := f.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if v.(float64) != 3 || atomic.LoadInt32(&hits) != 5 {
		t.Fatalf("unexpected result %v after %d calls", v, hits)
	}
	if got := l.Count("test"); got != 5 {
		t.Fatalf("each re-issued call should take a limiter slot, count=%d", got)
	}
}

func TestFetchNonRetryableSingleAttempt(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f, _, _ := newTestFetcher(t)
	req := request(srv.URL)
	req.Retryable = false
	if _, err := f.Fetch(context.Background(), req); err == nil {
		t.Fatalf("expected error")
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestFetchDecodeErrorIsRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Write([]byte(`<html>maintenance</html>`))
			return
		}
		w.Write([]byte(`{"price":9}`))
	}))
	defer srv.Close()

	f, _, _ := newTestFetcher(t)
	v, err := f.Fetch(context.Background(), request(srv.URL))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if v.(float64) != 9 || atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("unexpected result %v after %d calls", v, hits)
	}
}

func TestFetchDecodeErrorExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	f, _, _ := newTestFetcher(t, WithRetryPolicy(2, time.Millisecond))
	_, err := f.Fetch(context.Background(), request(srv.URL))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestFetchCancelledDoesNotPopulateCache(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.Write([]byte(`{"price":1}`))
	}))
	defer srv.Close()
	defer close(release)

	f, c, _ := newTestFetcher(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, request(srv.URL))
	if !IsCancellation(err) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("cancelled fetch wrote the cache")
	}
}

func TestFetchCancelledDuringRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f, _, _ := newTestFetcher(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, request(srv.URL))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("retry-after wait ignored cancellation")
	}
}

func TestFetchSendsHeaders(t *testing.T) {
	var ua, accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		w.Write([]byte(`{"price":1}`))
	}))
	defer srv.Close()

	f, _, _ := newTestFetcher(t, WithUserAgent("gateway-test/2"))
	if _, err := f.Fetch(context.Background(), request(srv.URL)); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if ua != "gateway-test/2" || accept != "application/json" {
		t.Fatalf("unexpected headers ua=%q accept=%q", ua, accept)
	}
}

func TestFetchWithBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":1}`))
	}))
	defer srv.Close()

	f, _, _ := newTestFetcher(t, WithBudget(20, 1))
	start := time.Now()
	for i := 0; i < 3; i++ {
		req := request(srv.URL)
		req.CacheKey = ""
		if _, err := f.Fetch(context.Background(), req); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	// burst 1 at 20 rps spaces the second and third call by 50ms each
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("budget not applied, elapsed %v", elapsed)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	def := 5 * time.Second
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"", def},
		{"2", 2 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"-4", 0},
		{"soon", def},
		{now.Add(3 * time.Second).Format(http.TimeFormat), 3 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
	}
	for _, c := range cases {
		if got := parseRetryAfter(c.in, def, now); got != c.want {
			t.Errorf("parseRetryAfter(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeRateLimited.String() != "rate_limited" || OutcomeFatal.String() != "fatal" {
		t.Fatalf("unexpected outcome names")
	}
}
