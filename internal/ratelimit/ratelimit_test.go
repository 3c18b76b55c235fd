package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rapfii/NEXUS-Terminal-sub001/config"
)

func TestAcquireImmediateWithinBudget(t *testing.T) {
	l := NewLimiter(Policy{MaxRequests: 3, Window: time.Minute})
	for i := 0; i < 3; i++ {
		waited, err := l.Acquire(context.Background())
		if err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		if waited > 10*time.Millisecond {
			t.Fatalf("acquire %d waited %v", i, waited)
		}
	}
	if got := l.Count(); got != 3 {
		t.Fatalf("expected count 3, got %d", got)
	}
}

func TestAcquireWaitsWhenSaturated(t *testing.T) {
	window := 100 * time.Millisecond
	l := NewLimiter(Policy{MaxRequests: 2, Window: window})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := l.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < window {
		t.Fatalf("third acquire returned after %v, want at least %v", elapsed, window)
	}
}

func TestAcquireHonorsCancellation(t *testing.T) {
	l := NewLimiter(Policy{MaxRequests: 1, Window: time.Minute})
	if _, err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.Acquire(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if got := l.Count(); got != 1 {
		t.Fatalf("cancelled acquire must not reserve a slot, count=%d", got)
	}
}

func TestAcquireNeverExceedsBudgetConcurrently(t *testing.T) {
	window := 100 * time.Millisecond
	l := NewLimiter(Policy{MaxRequests: 3, Window: window})

	stop := make(chan struct{})
	maxSeen := make(chan int, 1)
	go func() {
		seen := 0
		for {
			select {
			case <-stop:
				maxSeen <- seen
				return
			default:
			}
			if n := l.Count(); n > seen {
				seen = n
			}
			time.Sleep(time.Millisecond)
		}
	}()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Acquire(context.Background()); err != nil {
				t.Errorf("acquire: %v", err)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	close(stop)

	if got := <-maxSeen; got > 3 {
		t.Fatalf("observed %d admissions within one window", got)
	}
	// Nine admissions at three per window need two full windows of waiting.
	if elapsed < 2*window {
		t.Fatalf("nine admissions finished after %v, want at least %v", elapsed, 2*window)
	}
}

func TestRegistrySourcesAreIndependent(t *testing.T) {
	r := NewRegistry(config.RateLimitsConfig{
		Default: config.RateLimit{MaxRequests: 5, WindowMs: 60000},
		Sources: map[string]config.RateLimit{"kraken": {MaxRequests: 1, WindowMs: 60000}},
	})
	ctx := context.Background()

	if err := r.Acquire(ctx, "kraken"); err != nil {
		t.Fatalf("kraken acquire: %v", err)
	}

	// kraken is saturated but binance must still be admitted immediately.
	done := make(chan error, 1)
	go func() { done <- r.Acquire(ctx, "binance") }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("binance acquire: %v", err)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("binance blocked by kraken's window")
	}

	if r.Count("kraken") != 1 || r.Count("binance") != 1 || r.Count("okx") != 0 {
		t.Fatalf("unexpected counts: kraken=%d binance=%d okx=%d", r.Count("kraken"), r.Count("binance"), r.Count("okx"))
	}
}

func TestRegistryDefaultPolicy(t *testing.T) {
	r := NewRegistry(config.RateLimitsConfig{
		Default: config.RateLimit{MaxRequests: 7, WindowMs: 2000},
		Sources: map[string]config.RateLimit{"Bybit": {MaxRequests: 2, WindowMs: 1000}},
	})
	if p := r.Policy("unknown"); p.MaxRequests != 7 || p.Window != 2*time.Second {
		t.Fatalf("unexpected default policy %+v", p)
	}
	if p := r.Policy("bybit"); p.MaxRequests != 2 || p.Window != time.Second {
		t.Fatalf("unexpected bybit policy %+v", p)
	}
}
