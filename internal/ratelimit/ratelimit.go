// Package ratelimit admits outbound calls per upstream source over a sliding
// time window. Callers queue until a slot is free; nothing is rejected.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rapfii/NEXUS-Terminal-sub001/config"
	"github.com/rapfii/NEXUS-Terminal-sub001/internal/metrics"
	"github.com/rapfii/NEXUS-Terminal-sub001/logger"
)

// epsilon is added to computed waits so the oldest stamp has left the window
// when the waiter wakes up.
const epsilon = time.Millisecond

// Policy allows at most MaxRequests admissions within any trailing Window.
type Policy struct {
	MaxRequests int
	Window      time.Duration
}

func policyFrom(rl config.RateLimit) Policy {
	return Policy{MaxRequests: rl.MaxRequests, Window: rl.Window()}
}

// Limiter is the sliding window of one source.
type Limiter struct {
	mu     sync.Mutex
	policy Policy
	stamps []time.Time
}

func NewLimiter(p Policy) *Limiter {
	if p.MaxRequests <= 0 {
		p.MaxRequests = 1
	}
	return &Limiter{policy: p, stamps: make([]time.Time, 0, p.MaxRequests)}
}

// prune drops stamps that are at least one window old. Callers hold mu.
func (l *Limiter) prune(now time.Time) {
	i := 0
	for i < len(l.stamps) && now.Sub(l.stamps[i]) >= l.policy.Window {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}

// Acquire blocks until a slot is reserved for the caller or ctx is done. The
// returned duration is the time spent waiting.
func (l *Limiter) Acquire(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return time.Since(start), err
		}

		l.mu.Lock()
		now := time.Now()
		l.prune(now)
		if len(l.stamps) < l.policy.MaxRequests {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return now.Sub(start), nil
		}
		wait := l.policy.Window - now.Sub(l.stamps[0]) + epsilon
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return time.Since(start), ctx.Err()
		case <-timer.C:
		}
	}
}

// Count returns the admissions recorded within the current window.
func (l *Limiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(time.Now())
	return len(l.stamps)
}

// Registry owns one Limiter per source for the lifetime of the process.
// Sources without a configured policy share the default policy values but
// still get their own window.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	policies map[string]Policy
	fallback Policy
	log      *logger.Entry
}

func NewRegistry(cfg config.RateLimitsConfig) *Registry {
	policies := make(map[string]Policy, len(cfg.Sources))
	for name, rl := range cfg.Sources {
		policies[strings.ToLower(name)] = policyFrom(rl)
	}
	return &Registry{
		limiters: make(map[string]*Limiter),
		policies: policies,
		fallback: policyFrom(cfg.Default),
		log:      logger.GetLogger().WithComponent("rate_limiter"),
	}
}

// Policy returns the admission policy applied to source.
func (r *Registry) Policy(source string) Policy {
	if p, ok := r.policies[strings.ToLower(source)]; ok {
		return p
	}
	return r.fallback
}

func (r *Registry) limiter(source string) *Limiter {
	key := strings.ToLower(source)
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.limiters[key]
	if !ok {
		l = NewLimiter(r.Policy(key))
		r.limiters[key] = l
	}
	return l
}

// Acquire reserves one slot in source's window, waiting as long as needed.
// Only cancellation of ctx returns an error.
func (r *Registry) Acquire(ctx context.Context, source string) error {
	waited, err := r.limiter(source).Acquire(ctx)
	metrics.ObserveLimiterWait(source, waited)
	if err != nil {
		return err
	}
	if waited > epsilon {
		r.log.WithFields(logger.Fields{
			"source":    source,
			"waited_ms": waited.Milliseconds(),
		}).Debug("rate limiter delayed request")
	}
	return nil
}

// Count returns the number of admissions recorded for source in its current
// window.
func (r *Registry) Count(source string) int {
	return r.limiter(source).Count()
}
