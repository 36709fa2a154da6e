package transport

import (
	"context"
	"sync"
	"time"
)

// IntervalLimiter enforces a minimum delay between consecutive requests.
// The delay state is shared by every caller holding the same limiter, so a
// Client shared across goroutines (or across runs) throttles total request
// volume, not per-caller volume.
type IntervalLimiter struct {
	interval time.Duration
	last     time.Time
	mu       sync.Mutex
}

// NewIntervalLimiter creates a limiter with the given minimum interval.
// A non-positive interval disables throttling.
func NewIntervalLimiter(interval time.Duration) *IntervalLimiter {
	return &IntervalLimiter{interval: interval}
}

// Wait blocks until the interval since the previous request has elapsed,
// or the context is cancelled. The reservation is taken before sleeping so
// concurrent callers queue up at interval spacing rather than stampeding.
func (l *IntervalLimiter) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		return nil
	}

	l.mu.Lock()
	now := time.Now()
	next := l.last.Add(l.interval)
	if next.Before(now) {
		next = now
	}
	l.last = next
	l.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Interval returns the configured minimum interval.
func (l *IntervalLimiter) Interval() time.Duration {
	return l.interval
}
