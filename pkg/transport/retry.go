package transport

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines exponential backoff behaviour for failed requests.
type RetryPolicy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64
}

// DefaultRetryPolicy returns the backoff schedule used for 5xx and
// connection failures: 1s, 2s, 4s, capped and lightly jittered.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:     3,
		InitialDelay:    time.Second,
		MaxDelay:        30 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.25,
	}
}

// Delay returns the backoff delay for a given zero-based attempt.
func (rp *RetryPolicy) Delay(attempt int) time.Duration {
	delay := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt))

	if rp.MaxDelay > 0 && delay > float64(rp.MaxDelay) {
		delay = float64(rp.MaxDelay)
	}

	// Jitter
	if rp.RandomizeFactor > 0 {
		delta := delay * rp.RandomizeFactor
		delay = delay - delta + rand.Float64()*2*delta
	}

	return time.Duration(delay)
}

// Exhausted reports whether the zero-based attempt has used up the budget.
func (rp *RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= rp.MaxAttempts-1
}
