// Package resilience implements the Surface Adapter Base's cross-cutting
// policies: rate-limit accounting, the health/circuit-breaker state machine,
// and the error classification table (spec §4.1).
package resilience

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitStatus is a snapshot of a surface's windowed-counter state.
type RateLimitStatus struct {
	CurrentCount int
	MaxCount     int
	ResetAt      time.Time
	Limited      bool
}

// RateLimiter implements the windowed counter described in spec §4.1: each
// successful request increments currentCount; reaching maxCount opens a
// 60-second window during which the surface is reported limited. It also
// holds a golang.org/x/time/rate token bucket sized to the same budget; the
// reset window itself is tracked by resetAt, not by the bucket.
type RateLimiter struct {
	mu           sync.Mutex
	maxCount     int
	window       time.Duration
	currentCount int
	resetAt      time.Time
	limited      bool

	// limiter is a token bucket with burst maxCount that refills maxCount
	// tokens per window. RecordSuccess takes one token per success, but the
	// bucket cannot run out before currentCount reaches maxCount, so in
	// practice the windowed counter alone decides when the surface is limited.
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter for a surface with the given requests per
// minute. A zero or negative value disables limiting (the surface is never
// marked limited).
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	window := 60 * time.Second
	var lim *rate.Limiter
	if requestsPerMinute > 0 {
		lim = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/window.Seconds()), requestsPerMinute)
	}
	return &RateLimiter{
		maxCount: requestsPerMinute,
		window:   window,
		limiter:  lim,
	}
}

// Status returns the current windowed-counter state as of now, clearing an
// expired window as a side effect (spec §4.1: "a status read after now >=
// resetAt zeroes the counter and clears the flag").
func (r *RateLimiter) Status(now time.Time) RateLimitStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maybeReset(now)
	return RateLimitStatus{
		CurrentCount: r.currentCount,
		MaxCount:     r.maxCount,
		ResetAt:      r.resetAt,
		Limited:      r.limited,
	}
}

func (r *RateLimiter) maybeReset(now time.Time) {
	if r.limited && !now.Before(r.resetAt) {
		r.currentCount = 0
		r.limited = false
	}
}

// RecordSuccess increments the counter after a successful call; when the
// counter reaches maxCount, the limiter marks itself limited with a 60s
// reset window (spec §4.1 step 3b). It also takes one token from the token
// bucket and marks the surface limited if none is left; because the bucket
// holds maxCount tokens and refills fully within one window, that never
// happens before the counter itself reaches maxCount.
func (r *RateLimiter) RecordSuccess(now time.Time) {
	if r.maxCount <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maybeReset(now)
	r.currentCount++
	paced := r.limiter.AllowN(now, 1)
	if r.currentCount >= r.maxCount || !paced {
		r.limited = true
		r.resetAt = now.Add(r.window)
	}
}
