package providers

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled continuously at requestsPerMinute.
// One limiter is shared by every pipeline calling the same provider.
type RateLimiter struct {
	mu sync.Mutex

	requestsPerMinute int
	tokens            float64
	lastUpdate        time.Time

	totalConsumed int64
	totalWaited   time.Duration
	last429Time   time.Time
	pausedUntil   time.Time
}

// RateLimiterStatus reports current limiter state.
type RateLimiterStatus struct {
	TokensAvailable int           `json:"tokens_available" yaml:"tokens_available"`
	TokensLimit     int           `json:"tokens_limit" yaml:"tokens_limit"`
	TotalConsumed   int64         `json:"total_consumed" yaml:"total_consumed"`
	TotalWaited     time.Duration `json:"total_waited" yaml:"total_waited"`
	Last429Time     time.Time     `json:"last_429_time,omitempty" yaml:"last_429_time,omitempty"`
}

// NewRateLimiter creates a new rate limiter starting with a full bucket.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 150
	}
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		tokens:            float64(requestsPerMinute),
		lastUpdate:        time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		wait := r.reserve()
		r.mu.Unlock()
		if wait == 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			r.mu.Lock()
			r.totalWaited += wait
			r.mu.Unlock()
		}
	}
}

// TryConsume takes a token without blocking, reporting whether one was available.
func (r *RateLimiter) TryConsume() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reserve() == 0
}

// Record429 drains the bucket and pauses for retryAfter, when given.
func (r *RateLimiter) Record429(retryAfter time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.last429Time = time.Now()
	if retryAfter > 0 {
		r.tokens = 0
		r.pausedUntil = r.last429Time.Add(retryAfter)
	}
}

// Status returns current limiter status.
func (r *RateLimiter) Status() RateLimiterStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	return RateLimiterStatus{
		TokensAvailable: int(r.tokens),
		TokensLimit:     r.requestsPerMinute,
		TotalConsumed:   r.totalConsumed,
		TotalWaited:     r.totalWaited,
		Last429Time:     r.last429Time,
	}
}

// reserve consumes a token and returns 0, or returns how long to wait.
// Must be called with lock held.
func (r *RateLimiter) reserve() time.Duration {
	now := time.Now()
	if now.Before(r.pausedUntil) {
		return r.pausedUntil.Sub(now)
	}
	r.refill()
	if r.tokens >= 1.0 {
		r.tokens--
		r.totalConsumed++
		return 0
	}
	perSecond := float64(r.requestsPerMinute) / 60.0
	wait := time.Duration((1.0 - r.tokens) / perSecond * float64(time.Second))
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

// refill adds tokens for the elapsed time. Must be called with lock held.
func (r *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.lastUpdate = now

	r.tokens += elapsed * float64(r.requestsPerMinute) / 60.0
	if max := float64(r.requestsPerMinute); r.tokens > max {
		r.tokens = max
	}
}
