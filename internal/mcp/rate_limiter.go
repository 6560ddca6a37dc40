package mcp

import (
	"golang.org/x/time/rate"
)

// RateLimiter throttles tool calls with a token bucket
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter allows ratePerMinute calls per minute with the given burst.
// A burst of zero or less is set to the per-minute rate. A rate of zero or
// less disables limiting.
func NewRateLimiter(ratePerMinute, burst int) *RateLimiter {
	if ratePerMinute <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst <= 0 {
		burst = ratePerMinute
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60), burst)}
}

// Allow takes one token for a call to tool
func (r *RateLimiter) Allow(tool string) bool {
	return r.limiter.Allow()
}

// Available reports whether a call would be allowed right now without taking a token
func (r *RateLimiter) Available() bool {
	return r.limiter.Limit() == rate.Inf || r.limiter.Tokens() >= 1
}
