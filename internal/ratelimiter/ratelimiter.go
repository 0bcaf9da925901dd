package ratelimiter

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// Limiter throttles control commands across all connections of an adapter.
//
// It is a token bucket: commands consume one token each, tokens refill at
// the configured rate and at most burst tokens accumulate while idle.
// A nil *Limiter and a limiter built with a zero rate never throttle.
//
// All methods are safe for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
}

// New returns a limiter allowing commandsPerSecond sustained commands with
// bursts of up to burst. A zero rate disables limiting and a zero burst
// defaults to one token.
func New(commandsPerSecond, burst uint) *Limiter {
	if burst == 0 {
		burst = 1
	}
	if commandsPerSecond == 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, clampBurst(burst))}
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(commandsPerSecond), clampBurst(burst)),
	}
}

// Enabled reports whether the limiter actually throttles.
func (l *Limiter) Enabled() bool {
	return l != nil && l.limiter.Limit() != rate.Inf
}

// Allow consumes a token if one is available without waiting. Callers fall
// back to Wait when it reports false.
func (l *Limiter) Allow() bool {
	if !l.Enabled() {
		return true
	}
	return l.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if !l.Enabled() {
		return ctx.Err()
	}
	return l.limiter.Wait(ctx)
}

// Tokens returns the tokens currently in the bucket, or +Inf when disabled.
func (l *Limiter) Tokens() float64 {
	if !l.Enabled() {
		return math.Inf(1)
	}
	return l.limiter.Tokens()
}

func clampBurst(burst uint) int {
	if burst > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(burst)
}
