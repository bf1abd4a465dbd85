package exchangerate

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alem-hub/academy-core/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER - Token Bucket
// ══════════════════════════════════════════════════════════════════════════════

// ErrRateLimited is returned when a token cannot be had before the caller's
// deadline, or while the API has asked us to back off.
var ErrRateLimited = errors.New("exchangerate: rate limited")

// RateLimiterConfig contains configuration for the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained request rate.
	RequestsPerSecond float64

	// Burst is the bucket size.
	Burst int

	// DefaultPause is used after a 429 without a Retry-After header.
	DefaultPause time.Duration
}

// DefaultRateLimiterConfig returns conservative defaults for a free public API.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 1,
		Burst:             5,
		DefaultPause:      time.Minute,
	}
}

// RateLimiter is a token bucket that also honors server-requested pauses.
type RateLimiter struct {
	mu    sync.Mutex
	clock timeutil.Clock

	maxTokens    float64
	refillRate   float64
	tokens       float64
	lastRefill   time.Time
	pausedUntil  time.Time
	defaultPause time.Duration
}

// NewRateLimiter creates a limiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig, clock timeutil.Clock) *RateLimiter {
	defaults := DefaultRateLimiterConfig()
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}
	if config.DefaultPause <= 0 {
		config.DefaultPause = defaults.DefaultPause
	}

	clock = timeutil.OrSystem(clock)
	return &RateLimiter{
		clock:        clock,
		maxTokens:    float64(config.Burst),
		refillRate:   config.RequestsPerSecond,
		tokens:       float64(config.Burst),
		lastRefill:   clock.Now(),
		defaultPause: config.DefaultPause,
	}
}

// Wait blocks until a token is available. It gives up with ErrRateLimited
// right away when the wait would outlast ctx's deadline.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait, ok := rl.reserve()
		if ok {
			return nil
		}

		if deadline, has := ctx.Deadline(); has && rl.clock.Now().Add(wait).After(deadline) {
			return ErrRateLimited
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve takes a token, or reports how long until one may be available.
func (rl *RateLimiter) reserve() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	if now.Before(rl.pausedUntil) {
		return rl.pausedUntil.Sub(now), false
	}

	rl.refill(now)
	if rl.tokens >= 1 {
		rl.tokens--
		return 0, true
	}

	missing := 1 - rl.tokens
	return time.Duration(missing / rl.refillRate * float64(time.Second)), false
}

// Must be called with lock held.
func (rl *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(rl.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now
}

// Pause drains the bucket and blocks new requests for d, or for the default
// pause when d is not positive.
func (rl *RateLimiter) Pause(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if d <= 0 {
		d = rl.defaultPause
	}
	now := rl.clock.Now()
	rl.tokens = 0
	rl.lastRefill = now
	if until := now.Add(d); until.After(rl.pausedUntil) {
		rl.pausedUntil = until
	}
}

// Available returns the current token count.
func (rl *RateLimiter) Available() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill(rl.clock.Now())
	return rl.tokens
}

// parseRetryAfter reads a Retry-After header in its delay-seconds form or
// its HTTP-date form. Unparseable values yield zero.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := time.Parse(time.RFC1123, v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
