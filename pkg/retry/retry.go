// Package retry runs an operation a bounded number of times with capped
// exponential backoff. It never sleeps past the caller's deadline: a rate
// lookup shares one request budget, and a retry that cannot finish in time
// only delays the fallback.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// Policy describes how an operation is retried.
type Policy struct {
	// Attempts is the total number of calls, the first one included.
	Attempts int

	// BaseDelay is the pause after the first failure; it doubles per attempt.
	BaseDelay time.Duration

	// MaxDelay caps a single pause.
	MaxDelay time.Duration

	// Jitter spreads each pause by ±Jitter of its length (0..1).
	Jitter float64

	// Retryable decides whether err deserves another attempt.
	// Nil means every error except context cancellation is retried.
	Retryable func(err error) bool

	// OnRetry is called before each pause.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Do calls op until it succeeds, returns an error Retryable rejects, the
// attempts run out, or ctx ends. The last error from op is returned as is.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt >= attempts || !p.shouldRetry(err) {
			return err
		}

		delay := p.backoff(attempt, rand.Float64())
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= delay {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

func (p Policy) shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// backoff returns the pause after the given attempt. r is a uniform sample
// in [0,1) used for jitter.
func (p Policy) backoff(attempt int, r float64) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && (d <= 0 || d > p.MaxDelay) {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d += time.Duration(float64(d) * p.Jitter * (2*r - 1))
	}
	if d < 0 {
		return 0
	}
	return d
}

// RateAPI is the policy for exchange-rate lookups: short pauses, so that the
// whole lookup fits the request timeout.
func RateAPI(attempts int, retryable func(error) bool, onRetry func(int, error, time.Duration)) Policy {
	return Policy{
		Attempts:  attempts,
		BaseDelay: 200 * time.Millisecond,
		MaxDelay:  time.Second,
		Jitter:    0.2,
		Retryable: retryable,
		OnRetry:   onRetry,
	}
}

// DatabaseStartup is the policy for the first ping of a freshly started pool.
func DatabaseStartup() Policy {
	return Policy{
		Attempts:  5,
		BaseDelay: 250 * time.Millisecond,
		MaxDelay:  4 * time.Second,
		Jitter:    0.1,
	}
}
