// Package circuitbreaker stops calling an unhealthy upstream for a cool-down
// period. While the exchange-rate API keeps failing, lookups skip the network
// and go straight to the fallback table.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/alem-hub/academy-core/pkg/timeutil"
)

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without calling the upstream while the circuit
// is open, or while a half-open probe is already in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Settings configures a Breaker.
type Settings struct {
	Name string

	// Threshold is the number of consecutive upstream failures that opens
	// the circuit. Default: 5.
	Threshold int

	// Cooldown is how long the circuit stays open before one probe call is
	// let through. Default: 1m.
	Cooldown time.Duration

	// IsFailure reports whether err says the upstream is unhealthy. Errors it
	// rejects (bad input, unknown currency, a cancelled caller) count as a
	// healthy answer. Nil counts every error.
	IsFailure func(err error) bool

	// OnTransition is called, under the breaker lock, on every state change.
	OnTransition func(name string, from, to State)

	Clock timeutil.Clock
}

// Breaker guards calls to one upstream.
type Breaker struct {
	settings Settings

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// New creates a closed breaker.
func New(settings Settings) *Breaker {
	if settings.Threshold <= 0 {
		settings.Threshold = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = time.Minute
	}
	settings.Clock = timeutil.OrSystem(settings.Clock)
	return &Breaker{settings: settings}
}

// Execute calls fn unless the circuit is open.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.settings.Clock.Now().Sub(b.openedAt) < b.settings.Cooldown {
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	failed := err != nil && (b.settings.IsFailure == nil || b.settings.IsFailure(err))

	if !failed {
		b.failures = 0
		if b.state == StateHalfOpen {
			b.transition(StateClosed)
		}
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.settings.Threshold {
		b.openedAt = b.settings.Clock.Now()
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if to == StateClosed {
		b.failures = 0
	}
	if b.settings.OnTransition != nil {
		b.settings.OnTransition(b.settings.Name, from, to)
	}
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the circuit and forgets past failures.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(StateClosed)
	b.failures = 0
	b.probing = false
}
