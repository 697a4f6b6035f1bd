// Package breaker implements the per-service circuit breaker state machine
// used by the MCP Gateway: closed, open, half-open, with failure-threshold
// tripping and recovery-timeout-gated trial calls. Grounded directly on
// original_source's CircuitBreaker (gateway/mcp_gateway.py), restated as an
// explicit state machine in the teacher's functional-options idiom.
package breaker

import (
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

const (
	// DefaultFailureThreshold is the consecutive-failure count that trips
	// the breaker from closed to open.
	DefaultFailureThreshold = 5
	// DefaultRecoveryTimeout is how long an open breaker waits before
	// allowing a half-open trial call.
	DefaultRecoveryTimeout = 60 * time.Second
)

// Breaker is a single service's circuit breaker. All methods are safe for
// concurrent use.
type Breaker struct {
	mu               sync.Mutex
	state            State
	failureCount     int
	lastFailureTime  time.Time
	failureThreshold int
	recoveryTimeout  time.Duration
	now              func() time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold overrides DefaultFailureThreshold.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) { b.failureThreshold = n }
}

// WithRecoveryTimeout overrides DefaultRecoveryTimeout.
func WithRecoveryTimeout(d time.Duration) Option {
	return func(b *Breaker) { b.recoveryTimeout = d }
}

// withClock injects a deterministic clock for tests.
func withClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New constructs a Breaker in the closed state.
func New(opts ...Option) *Breaker {
	b := &Breaker{
		state:            Closed,
		failureThreshold: DefaultFailureThreshold,
		recoveryTimeout:  DefaultRecoveryTimeout,
		now:              time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Allow reports whether a call may proceed, transitioning open→half_open
// when the recovery window has elapsed. Exactly one trial call is allowed
// while half_open; Allow does not itself enforce that exclusivity (the
// caller commits the outcome via RecordSuccess/RecordFailure), matching the
// original's can_execute semantics.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed:
		return true
	case Open:
		if !b.lastFailureTime.IsZero() && b.now().Sub(b.lastFailureTime) >= b.recoveryTimeout {
			b.state = HalfOpen
			return true
		}
		return false
	default: // HalfOpen
		return true
	}
}

// RecordSuccess resets the failure count and closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.state = Closed
}

// RecordFailure increments the failure count and opens the breaker once the
// threshold is reached (or immediately, from half_open).
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.lastFailureTime = b.now()
	if b.state == HalfOpen || b.failureCount >= b.failureThreshold {
		b.state = Open
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// FailureCount returns the current consecutive-failure count.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}
