// Package circuitbreaker stops termwise from hammering a backend that keeps
// failing. Each backend endpoint gets its own Breaker.
//
// State transitions:
//
//	Closed → Open        when consecutive failures ≥ FailureThreshold
//	Open   → HalfOpen   after Timeout elapses
//	HalfOpen → Closed   when consecutive successes ≥ SuccessThreshold
//	HalfOpen → Open     on any failure
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the breaker's current state.
type State int

const (
	// StateClosed: normal operation, calls pass through.
	StateClosed State = iota
	// StateOpen: the backend is failing and calls are rejected immediately.
	StateOpen
	// StateHalfOpen: calls go through to probe recovery.
	StateHalfOpen
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned when a call is rejected because the circuit is open.
var ErrOpen = errors.New("circuit breaker open")

// Defaults applied for zero or negative settings.
const (
	DefaultFailureThreshold = 5
	DefaultSuccessThreshold = 1
	DefaultTimeout          = 30 * time.Second
)

// Settings configures a Breaker.
type Settings struct {
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	// OnStateChange, if set, is called with the new state after every transition.
	OnStateChange func(State)
	// Now replaces time.Now, for tests.
	Now func() time.Time
}

// Breaker guards a single backend.
type Breaker struct {
	mu           sync.Mutex
	settings     Settings
	state        State
	failureCount int
	successCount int
	openUntil    time.Time
}

// New creates a Breaker from s, filling in defaults.
func New(s Settings) *Breaker {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = DefaultFailureThreshold
	}
	if s.SuccessThreshold <= 0 {
		s.SuccessThreshold = DefaultSuccessThreshold
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return &Breaker{settings: s, state: StateClosed}
}

// State returns the current state, moving Open to HalfOpen once the timeout
// has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolveState()
}

// resolveState must be called with b.mu held.
func (b *Breaker) resolveState() State {
	if b.state == StateOpen && b.settings.Now().After(b.openUntil) {
		b.setState(StateHalfOpen)
		b.successCount = 0
	}
	return b.state
}

// setState must be called with b.mu held.
func (b *Breaker) setState(s State) {
	if b.state == s {
		return
	}
	b.state = s
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(s)
	}
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolveState() != StateOpen
}

// RecordSuccess notifies the breaker that a call succeeded.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.resolveState() {
	case StateHalfOpen:
		b.successCount++
		if b.successCount >= b.settings.SuccessThreshold {
			b.setState(StateClosed)
			b.failureCount = 0
			b.successCount = 0
		}
	case StateClosed:
		b.failureCount = 0
	}
}

// RecordFailure notifies the breaker that a call failed.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.resolveState() {
	case StateClosed:
		b.failureCount++
		if b.failureCount >= b.settings.FailureThreshold {
			b.trip()
		}
	case StateHalfOpen:
		b.trip()
	}
}

// trip must be called with b.mu held.
func (b *Breaker) trip() {
	b.openUntil = b.settings.Now().Add(b.settings.Timeout)
	b.successCount = 0
	b.setState(StateOpen)
}

// Do runs fn if the breaker allows it and records the outcome. A rejected
// call returns ErrOpen without running fn. Context cancellation by the
// caller is not counted as a backend failure.
func Do[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	if !b.Allow() {
		var zero T
		return zero, ErrOpen
	}
	v, err := fn(ctx)
	switch {
	case err == nil:
		b.RecordSuccess()
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
	default:
		b.RecordFailure()
	}
	return v, err
}
