// Package circuitbreaker implements a per-service Closed/Open/HalfOpen
// circuit breaker, grounded on
// original_source/rpc-common/.../circuitbreaker/CircuitBreaker.java: the
// same three-state machine, CAS-guarded transitions, and default
// thresholds, ported from Java's AtomicReference<State> to Go's
// atomic.Int32/Int64.
package circuitbreaker

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrCircuitOpen is surfaced to a caller whose admission check is denied.
var ErrCircuitOpen = errors.New("circuitbreaker: circuit open")

// State is one of the three breaker states.
type State int32

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds the breaker's tunables; defaults match the spec.
type Config struct {
	FailureThreshold int           // consecutive failures before Closed -> Open
	RecoveryTimeout  time.Duration // Open -> HalfOpen admission eligibility
	HalfOpenMaxCalls int           // HalfOpen successes that close the breaker; HalfOpen admits every call until then (admissions are not counted, so calls in flight are not capped)
}

// DefaultConfig returns the spec's stated defaults: threshold 5, recovery
// 60s, half-open max calls 3.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// Breaker is a single service's circuit breaker.
type Breaker struct {
	cfg Config

	state           atomic.Int32
	failureCount    atomic.Int32
	successCount    atomic.Int32
	halfOpenCount   atomic.Int32
	lastFailureUnix atomic.Int64
}

// New creates a breaker starting Closed.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg = DefaultConfig()
	}
	b := &Breaker{cfg: cfg}
	b.state.Store(int32(Closed))
	return b
}

// State reports the breaker's current state.
func (b *Breaker) State() State { return State(b.state.Load()) }

// Allow reports whether a call may proceed, transitioning Open -> HalfOpen
// via CAS once the recovery timeout has elapsed.
func (b *Breaker) Allow() error {
	switch b.State() {
	case Closed:
		return nil
	case HalfOpen:
		if b.halfOpenCount.Load() < int32(b.cfg.HalfOpenMaxCalls) {
			return nil
		}
		return ErrCircuitOpen
	case Open:
		lastFailure := time.Unix(0, b.lastFailureUnix.Load())
		if time.Since(lastFailure) > b.cfg.RecoveryTimeout {
			if b.state.CompareAndSwap(int32(Open), int32(HalfOpen)) {
				b.halfOpenCount.Store(0)
				b.successCount.Store(0)
				return nil
			}
			// another goroutine won the CAS race; re-check its outcome
			return b.Allow()
		}
		return ErrCircuitOpen
	default:
		return ErrCircuitOpen
	}
}

// RecordSuccess reports a successful call, resetting the failure count in
// Closed and advancing the HalfOpen admission count toward the threshold
// that closes the breaker again.
func (b *Breaker) RecordSuccess() {
	switch b.State() {
	case Closed:
		b.failureCount.Store(0)
	case HalfOpen:
		b.halfOpenCount.Add(1)
		if b.successCount.Add(1) >= int32(b.cfg.HalfOpenMaxCalls) {
			if b.state.CompareAndSwap(int32(HalfOpen), int32(Closed)) {
				b.failureCount.Store(0)
				b.successCount.Store(0)
				b.halfOpenCount.Store(0)
			}
		}
	}
}

// RecordFailure reports a failed call. In Closed, increments the failure
// count and trips to Open once it reaches FailureThreshold. Any failure
// while HalfOpen immediately trips back to Open.
func (b *Breaker) RecordFailure() {
	b.lastFailureUnix.Store(time.Now().UnixNano())
	switch b.State() {
	case Closed:
		if b.failureCount.Add(1) >= int32(b.cfg.FailureThreshold) {
			b.trip()
		}
	case HalfOpen:
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state.Store(int32(Open))
	b.failureCount.Store(0)
	b.successCount.Store(0)
	b.halfOpenCount.Store(0)
}
