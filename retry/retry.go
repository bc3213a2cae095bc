// Package retry provides the retriability classification and backoff
// policy the client re-enters its admission/encode/write/await pipeline
// under. Grounded on the teacher's middleware.RetryMiddleware (exponential
// backoff, substring-matched retriable errors) generalized from a single
// hardcoded backoff mode into the spec's Fixed/Exponential policy pair.
package retry

import (
	"errors"
	"strings"
	"time"

	"mini-rpc/circuitbreaker"
)

// Sentinel errors other packages wrap (via fmt.Errorf("...: %w", ...)) so
// ShouldRetry can recognize them regardless of which layer raised them.
var (
	ErrConnectTimeout = errors.New("retry: connect timeout")
	ErrRequestTimeout = errors.New("retry: request timeout")
	ErrTransport      = errors.New("retry: transport error")
)

var retriableSentinels = []error{
	ErrConnectTimeout,
	ErrRequestTimeout,
	ErrTransport,
	circuitbreaker.ErrCircuitOpen,
}

// Mode selects how Policy.Delay computes the wait between attempts.
type Mode int

const (
	Fixed Mode = iota
	Exponential
)

// Policy is a retry policy: how many attempts, which mode, and the delay
// parameters for that mode.
type Policy struct {
	MaxRetries int
	Mode       Mode
	BaseDelay  time.Duration
	Multiplier float64 // Exponential mode only; ignored for Fixed
	MaxDelay   time.Duration
}

// DefaultPolicy is three retries of exponential backoff starting at 100ms,
// doubling, capped at 2s.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		Mode:       Exponential,
		BaseDelay:  100 * time.Millisecond,
		Multiplier: 2,
		MaxDelay:   2 * time.Second,
	}
}

// Delay returns the wait before the given attempt (1-indexed: the delay
// before the first retry is Delay(1)).
func (p Policy) Delay(attempt int) time.Duration {
	if p.Mode == Fixed {
		return p.BaseDelay
	}
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= p.Multiplier
	}
	delay := time.Duration(d)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// retriableSubstrings are the well-known transport-error phrases the spec
// names as always retriable, regardless of which layer raised them.
var retriableSubstrings = []string{
	"Connection refused",
	"Connection reset",
	"No route to host",
}

// ShouldRetry classifies an error as retriable: connect failures, timeouts,
// transport errors matching the well-known substrings above, and the
// sentinel errors a failed admission/transport attempt surfaces
// (ErrConnectTimeout, ErrRequestTimeout, ErrTransport, ErrCircuitOpen).
// Business errors (validation, authorization) are never retriable.
func ShouldRetry(attempt int, maxRetries int, err error) bool {
	if err == nil || attempt >= maxRetries {
		return false
	}
	if isRetriableSentinel(err) {
		return true
	}
	msg := err.Error()
	for _, substr := range retriableSubstrings {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

func isRetriableSentinel(err error) bool {
	for _, target := range retriableSentinels {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
