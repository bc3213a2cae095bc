package retry

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"mini-rpc/circuitbreaker"
)

func TestShouldRetryRespectsMaxRetries(t *testing.T) {
	err := fmt.Errorf("dial tcp: %w", ErrConnectTimeout)
	if ShouldRetry(3, 3, err) {
		t.Fatal("expected no retry once attempt reaches maxRetries")
	}
	if !ShouldRetry(2, 3, err) {
		t.Fatal("expected retry below maxRetries for a retriable error")
	}
}

func TestShouldRetryBusinessErrorIsNotRetriable(t *testing.T) {
	err := errors.New("validation failed: missing field 'id'")
	if ShouldRetry(0, 3, err) {
		t.Fatal("business errors must not be retriable")
	}
}

func TestShouldRetrySubstringMatch(t *testing.T) {
	cases := []string{
		"dial tcp 10.0.0.1:9000: Connection refused",
		"read tcp: Connection reset by peer",
		"dial tcp: No route to host",
	}
	for _, msg := range cases {
		if !ShouldRetry(0, 3, errors.New(msg)) {
			t.Errorf("expected %q to be retriable", msg)
		}
	}
}

func TestShouldRetryCircuitOpen(t *testing.T) {
	if !ShouldRetry(0, 3, circuitbreaker.ErrCircuitOpen) {
		t.Fatal("expected circuit-open to be retriable (the breaker may recover on a later attempt)")
	}
}

func TestFixedDelay(t *testing.T) {
	p := Policy{Mode: Fixed, BaseDelay: 50 * time.Millisecond}
	if p.Delay(1) != 50*time.Millisecond || p.Delay(5) != 50*time.Millisecond {
		t.Fatal("fixed mode must return the same delay regardless of attempt")
	}
}

func TestExponentialDelayCapped(t *testing.T) {
	p := Policy{Mode: Exponential, BaseDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: 300 * time.Millisecond}
	if p.Delay(1) != 100*time.Millisecond {
		t.Errorf("Delay(1) = %v, want 100ms", p.Delay(1))
	}
	if p.Delay(2) != 200*time.Millisecond {
		t.Errorf("Delay(2) = %v, want 200ms", p.Delay(2))
	}
	if p.Delay(3) != 300*time.Millisecond {
		t.Errorf("Delay(3) = %v, want 300ms (capped)", p.Delay(3))
	}
}
