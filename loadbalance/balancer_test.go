package loadbalance

import (
	"testing"

	"mini-rpc/message"
)

func endpoints(n int) []message.ServiceEndpoint {
	eps := make([]message.ServiceEndpoint, n)
	for i := range eps {
		eps[i] = message.ServiceEndpoint{Host: "10.0.0.1", Port: 9000 + i}
	}
	return eps
}

func testEmptyAndSingle(t *testing.T, b Balancer) {
	t.Helper()
	if _, err := b.Pick(nil, &message.Request{}); err != ErrNoEndpoints {
		t.Errorf("%s: Pick(nil) error = %v, want ErrNoEndpoints", b.Name(), err)
	}
	sole := endpoints(1)
	ep, err := b.Pick(sole, &message.Request{})
	if err != nil {
		t.Fatalf("%s: Pick(single) failed: %v", b.Name(), err)
	}
	if ep != sole[0] {
		t.Errorf("%s: Pick(single) = %v, want %v", b.Name(), ep, sole[0])
	}
}

func TestRandomBalancer(t *testing.T) {
	b := &RandomBalancer{}
	testEmptyAndSingle(t, b)
	eps := endpoints(5)
	for i := 0; i < 20; i++ {
		if _, err := b.Pick(eps, &message.Request{}); err != nil {
			t.Fatalf("Pick failed: %v", err)
		}
	}
}

func TestRoundRobinBalancerCycles(t *testing.T) {
	b := &RoundRobinBalancer{}
	testEmptyAndSingle(t, b)

	eps := endpoints(3)
	seen := map[string]int{}
	for i := 0; i < 9; i++ {
		ep, err := b.Pick(eps, &message.Request{})
		if err != nil {
			t.Fatalf("Pick failed: %v", err)
		}
		seen[ep.Addr()]++
	}
	for _, ep := range eps {
		if seen[ep.Addr()] != 3 {
			t.Errorf("endpoint %s picked %d times, want 3 (even distribution over 9 picks)", ep.Addr(), seen[ep.Addr()])
		}
	}
}

func TestConsistentHashBalancerIsStable(t *testing.T) {
	b := &ConsistentHashBalancer{}
	testEmptyAndSingle(t, &ConsistentHashBalancer{})

	eps := endpoints(5)
	req := &message.Request{Interface: "UserService", Method: "Get", Version: "1.0", Group: "default", Params: []any{42}}

	first, err := b.Pick(eps, req)
	if err != nil {
		t.Fatalf("Pick failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := b.Pick(eps, req)
		if err != nil {
			t.Fatalf("Pick failed: %v", err)
		}
		if again != first {
			t.Fatalf("consistent hash picked %v then %v for the same request/endpoint set", first, again)
		}
	}
}

func TestConsistentHashBalancerRebuildsOnEndpointChange(t *testing.T) {
	b := &ConsistentHashBalancer{}
	req := &message.Request{Interface: "UserService", Method: "Get", Params: []any{"key-1"}}

	eps := endpoints(3)
	first, err := b.Pick(eps, req)
	if err != nil {
		t.Fatalf("Pick failed: %v", err)
	}

	grown := endpoints(8)
	if _, err := b.Pick(grown, req); err != nil {
		t.Fatalf("Pick after growth failed: %v", err)
	}
	if b.cacheKey == canonicalEndpointKey(eps) {
		t.Fatal("ring cache key did not update after endpoint set changed")
	}
	_ = first
}
