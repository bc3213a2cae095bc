package loadbalance

import (
	"sync/atomic"

	"mini-rpc/message"
)

// RoundRobinBalancer distributes requests evenly across all endpoints in
// order, using an atomic counter for lock-free, goroutine-safe operation.
// Best for stateless services where every endpoint has similar capacity.
type RoundRobinBalancer struct {
	counter atomic.Int64
}

func (b *RoundRobinBalancer) Pick(endpoints []message.ServiceEndpoint, _ *message.Request) (message.ServiceEndpoint, error) {
	if len(endpoints) == 0 {
		return message.ServiceEndpoint{}, ErrNoEndpoints
	}
	if len(endpoints) == 1 {
		return endpoints[0], nil
	}
	index := b.counter.Add(1) % int64(len(endpoints))
	return endpoints[index], nil
}

func (b *RoundRobinBalancer) Name() string { return "roundrobin" }
