// Package loadbalance provides the pluggable endpoint-selection strategies
// consulted by the registry client's SelectEndpoint.
//
// Three strategies are implemented:
//   - Random:         stateless, uniform selection
//   - RoundRobin:     atomic counter modulo endpoint count
//   - ConsistentHash: cache-affinity selection via a virtual-node hash ring
package loadbalance

import (
	"errors"

	"mini-rpc/extension"
	"mini-rpc/message"
)

// ErrNoEndpoints is returned by a balancer given an empty endpoint list.
var ErrNoEndpoints = errors.New("loadbalance: no endpoints to pick from")

// Balancer selects one endpoint from the currently known set for a given
// request. Implementations must tolerate empty and single-element inputs
// and must be safe for concurrent use — one instance is shared by every
// caller of a client.
type Balancer interface {
	Pick(endpoints []message.ServiceEndpoint, req *message.Request) (message.ServiceEndpoint, error)
	Name() string
}

func init() {
	extension.Register("balancer", "random", func() any { return &RandomBalancer{} })
	extension.Register("balancer", "roundrobin", func() any { return &RoundRobinBalancer{} })
	extension.Register("balancer", "consistenthash", func() any { return &ConsistentHashBalancer{} })
}
