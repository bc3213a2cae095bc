package loadbalance

import (
	"math/rand"

	"mini-rpc/message"
)

// RandomBalancer picks uniformly at random. Stateless and safe for
// concurrent use — math/rand's top-level functions are internally locked.
type RandomBalancer struct{}

func (b *RandomBalancer) Pick(endpoints []message.ServiceEndpoint, _ *message.Request) (message.ServiceEndpoint, error) {
	if len(endpoints) == 0 {
		return message.ServiceEndpoint{}, ErrNoEndpoints
	}
	if len(endpoints) == 1 {
		return endpoints[0], nil
	}
	return endpoints[rand.Intn(len(endpoints))], nil
}

func (b *RandomBalancer) Name() string { return "random" }
