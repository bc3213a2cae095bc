// Package registry is the service registration and discovery client: it
// exposes registered service endpoints to load balancers and keeps a
// read-safe cache of them current via the coordination service's
// child-watch mechanism.
package registry

import (
	"context"
	"errors"

	"mini-rpc/message"
)

// ErrNoEndpoints is raised when a lookup is attempted before any endpoint
// has ever been discovered for a service — distinct from a lookup that
// legitimately finds zero live endpoints after a successful watch.
var ErrNoEndpoints = errors.New("registry: no endpoints available")

// Registry is the coordination-service-backed directory of live service
// endpoints. Implementations must tolerate concurrent Lookup calls from
// many client goroutines while a background watch mutates the cache.
type Registry interface {
	// Register publishes serviceName as reachable at endpoint. The
	// registration is ephemeral: the coordination service removes it
	// automatically if this process disconnects without calling
	// Unregister first.
	Register(ctx context.Context, serviceName string, endpoint message.ServiceEndpoint) error

	// Unregister removes a previously registered endpoint. Safe to call
	// even if the ephemeral node already expired on its own.
	Unregister(ctx context.Context, serviceName string, endpoint message.ServiceEndpoint) error

	// Lookup returns the cached endpoint list for serviceName, installing
	// a watch on first call so the cache stays current thereafter.
	// Returns ErrNoEndpoints if serviceName has never been discovered.
	Lookup(ctx context.Context, serviceName string) ([]message.ServiceEndpoint, error)

	// SelectEndpoint resolves the current endpoint list via Lookup and
	// hands it to the configured load balancer along with the request
	// being routed, so strategies like consistent hashing can key off of
	// request content.
	SelectEndpoint(ctx context.Context, serviceName string, req *message.Request) (message.ServiceEndpoint, error)

	// Close stops all background watches and releases the underlying
	// client connection.
	Close() error
}
