// Package registry provides the etcd-based implementation of the Registry
// interface.
//
// etcd is a distributed key-value store with strong consistency (Raft). We
// use it as a "distributed phonebook" for services:
//
//	Key:   /rpc-services/{serviceName}/{leaseID}
//	Value: "host:port"
//
// Registration uses lease-backed keys: if a server crashes without calling
// Unregister, its lease expires and etcd removes the entry automatically —
// the ephemeral-node guarantee the coordination-service contract requires.
// etcd has no native sequential znode, so the lease ID (itself monotonically
// increasing, assigned by the cluster) stands in for the sequence number.
package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mini-rpc/loadbalance"
	"mini-rpc/message"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const servicePrefix = "/rpc-services/"

// reconnect backoff: initial 1s, up to 3 attempts, doubling each time.
const (
	reconnectInitialDelay = time.Second
	reconnectMaxAttempts  = 3
)

type endpointCache struct {
	mu        sync.RWMutex
	endpoints []message.ServiceEndpoint
	loaded    bool
}

func (c *endpointCache) get() ([]message.ServiceEndpoint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.endpoints, c.loaded
}

func (c *endpointCache) set(eps []message.ServiceEndpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoints = eps
	c.loaded = true
}

// EtcdRegistry implements Registry against an etcd v3 cluster.
type EtcdRegistry struct {
	client   *clientv3.Client
	balancer loadbalance.Balancer

	mu      sync.Mutex
	caches  map[string]*endpointCache   // serviceName -> cached endpoint list
	cancels map[string]context.CancelFunc // serviceName -> watch goroutine cancel
	leases  map[string]clientv3.LeaseID   // serviceName+"/"+addr -> held lease
}

// NewEtcdRegistry dials the given etcd endpoints. balancer selects among
// the endpoints SelectEndpoint discovers; pass nil to default to random.
func NewEtcdRegistry(endpoints []string, balancer loadbalance.Balancer) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	if balancer == nil {
		balancer = &loadbalance.RandomBalancer{}
	}
	return &EtcdRegistry{
		client:   c,
		balancer: balancer,
		caches:   map[string]*endpointCache{},
		cancels:  map[string]context.CancelFunc{},
		leases:   map[string]clientv3.LeaseID{},
	}, nil
}

// Register grants a 10-second lease, puts serviceName's endpoint under it,
// and starts the keep-alive loop that renews it for as long as the process
// is alive — retrying the initial grant/put with exponential backoff if the
// cluster is briefly unreachable.
func (r *EtcdRegistry) Register(ctx context.Context, serviceName string, endpoint message.ServiceEndpoint) error {
	var leaseID clientv3.LeaseID

	err := withBackoff(ctx, func() error {
		lease, err := r.client.Grant(ctx, 10)
		if err != nil {
			return err
		}
		key := fmt.Sprintf("%s%s/%d", servicePrefix, serviceName, lease.ID)
		if _, err := r.client.Put(ctx, key, endpoint.Addr(), clientv3.WithLease(lease.ID)); err != nil {
			return err
		}
		leaseID = lease.ID
		return nil
	})
	if err != nil {
		return fmt.Errorf("registry: register %s: %w", serviceName, err)
	}

	ch, err := r.client.KeepAlive(ctx, leaseID)
	if err != nil {
		return err
	}
	go func() {
		for range ch {
		}
	}()

	r.mu.Lock()
	r.leases[serviceName+"/"+endpoint.Addr()] = leaseID
	r.mu.Unlock()
	return nil
}

// Unregister revokes the lease backing serviceName's endpoint, which
// deletes the key immediately rather than waiting for expiry.
func (r *EtcdRegistry) Unregister(ctx context.Context, serviceName string, endpoint message.ServiceEndpoint) error {
	r.mu.Lock()
	leaseID, ok := r.leases[serviceName+"/"+endpoint.Addr()]
	delete(r.leases, serviceName+"/"+endpoint.Addr())
	r.mu.Unlock()

	if !ok {
		return nil // already gone, or never registered by this process
	}
	_, err := r.client.Revoke(ctx, leaseID)
	return err
}

// Lookup returns the cached endpoint list, installing a watch on first call
// for this serviceName. Returns ErrNoEndpoints if this is the first call and
// the initial read found nothing.
func (r *EtcdRegistry) Lookup(ctx context.Context, serviceName string) ([]message.ServiceEndpoint, error) {
	cache := r.cacheFor(serviceName)

	if eps, loaded := cache.get(); loaded {
		return eps, nil
	}

	eps, err := r.fetch(ctx, serviceName)
	if err != nil {
		return nil, err
	}
	cache.set(eps)
	r.ensureWatch(serviceName, cache)

	if len(eps) == 0 {
		return nil, ErrNoEndpoints
	}
	return eps, nil
}

// SelectEndpoint resolves the cache via Lookup and delegates the pick to
// the configured balancer.
func (r *EtcdRegistry) SelectEndpoint(ctx context.Context, serviceName string, req *message.Request) (message.ServiceEndpoint, error) {
	eps, err := r.Lookup(ctx, serviceName)
	if err != nil {
		return message.ServiceEndpoint{}, err
	}
	return r.balancer.Pick(eps, req)
}

// Close stops every watch goroutine and closes the underlying client.
func (r *EtcdRegistry) Close() error {
	r.mu.Lock()
	for _, cancel := range r.cancels {
		cancel()
	}
	r.cancels = map[string]context.CancelFunc{}
	r.mu.Unlock()
	return r.client.Close()
}

func (r *EtcdRegistry) cacheFor(serviceName string) *endpointCache {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[serviceName]
	if !ok {
		c = &endpointCache{}
		r.caches[serviceName] = c
	}
	return c
}

func (r *EtcdRegistry) fetch(ctx context.Context, serviceName string) ([]message.ServiceEndpoint, error) {
	prefix := servicePrefix + serviceName + "/"
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	eps := make([]message.ServiceEndpoint, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		ep, err := parseEndpoint(string(kv.Value))
		if err != nil {
			zap.L().Warn("registry: skipping malformed endpoint", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		eps = append(eps, ep)
	}
	return eps, nil
}

// ensureWatch installs the child-watch for serviceName exactly once;
// subsequent calls are no-ops. On every watch event it re-reads the full
// child list and atomically replaces the cache, which is simpler and more
// robust than reconstructing state from individual put/delete events.
func (r *EtcdRegistry) ensureWatch(serviceName string, cache *endpointCache) {
	r.mu.Lock()
	if _, exists := r.cancels[serviceName]; exists {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancels[serviceName] = cancel
	r.mu.Unlock()

	prefix := servicePrefix + serviceName + "/"
	watchChan := r.client.Watch(ctx, prefix, clientv3.WithPrefix())

	go func() {
		for range watchChan {
			eps, err := r.fetch(ctx, serviceName)
			if err != nil {
				zap.L().Warn("registry: refresh after watch event failed", zap.String("service", serviceName), zap.Error(err))
				continue
			}
			cache.set(eps)
		}
	}()
}

func parseEndpoint(addr string) (message.ServiceEndpoint, error) {
	i := strings.LastIndexByte(addr, ':')
	if i < 0 {
		return message.ServiceEndpoint{}, fmt.Errorf("registry: malformed endpoint %q", addr)
	}
	port, err := strconv.Atoi(addr[i+1:])
	if err != nil {
		return message.ServiceEndpoint{}, fmt.Errorf("registry: malformed port in %q: %w", addr, err)
	}
	return message.ServiceEndpoint{Host: addr[:i], Port: port}, nil
}

// withBackoff retries fn up to reconnectMaxAttempts times with doubling
// delay starting at reconnectInitialDelay, for transient cluster
// unavailability during registration.
func withBackoff(ctx context.Context, fn func() error) error {
	delay := reconnectInitialDelay
	var err error
	for attempt := 1; attempt <= reconnectMaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == reconnectMaxAttempts {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return err
}
