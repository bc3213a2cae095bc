package client

import (
	"context"
	"testing"
	"time"

	"mini-rpc/loadbalance"
	"mini-rpc/message"
	"mini-rpc/server"
)

// staticRegistry is a fixed single-endpoint registry.Registry stub so
// these tests don't depend on a live etcd instance.
type staticRegistry struct {
	endpoint message.ServiceEndpoint
	balancer loadbalance.Balancer
}

func (r *staticRegistry) Register(ctx context.Context, serviceName string, endpoint message.ServiceEndpoint) error {
	return nil
}
func (r *staticRegistry) Unregister(ctx context.Context, serviceName string, endpoint message.ServiceEndpoint) error {
	return nil
}
func (r *staticRegistry) Lookup(ctx context.Context, serviceName string) ([]message.ServiceEndpoint, error) {
	return []message.ServiceEndpoint{r.endpoint}, nil
}
func (r *staticRegistry) SelectEndpoint(ctx context.Context, serviceName string, req *message.Request) (message.ServiceEndpoint, error) {
	eps, _ := r.Lookup(ctx, serviceName)
	return r.balancer.Pick(eps, req)
}
func (r *staticRegistry) Close() error { return nil }

func addHandler(ctx context.Context, params []any) (any, error) {
	a := params[0].(float64)
	b := params[1].(float64)
	return a + b, nil
}

func TestClientCallRoundTrip(t *testing.T) {
	svr := server.New(nil, nil, nil, nil)
	svr.Register("Arith", "default", "1.0", "Add", addHandler)
	go svr.Serve("tcp", ":8895", "", nil)
	time.Sleep(100 * time.Millisecond)

	reg := &staticRegistry{
		endpoint: message.ServiceEndpoint{Host: "127.0.0.1", Port: 8895},
		balancer: &loadbalance.RandomBalancer{},
	}
	c := New(DefaultConfig(), reg, nil, nil, nil)
	defer c.Close()

	req := &message.Request{Interface: "Arith", Method: "Add", Group: "default", Version: "1.0", Params: []any{1, 2}}
	resp, err := c.Call(context.Background(), "Arith", req)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.IsSuccess() {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp.Payload.(float64) != 3 {
		t.Fatalf("expected 3, got %v", resp.Payload)
	}
}

func TestClientCallUnknownMethodFails(t *testing.T) {
	svr := server.New(nil, nil, nil, nil)
	svr.Register("Arith", "default", "1.0", "Add", addHandler)
	go svr.Serve("tcp", ":8896", "", nil)
	time.Sleep(100 * time.Millisecond)

	reg := &staticRegistry{
		endpoint: message.ServiceEndpoint{Host: "127.0.0.1", Port: 8896},
		balancer: &loadbalance.RandomBalancer{},
	}
	cfg := DefaultConfig()
	cfg.Retry.MaxRetries = 0
	c := New(cfg, reg, nil, nil, nil)
	defer c.Close()

	req := &message.Request{Interface: "Arith", Method: "Missing", Group: "default", Version: "1.0"}
	resp, err := c.Call(context.Background(), "Arith", req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.IsSuccess() {
		t.Fatal("expected failure response for unknown method")
	}
}
