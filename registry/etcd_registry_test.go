package registry

import (
	"context"
	"testing"
	"time"

	"mini-rpc/message"
)

// TestRegisterAndDiscover is an integration test: it requires a live etcd
// instance at localhost:2379 and is skipped otherwise.
func TestRegisterAndDiscover(t *testing.T) {
	reg, err := NewEtcdRegistry([]string{"localhost:2379"}, nil)
	if err != nil {
		t.Skipf("etcd unavailable: %v", err)
	}
	defer reg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := reg.client.Get(ctx, "health-check"); err != nil {
		t.Skipf("etcd unavailable: %v", err)
	}

	ep1 := message.ServiceEndpoint{Host: "127.0.0.1", Port: 8001}
	ep2 := message.ServiceEndpoint{Host: "127.0.0.1", Port: 8002}

	if err := reg.Register(context.Background(), "Arith", ep1); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(context.Background(), "Arith", ep2); err != nil {
		t.Fatal(err)
	}

	endpoints, err := reg.Lookup(context.Background(), "Arith")
	if err != nil {
		t.Fatal(err)
	}
	if len(endpoints) != 2 {
		t.Fatalf("expect 2 endpoints, got %d", len(endpoints))
	}

	if err := reg.Unregister(context.Background(), "Arith", ep1); err != nil {
		t.Fatal(err)
	}

	time.Sleep(200 * time.Millisecond)

	endpoints, err = reg.Lookup(context.Background(), "Arith")
	if err != nil {
		t.Fatal(err)
	}
	if len(endpoints) != 1 {
		t.Fatalf("expect 1 endpoint after unregister, got %d", len(endpoints))
	}
	if endpoints[0].Addr() != ep2.Addr() {
		t.Fatalf("expect %s, got %s", ep2.Addr(), endpoints[0].Addr())
	}

	reg.Unregister(context.Background(), "Arith", ep2)
}
