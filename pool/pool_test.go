package pool

import (
	"context"
	"net"
	"testing"
	"time"
)

func pipeDialer() Dialer {
	return func(ctx context.Context, addr string) (net.Conn, error) {
		client, server := net.Pipe()
		go func() {
			buf := make([]byte, 1024)
			for {
				if _, err := server.Read(buf); err != nil {
					server.Close()
					return
				}
			}
		}()
		return client, nil
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxConnsPerEndpoint = 2
	cfg.MaxPendingQueue = 2
	cfg.HealthCheckEnabled = false
	cfg.IdleEvictInterval = time.Hour
	cfg.ConnectTimeout = time.Second
	return cfg
}

func TestAcquireCreatesUpToMax(t *testing.T) {
	p := New("test-addr", testConfig(), pipeDialer(), nil)
	defer p.Close()

	c1, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire 1 failed: %v", err)
	}
	c2, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire 2 failed: %v", err)
	}
	if c1.ID == c2.ID {
		t.Fatal("expected distinct connections")
	}
	if c1.State() != InUse || c2.State() != InUse {
		t.Fatal("acquired connections must be InUse")
	}
}

func TestAcquireSaturatesAndQueues(t *testing.T) {
	p := New("test-addr", testConfig(), pipeDialer(), nil)
	defer p.Close()

	c1, _ := p.Acquire(context.Background())
	c2, _ := p.Acquire(context.Background())

	releaseAfter := make(chan struct{})
	go func() {
		<-releaseAfter
		time.Sleep(10 * time.Millisecond)
		p.Release(c1, true)
	}()

	close(releaseAfter)
	c3, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("queued acquire failed: %v", err)
	}
	if c3.ID != c1.ID {
		t.Fatalf("expected the released connection to satisfy the waiter, got a different one")
	}
	p.Release(c2, true)
	p.Release(c3, true)
}

func TestAcquireFailsWhenPendingQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPendingQueue = 0
	p := New("test-addr", cfg, pipeDialer(), nil)
	defer p.Close()

	p.Acquire(context.Background())
	p.Acquire(context.Background())

	if _, err := p.Acquire(context.Background()); err != ErrPoolSaturated {
		t.Fatalf("expected ErrPoolSaturated, got %v", err)
	}
}

func TestReleaseUnhealthyClosesConnection(t *testing.T) {
	p := New("test-addr", testConfig(), pipeDialer(), nil)
	defer p.Close()

	c, _ := p.Acquire(context.Background())
	p.Release(c, false)

	if c.State() != Closed {
		t.Fatalf("expected closed connection, got state %v", c.State())
	}
	if stats := p.Stats(); stats.Total != 0 {
		t.Fatalf("expected pool to forget the closed connection, total = %d", stats.Total)
	}
}

func TestCloseCancelsWaiters(t *testing.T) {
	cfg := testConfig()
	p := New("test-addr", cfg, pipeDialer(), nil)

	p.Acquire(context.Background())
	p.Acquire(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	p.Close()

	select {
	case err := <-errCh:
		if err != ErrPoolClosed {
			t.Fatalf("expected ErrPoolClosed for queued waiter, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was never released after Close")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	p := New("test-addr", testConfig(), pipeDialer(), nil)
	if err := p.Close(); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
}

func TestWarmupCreatesConnectionsUpFront(t *testing.T) {
	cfg := testConfig()
	cfg.WarmupCount = 2
	p := New("test-addr", cfg, pipeDialer(), nil)
	defer p.Close()

	if err := p.Warmup(context.Background()); err != nil {
		t.Fatalf("warmup failed: %v", err)
	}
	if stats := p.Stats(); stats.Available != 2 {
		t.Fatalf("expected 2 available connections after warmup, got %d", stats.Available)
	}
}
