// Package pool is the per-endpoint connection pool: it creates, reuses,
// health-checks, and idle-evicts TCP connections to one remote address,
// queuing callers (with backpressure) when the pool is at capacity.
//
// Grounded on the teacher's transport.ConnPool (buffered-channel pool with
// a factory function and an "unusable" flag on each pooled connection) but
// restructured around explicit Available/InUse/Closed states with CAS
// transitions, a FIFO waiter queue instead of a blocking channel receive,
// and background health-check/idle-eviction goroutines the teacher's
// version didn't have.
package pool

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrPoolSaturated is returned by Acquire when the pool is at its
// connection limit and the pending-waiter queue is also full.
var ErrPoolSaturated = errors.New("pool: saturated, pending queue full")

// ErrPoolClosed is returned by Acquire (or delivered to any waiter) once
// the pool has been closed.
var ErrPoolClosed = errors.New("pool: closed")

// State is a pooled connection's lifecycle stage.
type State int32

const (
	Available State = iota
	InUse
	Closed
)

// Config holds the pool's tunables; every numeric default matches the
// values the spec calls out.
type Config struct {
	MaxConnsPerEndpoint  int
	IdleTimeout          time.Duration
	HealthCheckInterval  time.Duration
	MaxPendingQueue      int
	ConnectTimeout       time.Duration
	IdleEvictInterval    time.Duration
	WarmupCount          int
	Enabled              bool
	HealthCheckEnabled   bool
}

// DefaultConfig returns the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		MaxConnsPerEndpoint: 10,
		IdleTimeout:         300 * time.Second,
		HealthCheckInterval: 30 * time.Second,
		MaxPendingQueue:     1000,
		ConnectTimeout:      5 * time.Second,
		IdleEvictInterval:   30 * time.Second,
		WarmupCount:         2,
		Enabled:             true,
		HealthCheckEnabled:  true,
	}
}

// Dialer opens a new transport connection to addr.
type Dialer func(ctx context.Context, addr string) (net.Conn, error)

// Conn wraps a net.Conn with pool bookkeeping. Unique ID, creation time,
// last-used time, usage counter, and a CAS-guarded state, per the spec's
// pooled-connection data model.
type Conn struct {
	net.Conn
	ID        string
	CreatedAt time.Time

	lastUsedAt atomic.Int64 // unix nano
	useCount   atomic.Int64
	state      atomic.Int32
	broken     atomic.Bool // set by the owning multiplexer on I/O error
}

func newConn(nc net.Conn) *Conn {
	c := &Conn{Conn: nc, ID: uuid.New().String(), CreatedAt: time.Now()}
	c.lastUsedAt.Store(time.Now().UnixNano())
	c.state.Store(int32(Available))
	return c
}

// State reports the connection's current lifecycle stage.
func (c *Conn) State() State { return State(c.state.Load()) }

// MarkUnhealthy flags the connection as broken — called by the owning
// multiplexer when a read or write fails, since the pool itself never
// touches the wire and can't detect a dead socket on its own.
func (c *Conn) MarkUnhealthy() { c.broken.Store(true) }

func (c *Conn) idleFor() time.Duration {
	return time.Since(time.Unix(0, c.lastUsedAt.Load()))
}

func (c *Conn) tryAcquire() bool {
	return c.state.CompareAndSwap(int32(Available), int32(InUse))
}

func (c *Conn) markAvailable() {
	c.useCount.Add(1)
	c.lastUsedAt.Store(time.Now().UnixNano())
	c.state.Store(int32(Available))
}

func (c *Conn) markClosed() {
	c.state.Store(int32(Closed))
	c.Conn.Close()
}

type waiter struct {
	result chan acquireResult
}

type acquireResult struct {
	conn *Conn
	err  error
}

// Pool is a connection pool for a single remote endpoint.
type Pool struct {
	addr      string
	cfg       Config
	dial      Dialer
	onCreated func(*Conn)
	logger    *zap.Logger

	mu        sync.Mutex
	available []*Conn
	all       map[string]*Conn
	waiters   []*waiter
	closed    bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a pool for addr. Connections are not created until Acquire
// or Warmup is called. onCreated, if non-nil, is invoked exactly once per
// physical connection right after it is dialed — the client multiplexer
// uses this hook to attach its per-connection frame reader, since the pool
// itself is protocol-agnostic and never reads from the socket.
func New(addr string, cfg Config, dial Dialer, onCreated func(*Conn)) *Pool {
	if cfg.MaxConnsPerEndpoint <= 0 {
		cfg = DefaultConfig()
	}
	p := &Pool{
		addr:      addr,
		cfg:       cfg,
		dial:      dial,
		onCreated: onCreated,
		logger:    zap.L().With(zap.String("pool_addr", addr)),
		all:    map[string]*Conn{},
		stopCh: make(chan struct{}),
	}
	if cfg.Enabled {
		p.wg.Add(1)
		go p.idleEvictLoop()
		if cfg.HealthCheckEnabled {
			p.wg.Add(1)
			go p.healthCheckLoop()
		}
	}
	return p
}

// Warmup eagerly creates WarmupCount connections so the first real
// requests don't pay connect latency.
func (p *Pool) Warmup(ctx context.Context) error {
	n := min(p.cfg.WarmupCount, p.cfg.MaxConnsPerEndpoint)
	conns := make([]*Conn, 0, n)
	defer func() {
		for _, c := range conns {
			p.Release(c, true)
		}
	}()
	for i := 0; i < n; i++ {
		conn, err := p.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("pool: warmup connection %d: %w", i, err)
		}
		conns = append(conns, conn)
	}
	return nil
}

// Acquire implements the spec's acquire algorithm: pop a healthy Available
// connection if one exists; else create a new one if under the per-endpoint
// max; else enqueue as a pending waiter (bounded); else fail saturated.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	for len(p.available) > 0 {
		c := p.available[0]
		p.available = p.available[1:]
		if !c.tryAcquire() {
			continue // already claimed elsewhere — shouldn't happen, defensive
		}
		if c.broken.Load() {
			p.removeLocked(c)
			continue
		}
		p.mu.Unlock()
		return c, nil
	}

	if len(p.all) < p.cfg.MaxConnsPerEndpoint {
		p.mu.Unlock()
		conn, err := p.createConn(ctx)
		if err != nil {
			return nil, err
		}
		conn.state.Store(int32(InUse))
		p.mu.Lock()
		p.all[conn.ID] = conn
		p.mu.Unlock()
		return conn, nil
	}

	if len(p.waiters) >= p.cfg.MaxPendingQueue {
		p.mu.Unlock()
		return nil, ErrPoolSaturated
	}
	w := &waiter{result: make(chan acquireResult, 1)}
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()

	select {
	case res := <-w.result:
		return res.conn, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a connection to the pool. healthy=false (or a connection
// already flagged broken) closes it instead of recycling it. A waiting
// Acquire call, if any, is satisfied FIFO before the connection goes back
// to the Available set.
func (p *Pool) Release(c *Conn, healthy bool) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		c.markClosed()
		return
	}
	if !healthy || c.broken.Load() {
		p.removeLocked(c)
		p.mu.Unlock()
		return
	}
	if len(p.waiters) > 0 {
		w := p.waiters[0]
		p.waiters = p.waiters[1:]
		p.mu.Unlock()
		c.useCount.Add(1)
		c.lastUsedAt.Store(time.Now().UnixNano())
		w.result <- acquireResult{conn: c}
		return
	}
	c.markAvailable()
	p.available = append(p.available, c)
	p.mu.Unlock()
}

// Close is idempotent. It fails every pending waiter with ErrPoolClosed,
// closes every connection (Available or InUse), and stops background
// tasks.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	waiters := p.waiters
	p.waiters = nil
	all := p.all
	p.all = map[string]*Conn{}
	p.available = nil
	p.mu.Unlock()

	for _, w := range waiters {
		w.result <- acquireResult{err: ErrPoolClosed}
	}
	for _, c := range all {
		c.markClosed()
	}
	close(p.stopCh)
	p.wg.Wait()
	return nil
}

// Stats are point-in-time pool counts, useful for metrics reporting.
type Stats struct {
	Total     int
	Available int
	Pending   int
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Total: len(p.all), Available: len(p.available), Pending: len(p.waiters)}
}

func (p *Pool) createConn(ctx context.Context) (*Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()
	nc, err := p.dial(dialCtx, p.addr)
	if err != nil {
		return nil, fmt.Errorf("pool: dial %s: %w", p.addr, err)
	}
	conn := newConn(nc)
	if p.onCreated != nil {
		p.onCreated(conn)
	}
	return conn, nil
}

// removeLocked deletes c from bookkeeping and closes it. Caller holds mu.
func (p *Pool) removeLocked(c *Conn) {
	delete(p.all, c.ID)
	c.markClosed()
}

// healthCheckLoop scans Available connections, evicting unhealthy ones and
// opportunistically creating up to min(2, max) replacements to maintain a
// floor, without blocking any in-flight Acquire call.
func (p *Pool) healthCheckLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.runHealthCheck()
		}
	}
}

func (p *Pool) runHealthCheck() {
	p.mu.Lock()
	var unhealthy []*Conn
	kept := p.available[:0]
	for _, c := range p.available {
		if c.broken.Load() {
			unhealthy = append(unhealthy, c)
			continue
		}
		kept = append(kept, c)
	}
	p.available = kept
	for _, c := range unhealthy {
		delete(p.all, c.ID)
	}
	needed := min(2, p.cfg.MaxConnsPerEndpoint) - len(p.all)
	p.mu.Unlock()

	for _, c := range unhealthy {
		c.markClosed()
	}
	for i := 0; i < needed; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ConnectTimeout)
		conn, err := p.createConn(ctx)
		cancel()
		if err != nil {
			p.logger.Warn("health check replenish failed", zap.Error(err))
			return
		}
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			conn.markClosed()
			return
		}
		p.all[conn.ID] = conn
		p.available = append(p.available, conn)
		p.mu.Unlock()
	}
}

// idleEvictLoop removes Available connections idle longer than IdleTimeout.
func (p *Pool) idleEvictLoop() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.IdleEvictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.evictIdle()
		}
	}
}

func (p *Pool) evictIdle() {
	p.mu.Lock()
	kept := p.available[:0]
	var evicted []*Conn
	for _, c := range p.available {
		if c.idleFor() > p.cfg.IdleTimeout {
			evicted = append(evicted, c)
			delete(p.all, c.ID)
			continue
		}
		kept = append(kept, c)
	}
	p.available = kept
	p.mu.Unlock()

	for _, c := range evicted {
		c.markClosed()
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
