// Package client implements the RPC client: a request multiplexer that lets
// many concurrent callers share one TCP connection, and a Client that wires
// registry discovery, pooling, retries, circuit breaking, tracing, and
// metrics around it.
//
// Grounded on the teacher's transport.ClientTransport (per-connection
// sending mutex, pending-response map populated before the write, a single
// dedicated reader goroutine routing frames back to waiting callers) but
// generalized: the pending map gains enqueue timestamps and a ticking
// sweeper evicts requests that never get a reply, closing a gap the
// teacher's version left open — a broken server could hang a caller
// forever.
package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mini-rpc/codec"
	"mini-rpc/compress"
	"mini-rpc/message"
	"mini-rpc/pool"
	"mini-rpc/protocol"
	"mini-rpc/retry"
)

// DefaultRequestTimeout is how long Send waits for a reply before failing
// with retry.ErrRequestTimeout.
const DefaultRequestTimeout = 10 * time.Second

// DefaultSweepInterval is how often the pending-request sweeper runs.
const DefaultSweepInterval = 5 * time.Second

type pendingEntry struct {
	ch       chan *message.Response
	enqueued time.Time
}

// connState is the multiplexing state attached to one physical connection.
// sending serializes frame writes (one Encode at a time per connection;
// request IDs come from the Multiplexer's atomic counter, outside the
// lock); pending maps an in-flight request ID to the channel its caller is
// blocked on.
type connState struct {
	conn    *pool.Conn
	sending sync.Mutex
	pending sync.Map // uint64 -> *pendingEntry
}

// Multiplexer lets many goroutines share one or more TCP connections,
// matching replies to callers by request ID instead of one request per
// connection. Attach it to a pool.Pool via its OnConnCreated hook.
type Multiplexer struct {
	logger         *zap.Logger
	requestTimeout time.Duration

	reqID atomic.Uint64

	mu    sync.Mutex
	conns map[string]*connState // pool.Conn.ID -> state

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewMultiplexer builds a Multiplexer and starts its pending-request
// sweeper. requestTimeout <= 0 uses DefaultRequestTimeout.
func NewMultiplexer(logger *zap.Logger, requestTimeout time.Duration) *Multiplexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	m := &Multiplexer{
		logger:         logger,
		requestTimeout: requestTimeout,
		conns:          map[string]*connState{},
		stopCh:         make(chan struct{}),
	}
	m.wg.Add(1)
	go m.sweepLoop()
	return m
}

// OnConnCreated is the pool.Pool onCreated hook: it registers c for
// multiplexing and starts its dedicated reader goroutine. The pool itself
// never reads from the socket, so without this hook replies would never be
// routed back to callers.
func (m *Multiplexer) OnConnCreated(c *pool.Conn) {
	state := &connState{conn: c}
	m.mu.Lock()
	m.conns[c.ID] = state
	m.mu.Unlock()

	m.wg.Add(1)
	go m.recvLoop(state)
}

// Send encodes req, writes it as one frame on c, and blocks until the
// matching response frame arrives, ctx is done, or the request times out.
func (m *Multiplexer) Send(ctx context.Context, c *pool.Conn, codecTag codec.Tag, compressTag compress.Tag, req *message.Request) (*message.Response, error) {
	m.mu.Lock()
	state, ok := m.conns[c.ID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("client: connection %s not registered with multiplexer", c.ID)
	}

	cdc, err := codec.Get(codecTag)
	if err != nil {
		return nil, err
	}
	raw, err := cdc.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("client: encode request: %w", err)
	}

	resolvedCompress, err := compress.SelectTag(compressTag, len(raw))
	if err != nil {
		return nil, err
	}
	if resolvedCompress != compress.TagNone {
		cmp, err := compress.Get(resolvedCompress)
		if err != nil {
			return nil, err
		}
		if raw, err = cmp.Compress(raw); err != nil {
			return nil, fmt.Errorf("client: compress request: %w", err)
		}
	}

	id := m.reqID.Add(1)
	entry := &pendingEntry{ch: make(chan *message.Response, 1), enqueued: time.Now()}

	// Register before writing — recvLoop may otherwise see the reply before
	// the sender has stored the channel it needs to deliver to.
	state.pending.Store(id, entry)

	header := &protocol.Header{
		MsgType:     protocol.MsgTypeRequest,
		CodecTag:    byte(codecTag),
		CompressTag: byte(resolvedCompress),
		RequestID:   id,
	}

	state.sending.Lock()
	err = protocol.Encode(c.Conn, header, raw)
	state.sending.Unlock()
	if err != nil {
		state.pending.Delete(id)
		c.MarkUnhealthy()
		return nil, fmt.Errorf("%w: %v", retry.ErrTransport, err)
	}

	select {
	case resp := <-entry.ch:
		return resp, nil
	case <-ctx.Done():
		state.pending.Delete(id)
		return nil, ctx.Err()
	case <-time.After(m.requestTimeout):
		state.pending.Delete(id)
		return nil, retry.ErrRequestTimeout
	}
}

// recvLoop is the connection's single reader: it decodes frames, routes
// each to its waiting caller by request ID, and tears down every still-
// pending caller once the connection breaks.
func (m *Multiplexer) recvLoop(state *connState) {
	defer m.wg.Done()
	for {
		header, body, err := protocol.Decode(state.conn.Conn)
		if err != nil {
			state.conn.MarkUnhealthy()
			m.closeAllPending(state, fmt.Errorf("%w: %v", retry.ErrTransport, err))
			m.mu.Lock()
			delete(m.conns, state.conn.ID)
			m.mu.Unlock()
			return
		}

		if resolvedCompress := compress.Tag(header.CompressTag); resolvedCompress != compress.TagNone {
			cmp, err := compress.Get(resolvedCompress)
			if err != nil {
				continue
			}
			if body, err = cmp.Decompress(body); err != nil {
				m.logger.Warn("client: failed to decompress response", zap.Error(err))
				continue
			}
		}

		cdc, err := codec.Get(codec.Tag(header.CodecTag))
		if err != nil {
			m.logger.Warn("client: unknown response codec", zap.Uint8("tag", header.CodecTag))
			continue
		}
		var resp message.Response
		if err := cdc.Decode(body, &resp); err != nil {
			m.logger.Warn("client: failed to decode response", zap.Error(err))
			continue
		}

		if v, ok := state.pending.LoadAndDelete(header.RequestID); ok {
			v.(*pendingEntry).ch <- &resp
		}
	}
}

// closeAllPending fails every caller still waiting on state with err, so a
// broken connection never leaves a goroutine blocked forever.
func (m *Multiplexer) closeAllPending(state *connState, err error) {
	failure := message.Failure(err.Error())
	state.pending.Range(func(key, value any) bool {
		state.pending.Delete(key)
		value.(*pendingEntry).ch <- failure
		return true
	})
}

// sweepLoop periodically evicts pending requests that have outlived
// requestTimeout without their own timer firing — a defensive backstop,
// since Send's own select should normally catch this first.
func (m *Multiplexer) sweepLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(DefaultSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweepOnce()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Multiplexer) sweepOnce() {
	now := time.Now()
	m.mu.Lock()
	states := make([]*connState, 0, len(m.conns))
	for _, s := range m.conns {
		states = append(states, s)
	}
	m.mu.Unlock()

	for _, state := range states {
		state.pending.Range(func(key, value any) bool {
			entry := value.(*pendingEntry)
			if now.Sub(entry.enqueued) > m.requestTimeout {
				if state.pending.CompareAndDelete(key, value) {
					entry.ch <- message.Failure(retry.ErrRequestTimeout.Error())
				}
			}
			return true
		})
	}
}

// Close stops the sweeper. It does not close any connections — the pool
// owns their lifecycle.
func (m *Multiplexer) Close() {
	close(m.stopCh)
	m.wg.Wait()
}
