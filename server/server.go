// Package server implements the RPC server: connection accept loop, frame
// decode/decompress, the interceptor chain, and explicit name→handler
// method dispatch.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (single reader goroutine per connection)
//	  → for each frame: go handleRequest (parallel processing)
//	    → decompress → codec decode → interceptor chain → dispatch
//	    → codec encode → compress → write response
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mini-rpc/codec"
	"mini-rpc/compress"
	"mini-rpc/interceptor"
	"mini-rpc/message"
	"mini-rpc/metrics"
	"mini-rpc/protocol"
	"mini-rpc/registry"
	"mini-rpc/tracing"
)

// ErrServiceNotFound is returned (as a business failure, not a panic) when
// a frame names an interface#group#version or method with no registered
// handler.
var ErrServiceNotFound = errors.New("server: service not found")

// Server is the RPC server: it registers services, accepts connections,
// and dispatches frames through the interceptor chain to the matching
// handler.
type Server struct {
	chain   *interceptor.Chain
	logger  *zap.Logger
	metrics *metrics.Manager
	tracer  *tracing.Tracer

	serviceMu sync.RWMutex
	services  map[string]*service // "interface#group#version" -> service

	listener      net.Listener
	wg            sync.WaitGroup
	shuttingDown  atomic.Bool
	registry      registry.Registry
	advertiseAddr string
}

// New creates a Server. chain may be nil to dispatch with no interceptors
// (tests only — production servers should pass interceptor.DefaultChain).
func New(chain *interceptor.Chain, logger *zap.Logger, metricsManager *metrics.Manager, tracer *tracing.Tracer) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if chain == nil {
		chain = interceptor.NewChain()
	}
	return &Server{
		chain:    chain,
		logger:   logger,
		metrics:  metricsManager,
		tracer:   tracer,
		services: map[string]*service{},
	}
}

// Register adds one method's handler under the interface#group#version
// service identity, creating the service entry on first use.
func (svr *Server) Register(iface, group, version, method string, h Handler) {
	key := serviceKey(iface, group, version)
	svr.serviceMu.Lock()
	defer svr.serviceMu.Unlock()
	svc, ok := svr.services[key]
	if !ok {
		svc = newService(iface, group, version)
		svr.services[key] = svc
	}
	svc.register(method, h)
}

func serviceKey(iface, group, version string) string {
	return iface + "#" + group + "#" + version
}

// Serve listens on address, optionally registers every service with reg
// under advertiseAddr, and accepts connections until Shutdown is called.
func (svr *Server) Serve(network, address, advertiseAddr string, reg registry.Registry) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	svr.listener = listener
	svr.advertiseAddr = advertiseAddr
	svr.registry = reg

	if reg != nil {
		endpoint, err := parseAdvertiseAddr(advertiseAddr)
		if err != nil {
			return err
		}
		svr.serviceMu.RLock()
		names := make(map[string]bool, len(svr.services))
		for _, svc := range svr.services {
			names[svc.name] = true
		}
		svr.serviceMu.RUnlock()
		for name := range names {
			if err := reg.Register(context.Background(), name, endpoint); err != nil {
				return fmt.Errorf("server: register %s: %w", name, err)
			}
		}
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if svr.shuttingDown.Load() {
				return nil
			}
			return err
		}
		go svr.handleConn(conn)
	}
}

func parseAdvertiseAddr(addr string) (message.ServiceEndpoint, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return message.ServiceEndpoint{}, fmt.Errorf("server: invalid advertise address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return message.ServiceEndpoint{}, fmt.Errorf("server: invalid advertise port %q: %w", portStr, err)
	}
	return message.ServiceEndpoint{Host: host, Port: port}, nil
}

// handleConn reads frames sequentially off conn (reads must be ordered to
// track frame boundaries) and dispatches each to its own goroutine so a
// slow handler never blocks the rest of the connection's traffic. A
// per-connection write mutex serializes response frames from those
// goroutines.
func (svr *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	writeMu := &sync.Mutex{}
	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			return
		}
		go svr.handleRequest(header, body, conn, writeMu)
	}
}

func (svr *Server) handleRequest(header *protocol.Header, body []byte, conn net.Conn, writeMu *sync.Mutex) {
	svr.wg.Add(1)
	defer svr.wg.Done()

	resp := svr.decodeAndDispatch(header, body, conn)

	raw, encodeErr := svr.encodeResponse(header, resp)
	if encodeErr != nil {
		svr.logger.Error("server: failed to encode response", zap.Error(encodeErr))
		return
	}

	replyHeader := &protocol.Header{
		MsgType:     protocol.MsgTypeResponse,
		CodecTag:    header.CodecTag,
		CompressTag: header.CompressTag,
		RequestID:   header.RequestID,
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if err := protocol.Encode(conn, replyHeader, raw); err != nil {
		svr.logger.Error("server: failed to write response frame", zap.Error(err))
	}
}

func (svr *Server) decodeAndDispatch(header *protocol.Header, body []byte, conn net.Conn) *message.Response {
	if compress.Tag(header.CompressTag) != compress.TagNone {
		cmp, err := compress.Get(compress.Tag(header.CompressTag))
		if err != nil {
			return message.Failure(err.Error())
		}
		decompressed, err := cmp.Decompress(body)
		if err != nil {
			return message.Failure(fmt.Sprintf("server: decompress request: %v", err))
		}
		body = decompressed
	}

	cdc, err := codec.Get(codec.Tag(header.CodecTag))
	if err != nil {
		return message.Failure(err.Error())
	}
	var req message.Request
	if err := cdc.Decode(body, &req); err != nil {
		return message.Failure(fmt.Sprintf("server: decode request: %v", err))
	}
	req.ClientAddr = conn.RemoteAddr().String()
	req.Timestamp = time.Now()

	ctx := context.Background()
	if svr.tracer != nil {
		ctx, _ = svr.tracer.StartTrace(ctx, req.Interface, req.Method)
		defer svr.tracer.FinishTrace(ctx)
	}

	start := time.Now()
	resp := svr.chain.Handle(ctx, &req, svr.dispatch)
	if svr.metrics != nil {
		svr.metrics.RecordRequestTime(req.Interface, req.Method, time.Since(start))
		if resp.IsSuccess() {
			svr.metrics.RecordSuccess(req.Interface, req.Method)
		} else {
			svr.metrics.RecordError(req.Interface, req.Method, errors.New(resp.Message))
		}
	}
	return resp
}

// dispatch is the chain's terminal handler: service lookup plus the
// registered method's handler invocation.
func (svr *Server) dispatch(ctx context.Context, req *message.Request) *message.Response {
	svr.serviceMu.RLock()
	svc, ok := svr.services[req.ServiceKey()]
	svr.serviceMu.RUnlock()
	if !ok {
		return message.Failure(fmt.Sprintf("%v: %s", ErrServiceNotFound, req.ServiceKey()))
	}
	h, ok := svc.lookup(req.Method)
	if !ok {
		return message.Failure(fmt.Sprintf("%v: %s.%s", ErrServiceNotFound, req.Interface, req.Method))
	}
	result, err := h(ctx, req.Params)
	if err != nil {
		return message.Failure(err.Error())
	}
	return message.Success(result)
}

func (svr *Server) encodeResponse(header *protocol.Header, resp *message.Response) ([]byte, error) {
	cdc, err := codec.Get(codec.Tag(header.CodecTag))
	if err != nil {
		return nil, err
	}
	raw, err := cdc.Encode(resp)
	if err != nil {
		return nil, err
	}
	if compress.Tag(header.CompressTag) != compress.TagNone {
		cmp, err := compress.Get(compress.Tag(header.CompressTag))
		if err != nil {
			return nil, err
		}
		return cmp.Compress(raw)
	}
	return raw, nil
}

// Shutdown stops accepting new connections, deregisters from the
// registry, and waits for in-flight requests to finish or ctx to expire.
func (svr *Server) Shutdown(ctx context.Context) error {
	svr.shuttingDown.Store(true)
	if svr.registry != nil {
		if endpoint, err := parseAdvertiseAddr(svr.advertiseAddr); err == nil {
			svr.serviceMu.RLock()
			for _, svc := range svr.services {
				svr.registry.Unregister(ctx, svc.name, endpoint)
			}
			svr.serviceMu.RUnlock()
		}
	}
	if svr.listener != nil {
		svr.listener.Close()
	}

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("server: shutdown: %w", ctx.Err())
	}
}
