// Package interceptor generalizes the teacher's onion-style middleware
// chain (middleware.Chain/Middleware) into a priority-ordered
// preProcess/postProcess/onException pipeline: each interceptor can
// short-circuit dispatch before the handler runs, observe the response
// after it runs, or translate its own PreProcess error into a response via
// OnException. The handler's result, failure responses included, goes to
// PostProcess only; OnException never sees it, and a handler panic is not
// recovered here.
// Grounded on middleware/middleware.go's composition style, generalized
// the way the teacher's chain composes middleware.Chain(...) calls.
package interceptor

import (
	"context"

	"mini-rpc/message"
)

// HandlerFunc dispatches a request to the target service method.
type HandlerFunc func(ctx context.Context, req *message.Request) *message.Response

// Interceptor observes or short-circuits one stage of the chain.
type Interceptor interface {
	Name() string
	// Priority orders the chain; lower values run earlier on PreProcess
	// and later (in reverse) on PostProcess, so a priority-10 interceptor
	// wraps a priority-20 one.
	Priority() int
	// PreProcess may return a non-nil response to short-circuit the chain
	// (e.g. a rejected request never reaches the handler), or a non-nil
	// error to invoke OnException instead.
	PreProcess(ctx context.Context, req *message.Request) (*message.Response, error)
	PostProcess(ctx context.Context, req *message.Request, resp *message.Response)
	OnException(ctx context.Context, req *message.Request, err error) *message.Response
}

// Chain runs interceptors in priority order around a HandlerFunc.
type Chain struct {
	interceptors []Interceptor
}

// NewChain sorts interceptors by ascending priority and returns a Chain.
func NewChain(interceptors ...Interceptor) *Chain {
	sorted := make([]Interceptor, len(interceptors))
	copy(sorted, interceptors)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Priority() < sorted[j-1].Priority(); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return &Chain{interceptors: sorted}
}

// Handle runs PreProcess over every interceptor (in priority order),
// dispatches to handler if none short-circuited, then runs PostProcess in
// reverse order.
func (c *Chain) Handle(ctx context.Context, req *message.Request, handler HandlerFunc) *message.Response {
	ran := make([]Interceptor, 0, len(c.interceptors))
	for _, ic := range c.interceptors {
		resp, err := ic.PreProcess(ctx, req)
		if err != nil {
			return ic.OnException(ctx, req, err)
		}
		ran = append(ran, ic)
		if resp != nil {
			c.runPostProcess(ctx, req, resp, ran)
			return resp
		}
	}
	resp := handler(ctx, req)
	c.runPostProcess(ctx, req, resp, ran)
	return resp
}

func (c *Chain) runPostProcess(ctx context.Context, req *message.Request, resp *message.Response, ran []Interceptor) {
	for i := len(ran) - 1; i >= 0; i-- {
		ran[i].PostProcess(ctx, req, resp)
	}
}
