package interceptor

import (
	"context"
	"testing"
	"time"

	"mini-rpc/auth"
	"mini-rpc/message"
	"mini-rpc/ratelimit"
)

func echoHandler(ctx context.Context, req *message.Request) *message.Response {
	return message.Success("ok")
}

func TestChainRunsInPriorityOrderAndDispatches(t *testing.T) {
	var order []string
	a := &recordingInterceptor{name: "a", priority: 20, order: &order}
	b := &recordingInterceptor{name: "b", priority: 10, order: &order}
	chain := NewChain(a, b)

	resp := chain.Handle(context.Background(), &message.Request{}, echoHandler)
	if !resp.IsSuccess() {
		t.Fatalf("expected success, got %+v", resp)
	}
	if len(order) != 4 || order[0] != "b.pre" || order[1] != "a.pre" || order[2] != "a.post" || order[3] != "b.post" {
		t.Fatalf("unexpected interceptor order: %v", order)
	}
}

func TestChainShortCircuitsOnPreProcessResponse(t *testing.T) {
	called := false
	handler := func(ctx context.Context, req *message.Request) *message.Response {
		called = true
		return message.Success("ok")
	}
	chain := NewChain(&rejectingInterceptor{})
	resp := chain.Handle(context.Background(), &message.Request{}, handler)
	if called {
		t.Fatal("expected handler not to run after short-circuit")
	}
	if resp.IsSuccess() {
		t.Fatal("expected the rejecting interceptor's response")
	}
}

func TestSecurityInterceptorRejectsMissingTokenWhenRequired(t *testing.T) {
	mgr := auth.NewManager(auth.NewTokenProvider([]byte("s")), auth.NewAPIKeyValidator(), nil)
	defer mgr.Close()
	sec := &SecurityInterceptor{Manager: mgr, Required: true}
	resp, err := sec.PreProcess(context.Background(), &message.Request{})
	if err != nil || resp == nil || resp.Status != message.StatusUnauthenticated {
		t.Fatalf("expected unauthenticated response, got resp=%+v err=%v", resp, err)
	}
}

func TestSecurityInterceptorAdmitsValidToken(t *testing.T) {
	tokens := auth.NewTokenProvider([]byte("s"))
	mgr := auth.NewManager(tokens, auth.NewAPIKeyValidator(), nil)
	defer mgr.Close()
	token, _ := tokens.Generate("user-1", []string{"admin"}, time.Hour)

	sec := &SecurityInterceptor{Manager: mgr}
	req := &message.Request{Token: token, Method: "DeleteOrder"}
	resp, err := sec.PreProcess(context.Background(), req)
	if err != nil || resp != nil {
		t.Fatalf("expected admission, got resp=%+v err=%v", resp, err)
	}
	p, ok := Principal(req)
	if !ok || p.Principal != "user-1" {
		t.Fatalf("expected principal attached, got %+v", p)
	}
}

func TestRateLimitInterceptorRejectsOverLimit(t *testing.T) {
	mgr := ratelimit.NewManager(ratelimit.Config{Type: ratelimit.TokenBucket, Rate: 1, Capacity: 1, Enabled: true}, nil)
	ri := &RateLimitInterceptor{Manager: mgr}
	req := &message.Request{ClientAddr: "10.0.0.1", Interface: "Arith", Method: "Add"}

	resp, err := ri.PreProcess(context.Background(), req)
	if err != nil || resp != nil {
		t.Fatalf("expected first call admitted, got resp=%+v err=%v", resp, err)
	}
	resp, err = ri.PreProcess(context.Background(), req)
	if err != nil || resp == nil || resp.Status != message.StatusRateLimited {
		t.Fatalf("expected rate limited response, got resp=%+v err=%v", resp, err)
	}
}

type recordingInterceptor struct {
	Base
	name     string
	priority int
	order    *[]string
}

func (r *recordingInterceptor) Name() string  { return r.name }
func (r *recordingInterceptor) Priority() int { return r.priority }
func (r *recordingInterceptor) PreProcess(ctx context.Context, req *message.Request) (*message.Response, error) {
	*r.order = append(*r.order, r.name+".pre")
	return nil, nil
}
func (r *recordingInterceptor) PostProcess(ctx context.Context, req *message.Request, resp *message.Response) {
	*r.order = append(*r.order, r.name+".post")
}

type rejectingInterceptor struct{ Base }

func (rejectingInterceptor) Name() string  { return "reject" }
func (rejectingInterceptor) Priority() int { return 5 }
func (rejectingInterceptor) PreProcess(ctx context.Context, req *message.Request) (*message.Response, error) {
	return message.Failure("rejected"), nil
}
