package interceptor

import (
	"context"

	"mini-rpc/message"
	"mini-rpc/ratelimit"
)

// RateLimitPriority runs right after security so limits are charged
// against an already-resolved principal, not an anonymous caller.
const RateLimitPriority = 20

// RateLimitInterceptor enforces the layered ip/user/service/method policy
// via ratelimit.Manager, grounded on RateLimitManager.java's admission
// order and middleware/rate_limit_middleware.go's placement in the chain.
type RateLimitInterceptor struct {
	Base
	Manager *ratelimit.Manager
}

func (r *RateLimitInterceptor) Name() string  { return "rate-limit" }
func (r *RateLimitInterceptor) Priority() int { return RateLimitPriority }

func (r *RateLimitInterceptor) PreProcess(ctx context.Context, req *message.Request) (*message.Response, error) {
	userID := ""
	if p, ok := Principal(req); ok {
		userID = p.Principal
	}
	result, reason := r.Manager.Admit(req.ClientAddr, userID, req.Interface, req.Method)
	if result.Limited {
		resp := &message.Response{Status: message.StatusRateLimited, Message: "rate limit exceeded: " + reason}
		resp.SetExt("limited_by", reason)
		return resp, nil
	}
	return nil, nil
}
