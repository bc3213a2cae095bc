package interceptor

import (
	"go.uber.org/zap"

	"mini-rpc/auth"
	"mini-rpc/ratelimit"
)

// DefaultChain wires logging, security, then rate-limiting, in that
// priority order, matching the spec's "security first, then rate-limit"
// default ordering.
func DefaultChain(authMgr *auth.Manager, rateMgr *ratelimit.Manager, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return NewChain(
		&LoggingInterceptor{Logger: logger},
		&SecurityInterceptor{Manager: authMgr},
		&RateLimitInterceptor{Manager: rateMgr},
	)
}
