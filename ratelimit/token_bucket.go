package ratelimit

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// tokenBucket wraps golang.org/x/time/rate.Limiter, the ecosystem's
// token-bucket implementation, layering the request/limited counters
// TokenBucketRateLimiter.java tracks on top of it. This trades that class's
// lock-free CAS-retry loop over a single bucket-state struct for the
// library's mutex-guarded one; the interface (tryAcquire/getStatus/reset)
// stays the same.
type tokenBucket struct {
	cfg     Config
	limiter *rate.Limiter
	total   atomic.Int64
	limited atomic.Int64
	started time.Time
}

func newTokenBucket(cfg Config) *tokenBucket {
	return &tokenBucket{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Capacity),
		started: time.Now(),
	}
}

func (b *tokenBucket) TryAcquire(permits int) bool {
	b.total.Add(1)
	if !b.cfg.Enabled {
		return true
	}
	ok := b.limiter.AllowN(time.Now(), permits)
	if !ok {
		b.limited.Add(1)
	}
	return ok
}

func (b *tokenBucket) Status() Result {
	total := b.total.Load()
	limited := b.limited.Load()
	var rate float64
	if total > 0 {
		rate = float64(limited) / float64(total)
	}
	tokens := b.limiter.TokensAt(time.Now())
	return Result{
		AvailableTokens: int(tokens),
		TotalRequests:   total,
		LimitedRequests: limited,
		LimitRate:       rate,
	}
}

func (b *tokenBucket) Reset() {
	b.total.Store(0)
	b.limited.Store(0)
	b.limiter.SetBurstAt(time.Now(), b.cfg.Capacity)
}

func (b *tokenBucket) Config() Config { return b.cfg }
