package ratelimit

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Manager holds named limiters keyed by prefix ("ip:", "user:", "service:",
// "method:") and runs the layered admission policy the interceptor chain
// calls into, grounded on RateLimitManager.java.
type Manager struct {
	defaultCfg Config
	logger     *zap.Logger

	mu       sync.Mutex
	limiters map[string]Limiter
}

// NewManager builds a Manager whose auto-created limiters use defaultCfg.
func NewManager(defaultCfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		defaultCfg: defaultCfg,
		logger:     logger,
		limiters:   make(map[string]Limiter),
	}
}

func (m *Manager) limiterFor(key string) Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[key]
	if !ok {
		l = New(m.defaultCfg)
		m.limiters[key] = l
	}
	return l
}

// CheckIP enforces the "ip:" prefixed limiter for the caller's address.
func (m *Manager) CheckIP(ip string) Result {
	return m.check("ip:" + ip)
}

// CheckUser enforces the "user:" prefixed limiter for an authenticated
// principal. Callers skip this when the request is unauthenticated.
func (m *Manager) CheckUser(userID string) Result {
	return m.check("user:" + userID)
}

// CheckService enforces the "service:" prefixed limiter.
func (m *Manager) CheckService(serviceName string) Result {
	return m.check("service:" + serviceName)
}

// CheckMethod enforces the "method:" prefixed limiter, keyed on
// "service#method" the same way RateLimitManager.checkMethodRateLimit does.
func (m *Manager) CheckMethod(serviceName, method string) Result {
	return m.check(fmt.Sprintf("method:%s#%s", serviceName, method))
}

func (m *Manager) check(key string) Result {
	l := m.limiterFor(key)
	allowed := l.TryAcquire(1)
	res := l.Status()
	res.Limited = !allowed
	return res
}

// Admit runs the layered policy: IP, then user (if authenticated), then
// service, then method, short-circuiting on the first denial — the order
// RateLimitManager.java's callers apply its four check methods in.
func (m *Manager) Admit(ip, userID, serviceName, method string) (Result, string) {
	if r := m.CheckIP(ip); r.Limited {
		return r, "ip"
	}
	if userID != "" {
		if r := m.CheckUser(userID); r.Limited {
			return r, "user"
		}
	}
	if r := m.CheckService(serviceName); r.Limited {
		return r, "service"
	}
	if r := m.CheckMethod(serviceName, method); r.Limited {
		return r, "method"
	}
	return Result{}, ""
}

// Reset clears the named limiter's counters, or all limiters if key is "".
func (m *Manager) Reset(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == "" {
		for _, l := range m.limiters {
			l.Reset()
		}
		return
	}
	if l, ok := m.limiters[key]; ok {
		l.Reset()
	}
}

// Remove drops a limiter entirely, mirroring removeRateLimiter.
func (m *Manager) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.limiters, key)
}

// Stats is one row of GenerateReport's output.
type Stats struct {
	Key             string
	TotalRequests   int64
	LimitedRequests int64
	LimitRate       float64
	NeedsAlert      bool
}

// AllStats mirrors getAllRateLimitStats(): a snapshot of every known
// limiter's counters.
func (m *Manager) AllStats() []Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Stats, 0, len(m.limiters))
	for key, l := range m.limiters {
		res := l.Status()
		out = append(out, Stats{
			Key:             key,
			TotalRequests:   res.TotalRequests,
			LimitedRequests: res.LimitedRequests,
			LimitRate:       res.LimitRate,
			NeedsAlert:      res.NeedsAlert(),
		})
	}
	return out
}

// GenerateReport logs a summary line plus one line per limiter whose limit
// rate warrants attention, mirroring generateRateLimitReport().
func (m *Manager) GenerateReport() {
	stats := m.AllStats()
	var total, limited int64
	for _, s := range stats {
		total += s.TotalRequests
		limited += s.LimitedRequests
	}
	m.logger.Info("rate limit report",
		zap.Int("limiters", len(stats)),
		zap.Int64("total_requests", total),
		zap.Int64("limited_requests", limited),
	)
	for _, s := range stats {
		if s.NeedsAlert {
			m.logger.Warn("rate limiter exceeding alert threshold",
				zap.String("key", s.Key),
				zap.Float64("limit_rate", s.LimitRate),
				zap.Int64("limited_requests", s.LimitedRequests),
			)
		}
	}
}
