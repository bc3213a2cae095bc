package circuitbreaker

import "sync"

// Manager holds one breaker per service name, created lazily on first use.
// Grounded on CircuitBreakerManager.java's ConcurrentHashMap-backed
// per-service registry — constructed explicitly here (callers own an
// instance) rather than exposed as a hidden package-level singleton, so
// tests and multiple client instances don't share breaker state
// unintentionally.
type Manager struct {
	cfg  Config
	mu   sync.Mutex
	bys  map[string]*Breaker
}

// NewManager creates a manager whose breakers all use cfg.
func NewManager(cfg Config) *Manager {
	if cfg.FailureThreshold <= 0 {
		cfg = DefaultConfig()
	}
	return &Manager{cfg: cfg, bys: map[string]*Breaker{}}
}

// Get returns the breaker for serviceName, creating it on first use.
func (m *Manager) Get(serviceName string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bys[serviceName]
	if !ok {
		b = New(m.cfg)
		m.bys[serviceName] = b
	}
	return b
}

// Snapshot returns the current state of every known breaker, for metrics
// reporting.
func (m *Manager) Snapshot() map[string]State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]State, len(m.bys))
	for name, b := range m.bys {
		out[name] = b.State()
	}
	return out
}
