// Package shutdown coordinates graceful teardown across components via a
// priority-ordered hook registry. Grounded on
// original_source/rpc-common/.../shutdown/{ShutdownHook,
// GracefulShutdownManager}.java.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout is GracefulShutdownManager.java's 30-second default.
const DefaultTimeout = 30 * time.Second

// Hook is one component's cleanup step, mirroring ShutdownHook.java.
// Shutdown should be idempotent — Manager only calls it once per process,
// but a hook may be shared across managers in tests.
type Hook interface {
	Name() string
	// Priority orders execution; lower is started first. Manager.Shutdown
	// then runs the hooks concurrently; ForceShutdown runs them one by one.
	Priority() int
	Shutdown(ctx context.Context) error
}

// hookEntry lets plain functions satisfy Hook without a named type.
type hookEntry struct {
	name     string
	priority int
	fn       func(ctx context.Context) error
}

func (h hookEntry) Name() string     { return h.name }
func (h hookEntry) Priority() int    { return h.priority }
func (h hookEntry) Shutdown(ctx context.Context) error { return h.fn(ctx) }

// NewHook wraps fn as a Hook.
func NewHook(name string, priority int, fn func(ctx context.Context) error) Hook {
	return &hookEntry{name: name, priority: priority, fn: fn}
}

// Manager starts every registered hook's Shutdown in priority order and
// runs them concurrently, bounded by an overall timeout. Constructed explicitly
// (not a getInstance() singleton) — callers that want OS-signal-triggered
// shutdown call ListenForSignals themselves.
type Manager struct {
	logger  *zap.Logger
	timeout time.Duration

	mu    sync.Mutex
	hooks []Hook

	initiated bool
}

// NewManager returns a Manager with DefaultTimeout and no hooks.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{logger: logger, timeout: DefaultTimeout}
}

// SetTimeout overrides the default overall shutdown deadline.
func (m *Manager) SetTimeout(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
}

// Register adds hook, keeping m.hooks sorted by ascending priority.
func (m *Manager) Register(hook Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
	sort.Slice(m.hooks, func(i, j int) bool { return m.hooks[i].Priority() < m.hooks[j].Priority() })
}

// Remove drops a previously registered hook.
func (m *Manager) Remove(hook Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, h := range m.hooks {
		if h == hook {
			m.hooks = append(m.hooks[:i], m.hooks[i+1:]...)
			return
		}
	}
}

// IsShuttingDown reports whether Shutdown has already been invoked.
func (m *Manager) IsShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initiated
}

// HookNames returns the registered hooks' names in execution order.
func (m *Manager) HookNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.hooks))
	for i, h := range m.hooks {
		names[i] = h.Name()
	}
	return names
}

// Shutdown runs every hook concurrently and waits up to the configured
// timeout for them all to finish. A second call is a no-op, mirroring
// GracefulShutdownManager.shutdown()'s CAS guard. Each hook's own error is
// logged, never returned — one failing hook must not block the rest.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.initiated {
		m.mu.Unlock()
		m.logger.Warn("shutdown already in progress, ignoring duplicate call")
		return
	}
	m.initiated = true
	hooks := make([]Hook, len(m.hooks))
	copy(hooks, m.hooks)
	timeout := m.timeout
	m.mu.Unlock()

	m.logger.Info("starting graceful shutdown", zap.Int("hooks", len(hooks)))
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, h := range hooks {
		wg.Add(1)
		go func(h Hook) {
			defer wg.Done()
			hookStart := time.Now()
			if err := h.Shutdown(ctx); err != nil {
				m.logger.Error("shutdown hook failed", zap.String("hook", h.Name()), zap.Error(err))
				return
			}
			m.logger.Debug("shutdown hook completed",
				zap.String("hook", h.Name()), zap.Duration("duration", time.Since(hookStart)))
		}(h)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
		m.logger.Info("graceful shutdown complete", zap.Duration("duration", time.Since(start)))
	case <-ctx.Done():
		m.logger.Warn("graceful shutdown timed out, some hooks may be incomplete",
			zap.Duration("duration", time.Since(start)))
	}
}

// ForceShutdown runs every hook's Shutdown sequentially without waiting
// for completion signaling or honoring the configured timeout, mirroring
// GracefulShutdownManager.forceShutdown() — emergency-only.
func (m *Manager) ForceShutdown() {
	m.mu.Lock()
	m.initiated = true
	hooks := make([]Hook, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	m.logger.Warn("forcing shutdown")
	ctx := context.Background()
	for _, h := range hooks {
		if err := h.Shutdown(ctx); err != nil {
			m.logger.Error("force shutdown hook failed", zap.String("hook", h.Name()), zap.Error(err))
		}
	}
	m.logger.Warn("force shutdown complete")
}

// ListenForSignals runs Shutdown when SIGINT or SIGTERM arrives, the
// idiomatic Go replacement for Runtime.addShutdownHook — blocks until a
// signal is received or ctx is done.
func (m *Manager) ListenForSignals(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-sigCh:
		m.logger.Info("received shutdown signal")
		m.Shutdown()
	case <-ctx.Done():
	}
}
