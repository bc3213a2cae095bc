package auth

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultCacheTTL is AuthenticationManager.java's cacheExpirationMinutes.
const DefaultCacheTTL = 30 * time.Minute

// DefaultCleanupInterval is the period the Java source's
// ScheduledExecutorService sweeps expired cache entries at.
const DefaultCleanupInterval = 5 * time.Minute

type cacheEntry struct {
	ctx *Context
}

// Manager wires a TokenProvider and an APIKeyValidator behind a result
// cache and a background sweep, grounded on AuthenticationManager.java.
// Constructed explicitly rather than exposed as a getInstance() singleton,
// matching circuitbreaker.Manager and loadbalance/registry's style.
type Manager struct {
	tokens  *TokenProvider
	apiKeys *APIKeyValidator
	logger  *zap.Logger

	cache sync.Map // string -> *cacheEntry

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewManager builds a Manager and starts its cache-sweep goroutine.
func NewManager(tokens *TokenProvider, apiKeys *APIKeyValidator, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		tokens:  tokens,
		apiKeys: apiKeys,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
	m.wg.Add(1)
	go m.cleanupLoop()
	return m
}

// AuthenticateToken validates a signed token, consulting and then
// populating the result cache.
func (m *Manager) AuthenticateToken(token string) Result {
	if token == "" {
		return failure("token must not be empty")
	}
	if v, ok := m.cache.Load(token); ok {
		entry := v.(*cacheEntry)
		if !entry.ctx.Expired() {
			return success(entry.ctx)
		}
		m.cache.Delete(token)
	}
	ctx, err := m.tokens.Validate(token)
	if err != nil {
		m.logger.Warn("token validation failed")
		return failure("invalid token")
	}
	m.cache.Store(token, &cacheEntry{ctx: ctx})
	return success(ctx)
}

// AuthenticateAPIKey validates an opaque key, consulting and then
// populating the result cache under a "key:serviceID" composite.
func (m *Manager) AuthenticateAPIKey(apiKey, serviceID string) Result {
	if apiKey == "" {
		return failure("api key must not be empty")
	}
	cacheKey := apiKey + ":" + serviceID
	if v, ok := m.cache.Load(cacheKey); ok {
		entry := v.(*cacheEntry)
		if !entry.ctx.Expired() {
			return success(entry.ctx)
		}
		m.cache.Delete(cacheKey)
	}
	ctx := m.apiKeys.Validate(apiKey, serviceID)
	if ctx == nil {
		m.logger.Warn("api key validation failed", zap.String("service_id", serviceID))
		return failure("invalid api key")
	}
	m.cache.Store(cacheKey, &cacheEntry{ctx: ctx})
	return success(ctx)
}

// GenerateToken delegates to the configured TokenProvider.
func (m *Manager) GenerateToken(userID string, roles []string) (string, error) {
	return m.tokens.Generate(userID, roles, DefaultTokenTTL)
}

// GenerateAPIKey delegates to the configured APIKeyValidator.
func (m *Manager) GenerateAPIKey(serviceID string) (string, error) {
	return m.apiKeys.Generate(serviceID, []string{"service"}, DefaultAPIKeyTTL)
}

// ClearCache evicts a single cached entry, mirroring clearAuthCache.
func (m *Manager) ClearCache(key string) {
	m.cache.Delete(key)
}

// CacheStats mirrors getCacheStats(): total vs. already-expired entries
// still resident in the cache.
type CacheStats struct {
	Total   int
	Expired int
}

func (m *Manager) CacheStats() CacheStats {
	var stats CacheStats
	m.cache.Range(func(_, v any) bool {
		stats.Total++
		if v.(*cacheEntry).ctx.Expired() {
			stats.Expired++
		}
		return true
	})
	return stats
}

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(DefaultCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) sweep() {
	removed := 0
	m.cache.Range(func(k, v any) bool {
		if v.(*cacheEntry).ctx.Expired() {
			m.cache.Delete(k)
			removed++
		}
		return true
	})
	if removed > 0 {
		m.logger.Debug("auth cache cleanup", zap.Int("removed", removed))
	}
}

// Close stops the background sweep goroutine.
func (m *Manager) Close() error {
	close(m.stopCh)
	m.wg.Wait()
	return nil
}
