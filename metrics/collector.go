package metrics

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCollector is the in-memory Collector implementation, grounded on
// DefaultMetricsCollector.java: per-service and per-method atomic
// counters, plus a bounded response-time sample slice for percentiles.
type DefaultCollector struct {
	name string

	mu       sync.Mutex
	services map[string]*serviceMetrics
	pools    map[string]*poolMetrics
}

// NewDefaultCollector returns a named collector with no recorded metrics.
func NewDefaultCollector(name string) *DefaultCollector {
	if name == "" {
		name = "default"
	}
	return &DefaultCollector{
		name:     name,
		services: make(map[string]*serviceMetrics),
		pools:    make(map[string]*poolMetrics),
	}
}

func (c *DefaultCollector) Name() string { return c.name }

func (c *DefaultCollector) serviceFor(name string) *serviceMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	sm, ok := c.services[name]
	if !ok {
		sm = newServiceMetrics(name)
		c.services[name] = sm
	}
	return sm
}

func (c *DefaultCollector) RecordRequestTime(serviceName, methodName string, d time.Duration) {
	sm := c.serviceFor(serviceName)
	sm.recordResponseTime(d)
	sm.methodFor(methodName).recordResponseTime(d)
}

func (c *DefaultCollector) RecordError(serviceName, methodName string, err error) {
	sm := c.serviceFor(serviceName)
	sm.recordError()
	sm.methodFor(methodName).recordError()
}

func (c *DefaultCollector) RecordSuccess(serviceName, methodName string) {
	sm := c.serviceFor(serviceName)
	sm.recordSuccess()
	sm.methodFor(methodName).recordSuccess()
}

func (c *DefaultCollector) RecordConnectionPool(serverAddress string, active, total, waiting int) {
	c.mu.Lock()
	pm, ok := c.pools[serverAddress]
	if !ok {
		pm = &poolMetrics{serverAddress: serverAddress}
		c.pools[serverAddress] = pm
	}
	c.mu.Unlock()
	pm.update(active, total, waiting)
}

func (c *DefaultCollector) Snapshot(serviceName string) Snapshot {
	c.mu.Lock()
	sm, ok := c.services[serviceName]
	c.mu.Unlock()
	if !ok {
		return Snapshot{Timestamp: time.Now(), ServiceName: serviceName}
	}
	return sm.snapshot()
}

func (c *DefaultCollector) AllSnapshot() Snapshot {
	c.mu.Lock()
	services := make([]*serviceMetrics, 0, len(c.services))
	for _, sm := range c.services {
		services = append(services, sm)
	}
	pools := make(map[string]*poolMetrics, len(c.pools))
	for k, v := range c.pools {
		pools[k] = v
	}
	c.mu.Unlock()

	out := Snapshot{Timestamp: time.Now(), ServiceName: "ALL", Methods: map[string]MethodSnapshot{}}
	var minRT, maxRT time.Duration = math.MaxInt64, 0
	for _, sm := range services {
		total := sm.total.Load()
		success := sm.success.Load()
		failed := sm.failed.Load()
		out.TotalRequests += total
		out.SuccessRequests += success
		out.FailedRequests += failed
		if d := time.Duration(sm.minRT.Load()); total > 0 && d < minRT {
			minRT = d
		}
		if d := time.Duration(sm.maxRT.Load()); d > maxRT {
			maxRT = d
		}
		sm.mu.Lock()
		for name, mm := range sm.methods {
			out.Methods[sm.name+"."+name] = mm.snapshot()
		}
		sm.mu.Unlock()
	}
	if minRT == math.MaxInt64 {
		minRT = 0
	}
	out.MinResponseTime = minRT
	out.MaxResponseTime = maxRT
	if out.TotalRequests > 0 {
		out.ErrorRate = float64(out.FailedRequests) / float64(out.TotalRequests)
	}
	out.Pools = make(map[string]PoolSnapshot, len(pools))
	for addr, pm := range pools {
		out.Pools[addr] = pm.snapshot()
	}
	return out
}

func (c *DefaultCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services = make(map[string]*serviceMetrics)
	c.pools = make(map[string]*poolMetrics)
}

type methodMetrics struct {
	name    string
	total   atomic.Int64
	success atomic.Int64
	failed  atomic.Int64
	sumRT   atomic.Int64
	minRT   atomic.Int64
	maxRT   atomic.Int64
}

func newMethodMetrics(name string) *methodMetrics {
	m := &methodMetrics{name: name}
	m.minRT.Store(math.MaxInt64)
	return m
}

func (m *methodMetrics) recordSuccess() { m.success.Add(1); m.total.Add(1) }
func (m *methodMetrics) recordError()   { m.failed.Add(1); m.total.Add(1) }

func (m *methodMetrics) recordResponseTime(d time.Duration) {
	m.sumRT.Add(int64(d))
	casMin(&m.minRT, int64(d))
	casMax(&m.maxRT, int64(d))
}

func (m *methodMetrics) snapshot() MethodSnapshot {
	total := m.total.Load()
	var avg time.Duration
	if total > 0 {
		avg = time.Duration(m.sumRT.Load() / total)
	}
	minRT := m.minRT.Load()
	if minRT == math.MaxInt64 {
		minRT = 0
	}
	return MethodSnapshot{
		MethodName:          m.name,
		TotalCalls:          total,
		SuccessCalls:        m.success.Load(),
		FailedCalls:         m.failed.Load(),
		AverageResponseTime: avg,
		MinResponseTime:     time.Duration(minRT),
		MaxResponseTime:     time.Duration(m.maxRT.Load()),
	}
}

type serviceMetrics struct {
	name  string
	total atomic.Int64
	success atomic.Int64
	failed  atomic.Int64
	sumRT   atomic.Int64
	minRT   atomic.Int64
	maxRT   atomic.Int64
	lastRequestAt atomic.Int64 // unix nanos

	mu      sync.Mutex
	methods map[string]*methodMetrics
	samples []time.Duration
}

func newServiceMetrics(name string) *serviceMetrics {
	sm := &serviceMetrics{name: name, methods: make(map[string]*methodMetrics)}
	sm.minRT.Store(math.MaxInt64)
	sm.lastRequestAt.Store(time.Now().UnixNano())
	return sm
}

func (sm *serviceMetrics) methodFor(name string) *methodMetrics {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	mm, ok := sm.methods[name]
	if !ok {
		mm = newMethodMetrics(name)
		sm.methods[name] = mm
	}
	return mm
}

func (sm *serviceMetrics) recordRequest() {
	sm.total.Add(1)
	sm.lastRequestAt.Store(time.Now().UnixNano())
}

func (sm *serviceMetrics) recordSuccess() { sm.success.Add(1); sm.recordRequest() }
func (sm *serviceMetrics) recordError()   { sm.failed.Add(1); sm.recordRequest() }

func (sm *serviceMetrics) recordResponseTime(d time.Duration) {
	sm.sumRT.Add(int64(d))
	casMin(&sm.minRT, int64(d))
	casMax(&sm.maxRT, int64(d))

	sm.mu.Lock()
	sm.samples = append(sm.samples, d)
	if len(sm.samples) > responseTimeCap {
		half := len(sm.samples) / 2
		sm.samples = append([]time.Duration{}, sm.samples[half:]...)
	}
	sm.mu.Unlock()
}

func (sm *serviceMetrics) percentile(p float64) time.Duration {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if len(sm.samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration{}, sm.samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func (sm *serviceMetrics) snapshot() Snapshot {
	total := sm.total.Load()
	success := sm.success.Load()
	failed := sm.failed.Load()

	var avg time.Duration
	if total > 0 {
		avg = time.Duration(sm.sumRT.Load() / total)
	}
	var errorRate float64
	if total > 0 {
		errorRate = float64(failed) / float64(total)
	}

	lastAt := time.Unix(0, sm.lastRequestAt.Load())
	sinceLast := time.Since(lastAt)
	var qps float64
	if sinceLast < time.Minute {
		seconds := sinceLast.Seconds()
		if seconds < 1 {
			seconds = 1
		}
		qps = float64(total) / seconds
	}

	minRT := sm.minRT.Load()
	if minRT == math.MaxInt64 {
		minRT = 0
	}

	sm.mu.Lock()
	methods := make(map[string]MethodSnapshot, len(sm.methods))
	for name, mm := range sm.methods {
		methods[name] = mm.snapshot()
	}
	sm.mu.Unlock()

	return Snapshot{
		Timestamp:           time.Now(),
		ServiceName:         sm.name,
		TotalRequests:       total,
		SuccessRequests:     success,
		FailedRequests:      failed,
		AverageResponseTime: avg,
		MinResponseTime:     time.Duration(minRT),
		MaxResponseTime:     time.Duration(sm.maxRT.Load()),
		QPS:                 qps,
		ErrorRate:           errorRate,
		P95ResponseTime:     sm.percentile(95),
		P99ResponseTime:     sm.percentile(99),
		Methods:             methods,
	}
}

func casMin(addr *atomic.Int64, v int64) {
	for {
		cur := addr.Load()
		if v >= cur || addr.CompareAndSwap(cur, v) {
			return
		}
	}
}

func casMax(addr *atomic.Int64, v int64) {
	for {
		cur := addr.Load()
		if v <= cur || addr.CompareAndSwap(cur, v) {
			return
		}
	}
}

type poolMetrics struct {
	serverAddress string
	active        atomic.Int32
	total         atomic.Int32
	waiting       atomic.Int32
}

func (pm *poolMetrics) update(active, total, waiting int) {
	pm.active.Store(int32(active))
	pm.total.Store(int32(total))
	pm.waiting.Store(int32(waiting))
}

func (pm *poolMetrics) snapshot() PoolSnapshot {
	return PoolSnapshot{
		ServerAddress:     pm.serverAddress,
		ActiveConnections: int(pm.active.Load()),
		TotalConnections:  int(pm.total.Load()),
		WaitingRequests:   int(pm.waiting.Load()),
	}
}
