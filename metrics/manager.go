package metrics

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultReportInterval is MetricsManager.java's 30-second default.
const DefaultReportInterval = 30 * time.Second

// Manager fans calls out to every registered Collector and, when enabled,
// periodically logs a summary report. Grounded on MetricsManager.java,
// constructed explicitly rather than exposed as a getInstance() singleton.
type Manager struct {
	logger *zap.Logger

	mu         sync.Mutex
	collectors []Collector

	reportMu sync.Mutex
	enabled  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewManager returns a Manager with one DefaultCollector already attached,
// matching MetricsManager's constructor behavior.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger:     logger,
		collectors: []Collector{NewDefaultCollector("default")},
	}
}

func (m *Manager) AddCollector(c Collector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collectors = append(m.collectors, c)
}

func (m *Manager) RemoveCollector(c Collector) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.collectors {
		if existing == c {
			m.collectors = append(m.collectors[:i], m.collectors[i+1:]...)
			return
		}
	}
}

func (m *Manager) snapshotCollectors() []Collector {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Collector, len(m.collectors))
	copy(out, m.collectors)
	return out
}

func (m *Manager) RecordRequestTime(serviceName, methodName string, d time.Duration) {
	for _, c := range m.snapshotCollectors() {
		c.RecordRequestTime(serviceName, methodName, d)
	}
}

func (m *Manager) RecordError(serviceName, methodName string, err error) {
	for _, c := range m.snapshotCollectors() {
		c.RecordError(serviceName, methodName, err)
	}
}

func (m *Manager) RecordSuccess(serviceName, methodName string) {
	for _, c := range m.snapshotCollectors() {
		c.RecordSuccess(serviceName, methodName)
	}
}

func (m *Manager) RecordConnectionPool(serverAddress string, active, total, waiting int) {
	for _, c := range m.snapshotCollectors() {
		c.RecordConnectionPool(serverAddress, active, total, waiting)
	}
}

// Snapshot returns the first collector's view of serviceName, mirroring
// MetricsManager.getSnapshot (which also only consults the first
// collector).
func (m *Manager) Snapshot(serviceName string) Snapshot {
	collectors := m.snapshotCollectors()
	if len(collectors) == 0 {
		return Snapshot{Timestamp: time.Now(), ServiceName: serviceName}
	}
	return collectors[0].Snapshot(serviceName)
}

func (m *Manager) AllSnapshot() Snapshot {
	collectors := m.snapshotCollectors()
	if len(collectors) == 0 {
		return Snapshot{Timestamp: time.Now(), ServiceName: "ALL"}
	}
	return collectors[0].AllSnapshot()
}

func (m *Manager) ResetAll() {
	for _, c := range m.snapshotCollectors() {
		c.Reset()
	}
}

// EnableReporting starts a goroutine logging AllSnapshot every interval
// (DefaultReportInterval if interval is zero). A second call while already
// enabled is a no-op, matching MetricsManager.enableReporting.
func (m *Manager) EnableReporting(interval time.Duration) {
	m.reportMu.Lock()
	defer m.reportMu.Unlock()
	if m.enabled {
		return
	}
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	m.enabled = true
	m.stopCh = make(chan struct{})
	m.wg.Add(1)
	go m.reportLoop(interval)
}

func (m *Manager) reportLoop(interval time.Duration) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.GenerateReport()
		case <-m.stopCh:
			return
		}
	}
}

// DisableReporting stops the reporting goroutine, if running.
func (m *Manager) DisableReporting() {
	m.reportMu.Lock()
	if !m.enabled {
		m.reportMu.Unlock()
		return
	}
	m.enabled = false
	close(m.stopCh)
	m.reportMu.Unlock()
	m.wg.Wait()
}

// GenerateReport logs the combined snapshot plus a per-method breakdown,
// mirroring MetricsManager.generateReport().
func (m *Manager) GenerateReport() {
	snap := m.AllSnapshot()
	m.logger.Info("rpc metrics report",
		zap.Int64("total_requests", snap.TotalRequests),
		zap.Int64("success_requests", snap.SuccessRequests),
		zap.Int64("failed_requests", snap.FailedRequests),
		zap.Float64("error_rate", snap.ErrorRate),
		zap.String("status", snap.Status()),
	)
	for method, mm := range snap.Methods {
		m.logger.Info("method metrics",
			zap.String("method", method),
			zap.Int64("total_calls", mm.TotalCalls),
			zap.Float64("success_rate", mm.SuccessRate()),
			zap.Duration("avg_response_time", mm.AverageResponseTime),
		)
	}
	for addr, pm := range snap.Pools {
		m.logger.Info("connection pool metrics",
			zap.String("server", addr),
			zap.Int("active", pm.ActiveConnections),
			zap.Int("total", pm.TotalConnections),
			zap.Int("waiting", pm.WaitingRequests),
			zap.Float64("utilization", pm.UtilizationRate()),
		)
	}
}
