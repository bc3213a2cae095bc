// Package metrics collects per-service/method call counts, error rates,
// and response-time percentiles, plus connection-pool utilization.
// Grounded on original_source/rpc-common/.../metrics/{MetricsCollector,
// DefaultMetricsCollector,MetricsManager,MetricsSnapshot}.java.
package metrics

import "time"

// responseTimeCap bounds the retained sample window per service; once
// exceeded, the oldest half is dropped, mirroring
// DefaultMetricsCollector.ServiceMetrics.recordResponseTime's
// subList(0, 5000).clear() eviction.
const responseTimeCap = 10000

// MethodSnapshot is MetricsSnapshot.MethodMetrics.
type MethodSnapshot struct {
	MethodName          string
	TotalCalls          int64
	SuccessCalls        int64
	FailedCalls         int64
	AverageResponseTime time.Duration
	MinResponseTime     time.Duration
	MaxResponseTime     time.Duration
}

// SuccessRate mirrors MethodMetrics.getSuccessRate().
func (m MethodSnapshot) SuccessRate() float64 {
	if m.TotalCalls == 0 {
		return 1
	}
	return float64(m.SuccessCalls) / float64(m.TotalCalls)
}

// PoolSnapshot is MetricsSnapshot.ConnectionPoolMetrics.
type PoolSnapshot struct {
	ServerAddress      string
	TotalConnections   int
	ActiveConnections  int
	WaitingRequests    int
}

// UtilizationRate mirrors the Java field of the same name, computed here
// rather than stored, since it's derived from the other three.
func (p PoolSnapshot) UtilizationRate() float64 {
	if p.TotalConnections == 0 {
		return 0
	}
	return float64(p.ActiveConnections) / float64(p.TotalConnections)
}

// Healthy mirrors ConnectionPoolMetrics.isHealthy().
func (p PoolSnapshot) Healthy() bool {
	return p.UtilizationRate() < 0.9 && p.WaitingRequests < p.TotalConnections
}

// Snapshot is MetricsSnapshot.java: a point-in-time view of one service
// (or "ALL" services combined).
type Snapshot struct {
	Timestamp           time.Time
	ServiceName         string
	TotalRequests       int64
	SuccessRequests     int64
	FailedRequests      int64
	AverageResponseTime time.Duration
	MinResponseTime     time.Duration
	MaxResponseTime     time.Duration
	QPS                 float64
	ErrorRate           float64
	P95ResponseTime     time.Duration
	P99ResponseTime     time.Duration
	Methods             map[string]MethodSnapshot
	Pools               map[string]PoolSnapshot
}

// SuccessRate mirrors MetricsSnapshot.getSuccessRate().
func (s Snapshot) SuccessRate() float64 {
	if s.TotalRequests == 0 {
		return 1
	}
	return float64(s.SuccessRequests) / float64(s.TotalRequests)
}

// Status mirrors MetricsSnapshot.getStatusDescription()'s thresholds.
func (s Snapshot) Status() string {
	healthy := s.ErrorRate < 0.05 && s.SuccessRequests > 0
	switch {
	case !healthy:
		return "UNHEALTHY"
	case s.ErrorRate > 0.01:
		return "WARNING"
	case s.AverageResponseTime > time.Second:
		return "SLOW"
	default:
		return "HEALTHY"
	}
}

// Collector is the pluggable metrics sink, mirroring MetricsCollector.java.
type Collector interface {
	RecordRequestTime(serviceName, methodName string, d time.Duration)
	RecordError(serviceName, methodName string, err error)
	RecordSuccess(serviceName, methodName string)
	RecordConnectionPool(serverAddress string, active, total, waiting int)
	Snapshot(serviceName string) Snapshot
	AllSnapshot() Snapshot
	Reset()
	Name() string
}
