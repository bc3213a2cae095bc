package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultCollectorRecordsRequestsAndSuccess(t *testing.T) {
	c := NewDefaultCollector("test")
	c.RecordSuccess("Arith", "Add")
	c.RecordSuccess("Arith", "Add")
	c.RecordError("Arith", "Add", errors.New("boom"))
	c.RecordRequestTime("Arith", "Add", 10*time.Millisecond)

	snap := c.Snapshot("Arith")
	if snap.TotalRequests != 3 || snap.SuccessRequests != 2 || snap.FailedRequests != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.SuccessRate() < 0.66 || snap.SuccessRate() > 0.67 {
		t.Fatalf("unexpected success rate: %v", snap.SuccessRate())
	}
}

func TestSnapshotUnknownServiceIsEmpty(t *testing.T) {
	c := NewDefaultCollector("test")
	snap := c.Snapshot("missing")
	if snap.TotalRequests != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestResponseTimePercentiles(t *testing.T) {
	c := NewDefaultCollector("test")
	for i := 1; i <= 100; i++ {
		c.RecordRequestTime("Arith", "Add", time.Duration(i)*time.Millisecond)
	}
	snap := c.Snapshot("Arith")
	if snap.P95ResponseTime != 95*time.Millisecond {
		t.Fatalf("expected p95 = 95ms, got %v", snap.P95ResponseTime)
	}
	if snap.P99ResponseTime != 99*time.Millisecond {
		t.Fatalf("expected p99 = 99ms, got %v", snap.P99ResponseTime)
	}
}

func TestResponseTimeSampleWindowIsBounded(t *testing.T) {
	c := NewDefaultCollector("test")
	for i := 0; i < responseTimeCap+500; i++ {
		c.RecordRequestTime("Arith", "Add", time.Millisecond)
	}
	sm := c.serviceFor("Arith")
	sm.mu.Lock()
	n := len(sm.samples)
	sm.mu.Unlock()
	if n > responseTimeCap {
		t.Fatalf("expected samples bounded at %d, got %d", responseTimeCap, n)
	}
}

func TestConnectionPoolMetrics(t *testing.T) {
	c := NewDefaultCollector("test")
	c.RecordConnectionPool("127.0.0.1:9000", 8, 10, 2)
	snap := c.AllSnapshot()
	pm, ok := snap.Pools["127.0.0.1:9000"]
	if !ok {
		t.Fatal("expected pool metrics recorded")
	}
	if pm.UtilizationRate() != 0.8 {
		t.Fatalf("expected utilization 0.8, got %v", pm.UtilizationRate())
	}
	if pm.Healthy() != true {
		t.Fatal("expected pool to be healthy at 80% utilization")
	}
}

func TestManagerFansOutToAllCollectors(t *testing.T) {
	m := NewManager(nil)
	second := NewDefaultCollector("second")
	m.AddCollector(second)

	m.RecordSuccess("Arith", "Add")
	if m.Snapshot("Arith").TotalRequests != 1 {
		t.Fatal("expected primary collector to observe the call")
	}
	if second.Snapshot("Arith").TotalRequests != 1 {
		t.Fatal("expected secondary collector to observe the call too")
	}
}

func TestManagerEnableReportingIsIdempotent(t *testing.T) {
	m := NewManager(nil)
	m.EnableReporting(10 * time.Millisecond)
	m.EnableReporting(10 * time.Millisecond) // no-op, must not deadlock or double-start
	time.Sleep(25 * time.Millisecond)
	m.DisableReporting()
}

func TestStatusThresholds(t *testing.T) {
	healthy := Snapshot{SuccessRequests: 10, ErrorRate: 0}
	if healthy.Status() != "HEALTHY" {
		t.Fatalf("expected HEALTHY, got %s", healthy.Status())
	}
	unhealthy := Snapshot{SuccessRequests: 0, ErrorRate: 0.2}
	if unhealthy.Status() != "UNHEALTHY" {
		t.Fatalf("expected UNHEALTHY, got %s", unhealthy.Status())
	}
}
