package tracing

import (
	"context"
	"sync"
	"time"
)

type ctxKey struct{}

// CurrentSpan fetches the span a prior StartTrace/StartChildTrace attached
// to ctx.
func CurrentSpan(ctx context.Context) (*Span, bool) {
	span, ok := ctx.Value(ctxKey{}).(*Span)
	return span, ok
}

// Tracer starts/finishes spans, keeps an in-memory trace store for lookup
// by trace ID (pruned only by Cleanup and Clear), and fans finished spans
// out to its collectors.
// Grounded on TraceManager.java, minus its ThreadLocal<TraceContext> —
// context.Context carries the current span here instead.
type Tracer struct {
	mu         sync.Mutex
	traces     map[string][]*Span
	collectors []Collector
}

// NewTracer returns a Tracer with defaultCollector attached, or with no
// collector if it is nil; pass NewLogCollector(...) for the logging
// collector TraceManager always had available.
func NewTracer(defaultCollector Collector) *Tracer {
	t := &Tracer{traces: make(map[string][]*Span)}
	if defaultCollector != nil {
		t.collectors = append(t.collectors, defaultCollector)
	}
	return t
}

// StartTrace begins a new root span and returns a context carrying it.
func (t *Tracer) StartTrace(ctx context.Context, serviceName, methodName string) (context.Context, *Span) {
	span := newRootSpan(serviceName, methodName)
	return context.WithValue(ctx, ctxKey{}, span), span
}

// StartTraceWithID begins a span continuing an inbound traceID/parentSpanID
// pair, mirroring TraceManager.startTrace(traceId, parentSpanId, ...) —
// used on the server side when a request arrives carrying trace headers.
func (t *Tracer) StartTraceWithID(ctx context.Context, traceID, parentSpanID, serviceName, methodName string) (context.Context, *Span) {
	span := newSpan(traceID, parentSpanID, serviceName, methodName)
	return context.WithValue(ctx, ctxKey{}, span), span
}

// StartChildTrace begins a span nested under ctx's current span, if any,
// or a new root span otherwise.
func (t *Tracer) StartChildTrace(ctx context.Context, serviceName, methodName string) (context.Context, *Span) {
	var span *Span
	if parent, ok := CurrentSpan(ctx); ok {
		span = newChildSpan(parent, serviceName, methodName)
	} else {
		span = newRootSpan(serviceName, methodName)
	}
	return context.WithValue(ctx, ctxKey{}, span), span
}

// FinishTrace marks ctx's current span successful and collects it.
func (t *Tracer) FinishTrace(ctx context.Context) {
	span, ok := CurrentSpan(ctx)
	if !ok {
		return
	}
	span.finish()
	t.collect(span)
}

// FinishTraceWithError marks ctx's current span failed and collects it.
func (t *Tracer) FinishTraceWithError(ctx context.Context, errorMessage string) {
	span, ok := CurrentSpan(ctx)
	if !ok {
		return
	}
	span.finishWithError(errorMessage)
	t.collect(span)
}

func (t *Tracer) collect(span *Span) {
	t.mu.Lock()
	t.traces[span.TraceID] = append(t.traces[span.TraceID], span)
	collectors := make([]Collector, len(t.collectors))
	copy(collectors, t.collectors)
	t.mu.Unlock()

	for _, c := range collectors {
		c.Collect(span)
	}
}

// AddCollector registers an additional collector.
func (t *Tracer) AddCollector(c Collector) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.collectors = append(t.collectors, c)
}

// TraceChain returns every span recorded under traceID, in collection
// order, mirroring TraceManager.getTraceChain.
func (t *Tracer) TraceChain(traceID string) []*Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	spans := t.traces[traceID]
	out := make([]*Span, len(spans))
	copy(out, spans)
	return out
}

// Cleanup evicts trace chains whose first span started more than maxAge
// ago, mirroring TraceManager.cleanup()'s 24-hour default.
func (t *Tracer) Cleanup(maxAge time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	for traceID, spans := range t.traces {
		if len(spans) == 0 || now.Sub(spans[0].StartTime) > maxAge {
			delete(t.traces, traceID)
		}
	}
}

// Clear drops all recorded traces.
func (t *Tracer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.traces = make(map[string][]*Span)
}
