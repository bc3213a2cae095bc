// Package tracing provides request-scoped span tracking propagated via
// context.Context — the idiomatic Go replacement for TraceManager.java's
// ThreadLocal<TraceContext>. Grounded on
// original_source/rpc-common/.../trace/{TraceContext,TraceManager,
// TraceCollector,LogTraceCollector}.java.
package tracing

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status mirrors TraceContext.TraceStatus.
type Status int

const (
	Started Status = iota
	Success
	Error
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Error:
		return "error"
	default:
		return "started"
	}
}

// Span is one node in a trace tree, mirroring TraceContext.java.
type Span struct {
	TraceID      string
	SpanID       string
	ParentSpanID string
	ServiceName  string
	MethodName   string
	StartTime    time.Time
	EndTime      time.Time
	Status       Status
	ErrorMessage string

	mu   sync.Mutex
	tags map[string]string
	logs map[string]any
}

func generateID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func newRootSpan(serviceName, methodName string) *Span {
	return newSpan(generateID(), "", serviceName, methodName)
}

func newChildSpan(parent *Span, serviceName, methodName string) *Span {
	return newSpan(parent.TraceID, parent.SpanID, serviceName, methodName)
}

func newSpan(traceID, parentSpanID, serviceName, methodName string) *Span {
	s := &Span{
		TraceID:      traceID,
		SpanID:       generateID(),
		ParentSpanID: parentSpanID,
		ServiceName:  serviceName,
		MethodName:   methodName,
		StartTime:    time.Now(),
		Status:       Started,
		tags:         make(map[string]string),
		logs:         make(map[string]any),
	}
	s.AddTag("service.name", serviceName)
	s.AddTag("method.name", methodName)
	return s
}

// AddTag records a tag, mirroring TraceContext.addTag.
func (s *Span) AddTag(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[key] = value
}

// AddLog records a log entry, mirroring TraceContext.addLog.
func (s *Span) AddLog(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[key] = value
}

// Tags returns a snapshot copy of the span's tags.
func (s *Span) Tags() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.tags))
	for k, v := range s.tags {
		out[k] = v
	}
	return out
}

// Logs returns a snapshot copy of the span's logs.
func (s *Span) Logs() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.logs))
	for k, v := range s.logs {
		out[k] = v
	}
	return out
}

func (s *Span) finish() {
	s.EndTime = time.Now()
	s.Status = Success
}

func (s *Span) finishWithError(errorMessage string) {
	s.EndTime = time.Now()
	s.Status = Error
	s.ErrorMessage = errorMessage
}

// Duration mirrors TraceContext.getDuration(): elapsed time so far if the
// span hasn't finished yet.
func (s *Span) Duration() time.Duration {
	if !s.EndTime.IsZero() {
		return s.EndTime.Sub(s.StartTime)
	}
	return time.Since(s.StartTime)
}
