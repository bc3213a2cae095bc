package tracing

import "go.uber.org/zap"

// Collector receives finished spans, mirroring TraceCollector.java.
type Collector interface {
	Collect(span *Span)
}

// LogCollector logs a one-line summary at info/error plus a detailed
// debug-level dump, mirroring LogTraceCollector.java.
type LogCollector struct {
	Logger *zap.Logger
}

// NewLogCollector returns a LogCollector; logger defaults to a no-op.
func NewLogCollector(logger *zap.Logger) *LogCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogCollector{Logger: logger}
}

func (c *LogCollector) Collect(span *Span) {
	fields := []zap.Field{
		zap.String("trace_id", span.TraceID),
		zap.String("span_id", span.SpanID),
		zap.String("service", span.ServiceName),
		zap.String("method", span.MethodName),
		zap.Duration("duration", span.Duration()),
	}
	if span.Status == Error {
		fields = append(fields, zap.String("error", span.ErrorMessage))
		c.Logger.Error("trace span failed", fields...)
	} else {
		c.Logger.Info("trace span completed", fields...)
	}

	c.Logger.Debug("trace span detail",
		zap.String("trace_id", span.TraceID),
		zap.String("span_id", span.SpanID),
		zap.String("parent_span_id", span.ParentSpanID),
		zap.Any("tags", span.Tags()),
		zap.Any("logs", span.Logs()),
	)
}
