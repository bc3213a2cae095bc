package interceptor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mini-rpc/message"
)

// LoggingPriority wraps everything else so the recorded duration covers
// the full chain, not just the handler.
const LoggingPriority = 0

const attrStart = "logging.start"

// LoggingInterceptor logs method, duration, and status per call, grounded
// on middleware/logging_middleware.go, replacing log.Printf with the
// structured zap logger the rest of the module uses.
type LoggingInterceptor struct {
	Base
	Logger *zap.Logger
}

func (l *LoggingInterceptor) Name() string  { return "logging" }
func (l *LoggingInterceptor) Priority() int { return LoggingPriority }

func (l *LoggingInterceptor) PreProcess(ctx context.Context, req *message.Request) (*message.Response, error) {
	req.SetAttr(attrStart, time.Now())
	return nil, nil
}

func (l *LoggingInterceptor) PostProcess(ctx context.Context, req *message.Request, resp *message.Response) {
	var duration time.Duration
	if v, ok := req.Attr(attrStart); ok {
		duration = time.Since(v.(time.Time))
	}
	fields := []zap.Field{
		zap.String("method", req.ServiceMethod()),
		zap.Duration("duration", duration),
		zap.Int("status", resp.Status),
	}
	if !resp.IsSuccess() {
		fields = append(fields, zap.String("message", resp.Message))
		l.Logger.Warn("rpc call failed", fields...)
		return
	}
	l.Logger.Debug("rpc call completed", fields...)
}
