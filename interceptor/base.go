package interceptor

import (
	"context"

	"mini-rpc/message"
)

// Base gives an embedding interceptor no-op PostProcess/OnException so it
// only needs to implement PreProcess (and Name/Priority).
type Base struct{}

func (Base) PostProcess(ctx context.Context, req *message.Request, resp *message.Response) {}

func (Base) OnException(ctx context.Context, req *message.Request, err error) *message.Response {
	return message.Failure(err.Error())
}
