package natsx

import "context"

// NatsxMessage is the unified message object handed to business handlers.
type NatsxMessage struct {
	Subject string
	Data    []byte
	Header  map[string]string
}

// NatsxHandler processes one broker message.
type NatsxHandler func(ctx context.Context, msg NatsxMessage) error

// NatsxMiddleware wraps handlers (logging, metrics, retry).
type NatsxMiddleware func(NatsxHandler) NatsxHandler

// NatsxChain composes middlewares, outermost first.
func NatsxChain(h NatsxHandler, mws ...NatsxMiddleware) NatsxHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
