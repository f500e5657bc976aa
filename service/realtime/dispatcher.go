package realtime

import (
	errs "CampusLink/tools/errs"
)

// Context carries the per-frame handling state: the server and the
// originating connection. Handlers never touch the raw socket.
type Context struct {
	S    *Server
	Conn *WsConn
}

type Handler interface {
	Kind() EventKind
	Handle(c *Context, f *Frame) error
}

// Dispatcher routes parsed frames to their registered handler by event kind.
type Dispatcher struct {
	handlers map[EventKind]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[EventKind]Handler)}
}

func (d *Dispatcher) Register(hs ...Handler) {
	for _, h := range hs {
		d.handlers[h.Kind()] = h
	}
}

func (d *Dispatcher) Dispatch(c *Context, f *Frame) error {
	h, ok := d.handlers[f.Type]
	if !ok {
		return errs.ErrValidation.WithDetail("no handler for event: " + string(f.Type))
	}
	return h.Handle(c, f)
}
