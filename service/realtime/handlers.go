package realtime

import (
	"context"
)

type pingHandler struct{}

func (pingHandler) Kind() EventKind { return EventPing }

func (pingHandler) Handle(c *Context, _ *Frame) error {
	c.S.registry.Heartbeat(c.Conn.ID)
	c.S.sendTo(c.Conn, EventPong, nil)
	return nil
}

type sendMessageHandler struct{}

func (sendMessageHandler) Kind() EventKind { return EventSendMessage }

func (sendMessageHandler) Handle(c *Context, f *Frame) error {
	p, err := payloadOf[SendMessagePayload](f)
	if err != nil {
		return err
	}
	_, err = c.S.delivery.Send(context.Background(), c.Conn.UserID, p)
	return err
}

type typingHandler struct{}

func (typingHandler) Kind() EventKind { return EventTyping }

// typing is best-effort: no persistence, no membership round trip, and the
// originator is excluded from the broadcast.
func (typingHandler) Handle(c *Context, f *Frame) error {
	p, err := payloadOf[TypingPayload](f)
	if err != nil {
		return err
	}
	current := c.S.typing.Set(p.ChatID, c.Conn.UserID, p.IsTyping)
	c.S.broadcastAsync(ChatRoom(p.ChatID), EventUserTyping, &UserTypingPayload{
		ChatID:        p.ChatID,
		UserID:        c.Conn.UserID,
		IsTyping:      p.IsTyping,
		CurrentTypers: current,
	}, c.Conn.UserID)
	return nil
}

type markReadHandler struct{}

func (markReadHandler) Kind() EventKind { return EventMarkRead }

func (markReadHandler) Handle(c *Context, f *Frame) error {
	p, err := payloadOf[MarkReadPayload](f)
	if err != nil {
		return err
	}
	return c.S.receipts.MarkRead(context.Background(), c.Conn.UserID, p)
}

type markDeliveredHandler struct{}

func (markDeliveredHandler) Kind() EventKind { return EventMarkDelivered }

func (markDeliveredHandler) Handle(c *Context, f *Frame) error {
	p, err := payloadOf[MarkReadPayload](f)
	if err != nil {
		return err
	}
	return c.S.receipts.MarkDelivered(context.Background(), c.Conn.UserID, p)
}

type joinRoomHandler struct{}

func (joinRoomHandler) Kind() EventKind { return EventJoinRoom }

func (joinRoomHandler) Handle(c *Context, f *Frame) error {
	p, err := payloadOf[RoomPayload](f)
	if err != nil {
		return err
	}
	c.S.rooms.Subscribe(p.RoomID(), c.Conn.ID, c.Conn.UserID)
	return nil
}

type leaveRoomHandler struct{}

func (leaveRoomHandler) Kind() EventKind { return EventLeaveRoom }

func (leaveRoomHandler) Handle(c *Context, f *Frame) error {
	p, err := payloadOf[RoomPayload](f)
	if err != nil {
		return err
	}
	c.S.rooms.Unsubscribe(p.RoomID(), c.Conn.ID)
	return nil
}
