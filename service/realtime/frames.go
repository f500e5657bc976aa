package realtime

import (
	"encoding/json"
	"time"

	"CampusLink/module/community/model"
	errs "CampusLink/tools/errs"
	"CampusLink/service/storage"
)

// EventKind is the closed set of wire events. Inbound frames outside
// inboundKinds are rejected at the boundary before dispatch.
type EventKind string

const (
	// client -> coordinator
	EventAuth          EventKind = "auth"
	EventPing          EventKind = "ping"
	EventSendMessage   EventKind = "send_message"
	EventTyping        EventKind = "typing"
	EventMarkRead      EventKind = "mark_read"
	EventMarkDelivered EventKind = "mark_delivered"
	EventJoinRoom      EventKind = "join_room"
	EventLeaveRoom     EventKind = "leave_room"

	// coordinator -> client
	EventConnAck       EventKind = "conn_ack"
	EventAuthAck       EventKind = "auth_ack"
	EventPong          EventKind = "pong"
	EventNewMessage    EventKind = "new_message"
	EventMessageStatus EventKind = "message_status"
	EventUserTyping    EventKind = "user_typing"
	EventUserStatus    EventKind = "user_status"
	EventNotify        EventKind = "notify"
	EventError         EventKind = "error"
)

var inboundKinds = map[EventKind]struct{}{
	EventAuth:          {},
	EventPing:          {},
	EventSendMessage:   {},
	EventTyping:        {},
	EventMarkRead:      {},
	EventMarkDelivered: {},
	EventJoinRoom:      {},
	EventLeaveRoom:     {},
}

// Frame is the JSON envelope on the wire.
type Frame struct {
	Type    EventKind       `json:"type"`
	Ts      int64           `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ParseFrame validates the envelope against the closed inbound set.
func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errs.ErrValidation.WithDetail("bad frame: " + err.Error())
	}
	if _, ok := inboundKinds[f.Type]; !ok {
		return nil, errs.ErrValidation.WithDetail("unknown event type: " + string(f.Type))
	}
	return &f, nil
}

// EncodeFrame builds an outbound frame. Payloads are coordinator-owned
// structs, so a marshal failure is a programming error worth surfacing.
func EncodeFrame(kind EventKind, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, errs.Wrap(err)
		}
		raw = b
	}
	return json.Marshal(Frame{Type: kind, Ts: time.Now().UnixMilli(), Payload: raw})
}

type validator interface{ Validate() error }

// payloadOf decodes and validates a frame payload as T.
func payloadOf[T any, PT interface {
	*T
	validator
}](f *Frame) (PT, error) {
	out := PT(new(T))
	if len(f.Payload) == 0 {
		return nil, errs.ErrValidation.WithDetail("missing payload")
	}
	if err := json.Unmarshal(f.Payload, out); err != nil {
		return nil, errs.ErrValidation.WithDetail("bad payload: " + err.Error())
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// ===== inbound payloads =====

const (
	maxContentLen = 4000
	maxTokenLen   = 128
	maxBatchIDs   = 100
)

type AuthPayload struct {
	Token  string `json:"token"`
	Device string `json:"device,omitempty"`
}

func (p *AuthPayload) Validate() error {
	if p.Token == "" {
		return errs.ErrValidation.WithDetail("token required")
	}
	return nil
}

type PingPayload struct{}

func (p *PingPayload) Validate() error { return nil }

type SendMessagePayload struct {
	ChatID           string `json:"chatId"`
	Content          string `json:"content"`
	Media            string `json:"media,omitempty"`
	ReplyTo          string `json:"replyTo,omitempty"`
	CorrelationToken string `json:"correlationToken,omitempty"`
}

func (p *SendMessagePayload) Validate() error {
	if p.ChatID == "" {
		return errs.ErrValidation.WithDetail("chatId required")
	}
	if p.Content == "" && p.Media == "" {
		return errs.ErrValidation.WithDetail("content or media required")
	}
	if len(p.Content) > maxContentLen {
		return errs.ErrValidation.WithDetail("content too long")
	}
	if len(p.CorrelationToken) > maxTokenLen {
		return errs.ErrValidation.WithDetail("correlationToken too long")
	}
	return nil
}

type TypingPayload struct {
	ChatID   string `json:"chatId"`
	IsTyping bool   `json:"isTyping"`
}

func (p *TypingPayload) Validate() error {
	if p.ChatID == "" {
		return errs.ErrValidation.WithDetail("chatId required")
	}
	return nil
}

type MarkReadPayload struct {
	ChatID     string   `json:"chatId"`
	MessageIDs []string `json:"messageIds"`
}

func (p *MarkReadPayload) Validate() error {
	if p.ChatID == "" {
		return errs.ErrValidation.WithDetail("chatId required")
	}
	if len(p.MessageIDs) == 0 || len(p.MessageIDs) > maxBatchIDs {
		return errs.ErrValidation.WithDetail("messageIds must hold 1..100 entries")
	}
	return nil
}

type RoomPayload struct {
	Kind string `json:"kind"`
	Key  string `json:"key"`
}

// joinable kinds: ad hoc browsing of groups and forum threads; chat, role
// and personal rooms are only ever entered through session rejoin.
func (p *RoomPayload) Validate() error {
	if p.Key == "" {
		return errs.ErrValidation.WithDetail("key required")
	}
	switch RoomKind(p.Kind) {
	case RoomStudyGroup, RoomForum:
		return nil
	}
	return errs.ErrValidation.WithDetail("kind must be group or forum")
}

func (p *RoomPayload) RoomID() RoomID {
	return RoomID{Kind: RoomKind(p.Kind), Key: p.Key}
}

// ===== outbound payloads =====

type ConnAckPayload struct {
	ConnID         string `json:"connId"`
	NodeID         string `json:"nodeId"`
	PingIntervalMS int64  `json:"pingIntervalMs"`
	AuthTimeoutMS  int64  `json:"authTimeoutMs"`
}

type AuthAckPayload struct {
	UserID string   `json:"userId"`
	ConnID string   `json:"connId"`
	Rooms  []string `json:"rooms"`
}

type NewMessagePayload struct {
	ChatID           string         `json:"chatId"`
	Message          *model.Message `json:"message"`
	CorrelationToken string         `json:"correlationToken,omitempty"`
}

type MessageStatusPayload struct {
	ChatID     string   `json:"chatId"`
	MessageIDs []string `json:"messageIds"`
	Status     string   `json:"status"`
	ActorID    string   `json:"actorId"`
}

type UserTypingPayload struct {
	ChatID        string   `json:"chatId"`
	UserID        string   `json:"userId"`
	IsTyping      bool     `json:"isTyping"`
	CurrentTypers []string `json:"currentTypers"`
}

type UserStatusPayload struct {
	UserID      string         `json:"userId"`
	Status      storage.Status `json:"status"`
	LastSeen    *int64         `json:"lastSeen,omitempty"` // Unix ms, null while online
	DeviceCount int            `json:"deviceCount"`
}

type NotifyPayload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
