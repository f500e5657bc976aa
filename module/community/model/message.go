package model

const (
	MessageCollection = "messages"

	MessageFieldMessageID   = "message_id"
	MessageFieldChatID      = "chat_id"
	MessageFieldSenderID    = "sender_id"
	MessageFieldContent     = "content"
	MessageFieldMedia       = "media"
	MessageFieldStatus      = "status"
	MessageFieldReadBy      = "read_by"
	MessageFieldDeliveredTo = "delivered_to"
	MessageFieldSeq         = "seq"
	MessageFieldReplyTo     = "reply_to"
	MessageFieldCreatedAt   = "created_at"
)

// Message status machine: sending -> sent -> delivered -> read, with failed
// absorbing from sending only. Transitions are monotonic; the forward-only
// guard lives in the store's update filters, not in handler logic.
const (
	MessageStatusSending   = "sending"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

var statusRank = map[string]int{
	MessageStatusSending:   0,
	MessageStatusSent:      1,
	MessageStatusDelivered: 2,
	MessageStatusRead:      3,
	MessageStatusFailed:    1, // absorbing; never upgraded
}

// StatusAdvances reports whether moving from -> to is a forward transition.
func StatusAdvances(from, to string) bool {
	if from == MessageStatusFailed {
		return false
	}
	fr, ok1 := statusRank[from]
	tr, ok2 := statusRank[to]
	return ok1 && ok2 && tr > fr
}

// Message is created by the delivery pipeline. status / read_by /
// delivered_to are mutated only through atomic set/increment operators to
// stay correct under interleaved handlers.
type Message struct {
	MessageID   string   `bson:"message_id" json:"messageId"`
	ChatID      string   `bson:"chat_id" json:"chatId"`
	SenderID    string   `bson:"sender_id" json:"senderId"`
	Content     string   `bson:"content" json:"content"`
	Media       string   `bson:"media,omitempty" json:"media,omitempty"` // opaque upload reference
	Status      string   `bson:"status" json:"status"`
	ReadBy      []string `bson:"read_by" json:"readBy"`
	DeliveredTo []string `bson:"delivered_to" json:"deliveredTo"`
	Seq         int64    `bson:"seq" json:"seq"` // chat-local append order
	ReplyTo     string   `bson:"reply_to,omitempty" json:"replyTo,omitempty"`
	CreatedAt   int64    `bson:"created_at" json:"createdAt"` // Unix ms
}

// Preview truncates content for the chat's last_message snapshot.
func (m *Message) Preview() string {
	const max = 120
	if len(m.Content) <= max {
		return m.Content
	}
	return m.Content[:max]
}
