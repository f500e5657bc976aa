package model

// ===== collections & field names =====

const (
	ChatCollection = "chats"

	ChatFieldChatID       = "chat_id"
	ChatFieldKind         = "kind"
	ChatFieldParticipants = "participants"
	ChatFieldLastMessage  = "last_message"
	ChatFieldMaxSeq       = "max_seq"
	ChatFieldCreatedAt    = "created_at"
	ChatFieldUpdatedAt    = "updated_at"

	ParticipantFieldUserID      = "user_id"
	ParticipantFieldLastReadAt  = "last_read_at"
	ParticipantFieldUnreadCount = "unread_count"
)

// Participant is a user's entry inside a chat document. The unread counter
// and read cursor are only ever mutated through positional $inc / $set with
// array filters, never whole-document rewrites.
type Participant struct {
	UserID      string `bson:"user_id" json:"userId"`
	LastReadAt  int64  `bson:"last_read_at" json:"lastReadAt"` // Unix ms, 0 = never
	UnreadCount int64  `bson:"unread_count" json:"unreadCount"`
}

// MessageRef is the denormalized "last message" snapshot on a chat.
type MessageRef struct {
	MessageID string `bson:"message_id" json:"messageId"`
	SenderID  string `bson:"sender_id" json:"senderId"`
	Preview   string `bson:"preview" json:"preview"`
	SentAt    int64  `bson:"sent_at" json:"sentAt"`
}

// Chat is owned by the community CRUD subsystem; the coordinator reads the
// participant list to build rooms and writes last_message / unread counters
// as a side effect of delivery.
type Chat struct {
	ChatID       string        `bson:"chat_id" json:"chatId"`
	Kind         string        `bson:"kind" json:"kind"` // direct / group
	Participants []Participant `bson:"participants" json:"participants"`
	LastMessage  *MessageRef   `bson:"last_message,omitempty" json:"lastMessage,omitempty"`
	MaxSeq       int64         `bson:"max_seq" json:"maxSeq"` // per-chat append cursor
	CreatedAt    int64         `bson:"created_at" json:"createdAt"`
	UpdatedAt    int64         `bson:"updated_at" json:"updatedAt"`
}

func (c *Chat) HasParticipant(userID string) bool {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return true
		}
	}
	return false
}
