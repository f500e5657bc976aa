package realtime

import (
	"context"
	"time"

	"CampusLink/module/community/model"
	"CampusLink/service/storage"
	"CampusLink/tools/security"
)

// Store contracts the coordinator depends on. The concrete Mongo and Redis
// stores satisfy them; tests swap in-memory fakes.

type ChatDirectory interface {
	GetChat(ctx context.Context, chatID string) (*model.Chat, error)
	ChatIDsOf(ctx context.Context, userID string) ([]string, error)
	NextSeq(ctx context.Context, chatID string) (int64, error)
	ApplyDelivery(ctx context.Context, chatID string, msg *model.Message) error
	MarkReadCursor(ctx context.Context, chatID, userID string, at int64) error
}

type MessageJournal interface {
	Insert(ctx context.Context, m *model.Message) error
	AddReadBy(ctx context.Context, chatID string, messageIDs []string, userID string) error
	AddDeliveredTo(ctx context.Context, chatID string, messageIDs []string, userID string) error
	ListAfterSeq(ctx context.Context, chatID string, afterSeq int64, limit int64) ([]*model.Message, error)
}

type MembershipDirectory interface {
	RolesOf(ctx context.Context, userID string) ([]string, error)
	GroupsOf(ctx context.Context, userID string) ([]string, error)
	ForumThreadsOf(ctx context.Context, userID string) ([]string, error)
}

type PresenceStore interface {
	SetOnline(ctx context.Context, user string, deviceCount int) error
	SetAway(ctx context.Context, user string) error
	SetOffline(ctx context.Context, user string, lastSeen time.Time) error
	SetDeviceCount(ctx context.Context, user string, deviceCount int) error
	Get(ctx context.Context, user string) (storage.UserPresence, error)
}

type Verifier interface {
	Verify(token string) (*security.Identity, error)
}
