package store

import (
	"context"
	"time"

	"CampusLink/module/community/model"
	errs "CampusLink/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ChatStore reads chat participant state and applies the delivery side
// effects. Every write is an atomic field operation; the coordinator never
// rewrites a chat document wholesale.
type ChatStore struct {
	coll *mongo.Collection
}

func NewChatStore(db *mongo.Database) *ChatStore {
	return &ChatStore{coll: db.Collection(model.ChatCollection)}
}

func (s *ChatStore) GetChat(ctx context.Context, chatID string) (*model.Chat, error) {
	var out model.Chat
	err := s.coll.FindOne(ctx, bson.M{model.ChatFieldChatID: chatID}).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return nil, errs.ErrAuthorization.WithDetail("chat not found")
	}
	if err != nil {
		return nil, errs.ErrPersistence.WithDetail(err.Error())
	}
	return &out, nil
}

func (s *ChatStore) GetParticipants(ctx context.Context, chatID string) ([]model.Participant, error) {
	c, err := s.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return c.Participants, nil
}

// ChatIDsOf lists every chat the user participates in, for room computation
// during session rejoin.
func (s *ChatStore) ChatIDsOf(ctx context.Context, userID string) ([]string, error) {
	proj := options.Find().SetProjection(bson.M{model.ChatFieldChatID: 1})
	cur, err := s.coll.Find(ctx, bson.M{
		model.ChatFieldParticipants + "." + model.ParticipantFieldUserID: userID,
	}, proj)
	if err != nil {
		return nil, errs.ErrPersistence.WithDetail(err.Error())
	}
	defer cur.Close(ctx)

	var out []string
	for cur.Next(ctx) {
		var c model.Chat
		if err := cur.Decode(&c); err != nil {
			continue
		}
		out = append(out, c.ChatID)
	}
	if err := cur.Err(); err != nil {
		return nil, errs.ErrPersistence.WithDetail(err.Error())
	}
	return out, nil
}

// NextSeq advances the chat's append cursor and returns the new value. One
// $inc round trip per message gives a single authoritative order per chat.
func (s *ChatStore) NextSeq(ctx context.Context, chatID string) (int64, error) {
	res := s.coll.FindOneAndUpdate(ctx,
		bson.M{model.ChatFieldChatID: chatID},
		bson.M{"$inc": bson.M{model.ChatFieldMaxSeq: 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var out model.Chat
	if err := res.Decode(&out); err != nil {
		return 0, errs.ErrPersistence.WithDetail(err.Error())
	}
	return out.MaxSeq, nil
}

// ApplyDelivery sets last_message and bumps unread_count for every
// participant other than the sender, in one update with an array filter.
func (s *ChatStore) ApplyDelivery(ctx context.Context, chatID string, msg *model.Message) error {
	now := time.Now().UnixMilli()
	ref := model.MessageRef{
		MessageID: msg.MessageID,
		SenderID:  msg.SenderID,
		Preview:   msg.Preview(),
		SentAt:    msg.CreatedAt,
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.M{model.ChatFieldChatID: chatID},
		bson.M{
			"$set": bson.M{
				model.ChatFieldLastMessage: ref,
				model.ChatFieldUpdatedAt:   now,
			},
			"$inc": bson.M{
				model.ChatFieldParticipants + ".$[p]." + model.ParticipantFieldUnreadCount: 1,
			},
		},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"p." + model.ParticipantFieldUserID: bson.M{"$ne": msg.SenderID}},
			},
		}),
	)
	if err != nil {
		return errs.ErrPersistence.WithDetail(err.Error())
	}
	return nil
}

// MarkReadCursor advances the reader's last_read_at and zeroes their unread
// counter. $max keeps the cursor monotonic under concurrent mark_read calls.
func (s *ChatStore) MarkReadCursor(ctx context.Context, chatID, userID string, at int64) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{model.ChatFieldChatID: chatID},
		bson.M{
			"$max": bson.M{
				model.ChatFieldParticipants + ".$[p]." + model.ParticipantFieldLastReadAt: at,
			},
			"$set": bson.M{
				model.ChatFieldParticipants + ".$[p]." + model.ParticipantFieldUnreadCount: 0,
				model.ChatFieldUpdatedAt: time.Now().UnixMilli(),
			},
		},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"p." + model.ParticipantFieldUserID: userID},
			},
		}),
	)
	if err != nil {
		return errs.ErrPersistence.WithDetail(err.Error())
	}
	return nil
}
