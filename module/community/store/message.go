package store

import (
	"context"

	"CampusLink/module/community/model"
	errs "CampusLink/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageStore is the append journal. Receipt updates are set-union style
// ($addToSet) with the forward-only status guard in the filter, so two
// concurrent readers can never regress a message's status or lose an entry.
type MessageStore struct {
	coll *mongo.Collection
}

func NewMessageStore(db *mongo.Database) *MessageStore {
	return &MessageStore{coll: db.Collection(model.MessageCollection)}
}

func (s *MessageStore) Insert(ctx context.Context, m *model.Message) error {
	if _, err := s.coll.InsertOne(ctx, m); err != nil {
		return errs.ErrPersistence.WithDetail(err.Error())
	}
	return nil
}

// AddReadBy unions the reader into read_by on all target messages, then
// advances sent/delivered messages to read. Both updates are idempotent.
func (s *MessageStore) AddReadBy(ctx context.Context, chatID string, messageIDs []string, userID string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	sel := bson.M{
		model.MessageFieldChatID:    chatID,
		model.MessageFieldMessageID: bson.M{"$in": messageIDs},
	}
	if _, err := s.coll.UpdateMany(ctx, sel,
		bson.M{"$addToSet": bson.M{model.MessageFieldReadBy: userID}},
	); err != nil {
		return errs.ErrPersistence.WithDetail(err.Error())
	}

	fwd := bson.M{
		model.MessageFieldChatID:    chatID,
		model.MessageFieldMessageID: bson.M{"$in": messageIDs},
		model.MessageFieldStatus:    bson.M{"$in": []string{model.MessageStatusSent, model.MessageStatusDelivered}},
	}
	if _, err := s.coll.UpdateMany(ctx, fwd,
		bson.M{"$set": bson.M{model.MessageFieldStatus: model.MessageStatusRead}},
	); err != nil {
		return errs.ErrPersistence.WithDetail(err.Error())
	}
	return nil
}

// AddDeliveredTo unions the receiver into delivered_to and advances sent
// messages to delivered. Messages already read stay read.
func (s *MessageStore) AddDeliveredTo(ctx context.Context, chatID string, messageIDs []string, userID string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	sel := bson.M{
		model.MessageFieldChatID:    chatID,
		model.MessageFieldMessageID: bson.M{"$in": messageIDs},
	}
	if _, err := s.coll.UpdateMany(ctx, sel,
		bson.M{"$addToSet": bson.M{model.MessageFieldDeliveredTo: userID}},
	); err != nil {
		return errs.ErrPersistence.WithDetail(err.Error())
	}

	fwd := bson.M{
		model.MessageFieldChatID:    chatID,
		model.MessageFieldMessageID: bson.M{"$in": messageIDs},
		model.MessageFieldStatus:    model.MessageStatusSent,
	}
	if _, err := s.coll.UpdateMany(ctx, fwd,
		bson.M{"$set": bson.M{model.MessageFieldStatus: model.MessageStatusDelivered}},
	); err != nil {
		return errs.ErrPersistence.WithDetail(err.Error())
	}
	return nil
}

// ListAfterSeq is the catch-up read: messages a client missed while offline,
// in append order.
func (s *MessageStore) ListAfterSeq(ctx context.Context, chatID string, afterSeq int64, limit int64) ([]*model.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	cur, err := s.coll.Find(ctx, bson.M{
		model.MessageFieldChatID: chatID,
		model.MessageFieldSeq:    bson.M{"$gt": afterSeq},
	}, options.Find().SetSort(bson.M{model.MessageFieldSeq: 1}).SetLimit(limit))
	if err != nil {
		return nil, errs.ErrPersistence.WithDetail(err.Error())
	}
	defer cur.Close(ctx)

	var out []*model.Message
	for cur.Next(ctx) {
		var m model.Message
		if err := cur.Decode(&m); err != nil {
			continue
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, errs.ErrPersistence.WithDetail(err.Error())
	}
	return out, nil
}
