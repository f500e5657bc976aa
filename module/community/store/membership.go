package store

import (
	"context"

	"CampusLink/module/community/model"
	errs "CampusLink/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MembershipStore reads the durable role / group / forum subscription
// records owned by the CRUD subsystem. Session rejoin re-queries these in
// full on every (re)connect; no delta resubscription is attempted.
type MembershipStore struct {
	coll *mongo.Collection
}

func NewMembershipStore(db *mongo.Database) *MembershipStore {
	return &MembershipStore{coll: db.Collection(model.MembershipCollection)}
}

func (s *MembershipStore) keysOf(ctx context.Context, userID, kind string) ([]string, error) {
	cur, err := s.coll.Find(ctx, bson.M{
		model.MembershipFieldUserID: userID,
		model.MembershipFieldKind:   kind,
	}, options.Find().SetProjection(bson.M{model.MembershipFieldKey: 1}))
	if err != nil {
		return nil, errs.ErrPersistence.WithDetail(err.Error())
	}
	defer cur.Close(ctx)

	var out []string
	for cur.Next(ctx) {
		var m model.Membership
		if err := cur.Decode(&m); err != nil {
			continue
		}
		out = append(out, m.Key)
	}
	if err := cur.Err(); err != nil {
		return nil, errs.ErrPersistence.WithDetail(err.Error())
	}
	return out, nil
}

func (s *MembershipStore) RolesOf(ctx context.Context, userID string) ([]string, error) {
	return s.keysOf(ctx, userID, model.MembershipRole)
}

func (s *MembershipStore) GroupsOf(ctx context.Context, userID string) ([]string, error) {
	return s.keysOf(ctx, userID, model.MembershipStudyGroup)
}

func (s *MembershipStore) ForumThreadsOf(ctx context.Context, userID string) ([]string, error) {
	return s.keysOf(ctx, userID, model.MembershipForum)
}
