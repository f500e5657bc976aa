package model

const (
	MembershipCollection = "memberships"

	MembershipFieldUserID = "user_id"
	MembershipFieldKind   = "kind"
	MembershipFieldKey    = "key"
)

// Membership kinds mirror the durable records owned by the community CRUD
// subsystem; the coordinator only reads them to compute a user's room set.
const (
	MembershipRole       = "role"
	MembershipStudyGroup = "study_group"
	MembershipForum      = "forum_thread"
)

// Membership is one durable subscription record: user X holds role Y, or is
// subscribed to study group / forum thread Y.
type Membership struct {
	UserID    string `bson:"user_id" json:"userId"`
	Kind      string `bson:"kind" json:"kind"`
	Key       string `bson:"key" json:"key"`
	CreatedAt int64  `bson:"created_at" json:"createdAt"`
}
