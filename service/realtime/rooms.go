package realtime

import (
	"sort"
	"sync"
)

// RoomKind plus key forms a typed room id, so a chat room and a role
// broadcast room sharing a numeric key can never collide.
type RoomKind string

const (
	RoomPersonal   RoomKind = "personal"
	RoomChat       RoomKind = "chat"
	RoomRole       RoomKind = "role"
	RoomStudyGroup RoomKind = "group"
	RoomForum      RoomKind = "forum"
)

type RoomID struct {
	Kind RoomKind
	Key  string
}

func (r RoomID) String() string { return string(r.Kind) + ":" + r.Key }

func PersonalRoom(userID string) RoomID { return RoomID{Kind: RoomPersonal, Key: userID} }
func ChatRoom(chatID string) RoomID { return RoomID{Kind: RoomChat, Key: chatID} }
func RoleRoom(role string) RoomID { return RoomID{Kind: RoomRole, Key: role} }
func GroupRoom(groupID string) RoomID { return RoomID{Kind: RoomStudyGroup, Key: groupID} }
func ForumRoom(threadID string) RoomID { return RoomID{Kind: RoomForum, Key: threadID} }

// Rooms maps room ids to subscribed connections. All state is memory of this
// one process; multi-instance fan-out is explicitly out of scope, so there is
// no external broker behind the table.
type Rooms struct {
	mu      sync.RWMutex
	members map[RoomID]map[string]string   // room -> connID -> userID
	byConn  map[string]map[RoomID]struct{} // connID -> rooms
	byUser  map[string]map[RoomID]int      // userID -> room -> conn refcount
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[RoomID]map[string]string),
		byConn:  make(map[string]map[RoomID]struct{}),
		byUser:  make(map[string]map[RoomID]int),
	}
}

func (r *Rooms) Subscribe(room RoomID, connID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.members[room]
	if m == nil {
		m = make(map[string]string)
		r.members[room] = m
	}
	if _, ok := m[connID]; ok {
		return
	}
	m[connID] = userID

	cr := r.byConn[connID]
	if cr == nil {
		cr = make(map[RoomID]struct{})
		r.byConn[connID] = cr
	}
	cr[room] = struct{}{}

	ur := r.byUser[userID]
	if ur == nil {
		ur = make(map[RoomID]int)
		r.byUser[userID] = ur
	}
	ur[room]++
}

func (r *Rooms) Unsubscribe(room RoomID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unsubscribeLocked(room, connID)
}

func (r *Rooms) unsubscribeLocked(room RoomID, connID string) {
	m := r.members[room]
	if m == nil {
		return
	}
	userID, ok := m[connID]
	if !ok {
		return
	}
	delete(m, connID)
	if len(m) == 0 {
		delete(r.members, room)
	}
	if cr := r.byConn[connID]; cr != nil {
		delete(cr, room)
		if len(cr) == 0 {
			delete(r.byConn, connID)
		}
	}
	if ur := r.byUser[userID]; ur != nil {
		ur[room]--
		if ur[room] <= 0 {
			delete(ur, room)
		}
		if len(ur) == 0 {
			delete(r.byUser, userID)
		}
	}
}

// DropConn removes the connection from every room it joined; called on
// disconnect teardown.
func (r *Rooms) DropConn(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range r.byConn[connID] {
		r.unsubscribeLocked(room, connID)
	}
}

// MembersOf resolves a room to its distinct user identities, sorted for
// deterministic fan-out order.
func (r *Rooms) MembersOf(room RoomID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m := r.members[room]
	if len(m) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(m))
	out := make([]string, 0, len(m))
	for _, userID := range m {
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		out = append(out, userID)
	}
	sort.Strings(out)
	return out
}

// RoomsOfUser lists the rooms of one kind the user is currently subscribed
// to; used to address presence broadcasts at the user's contacts.
func (r *Rooms) RoomsOfUser(userID string, kind RoomKind) []RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []RoomID
	for room := range r.byUser[userID] {
		if room.Kind == kind {
			out = append(out, room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
