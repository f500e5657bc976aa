package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"CampusLink/module/community/model"
	"CampusLink/service/storage"
	"CampusLink/tools/security"
	errs "CampusLink/tools/errs"
)

type fakeChats struct {
	mu       sync.Mutex
	chats    map[string]*model.Chat
	seqs     map[string]int64
	byUser   map[string][]string
	applied  []string // chat ids ApplyDelivery was called for
	readCur  map[string]int64
	failNext error
}

func newFakeChats() *fakeChats {
	return &fakeChats{
		chats:   make(map[string]*model.Chat),
		seqs:    make(map[string]int64),
		byUser:  make(map[string][]string),
		readCur: make(map[string]int64),
	}
}

func (f *fakeChats) addChat(chatID string, userIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &model.Chat{ChatID: chatID}
	for _, u := range userIDs {
		c.Participants = append(c.Participants, model.Participant{UserID: u})
		f.byUser[u] = append(f.byUser[u], chatID)
	}
	f.chats[chatID] = c
}

func (f *fakeChats) GetChat(_ context.Context, chatID string) (*model.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	c, ok := f.chats[chatID]
	if !ok {
		return nil, errs.ErrAuthorization.WithDetail("chat not found")
	}
	return c, nil
}

func (f *fakeChats) ChatIDsOf(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.byUser[userID]...), nil
}

func (f *fakeChats) NextSeq(_ context.Context, chatID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seqs[chatID]++
	return f.seqs[chatID], nil
}

func (f *fakeChats) ApplyDelivery(_ context.Context, chatID string, _ *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, chatID)
	return nil
}

func (f *fakeChats) MarkReadCursor(_ context.Context, chatID, userID string, at int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := chatID + "/" + userID
	if at > f.readCur[key] {
		f.readCur[key] = at
	}
	return nil
}

type fakeJournal struct {
	mu          sync.Mutex
	inserted    []*model.Message
	readBy      map[string][]string // messageID -> users
	deliveredTo map[string][]string
	failInsert  error
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{
		readBy:      make(map[string][]string),
		deliveredTo: make(map[string][]string),
	}
}

func (f *fakeJournal) Insert(_ context.Context, m *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert != nil {
		return f.failInsert
	}
	f.inserted = append(f.inserted, m)
	return nil
}

func addUnique(set []string, v string) []string {
	for _, s := range set {
		if s == v {
			return set
		}
	}
	return append(set, v)
}

func (f *fakeJournal) AddReadBy(_ context.Context, _ string, messageIDs []string, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range messageIDs {
		f.readBy[id] = addUnique(f.readBy[id], userID)
	}
	return nil
}

func (f *fakeJournal) AddDeliveredTo(_ context.Context, _ string, messageIDs []string, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range messageIDs {
		f.deliveredTo[id] = addUnique(f.deliveredTo[id], userID)
	}
	return nil
}

func (f *fakeJournal) ListAfterSeq(_ context.Context, chatID string, afterSeq int64, _ int64) ([]*model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Message
	for _, m := range f.inserted {
		if m.ChatID == chatID && m.Seq > afterSeq {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeMembers struct {
	roles   map[string][]string
	groups  map[string][]string
	threads map[string][]string
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{
		roles:   make(map[string][]string),
		groups:  make(map[string][]string),
		threads: make(map[string][]string),
	}
}

func (f *fakeMembers) RolesOf(_ context.Context, u string) ([]string, error) { return f.roles[u], nil }
func (f *fakeMembers) GroupsOf(_ context.Context, u string) ([]string, error) {
	return f.groups[u], nil
}
func (f *fakeMembers) ForumThreadsOf(_ context.Context, u string) ([]string, error) {
	return f.threads[u], nil
}

type fakePresence struct {
	mu    sync.Mutex
	state map[string]storage.UserPresence
}

func newFakePresence() *fakePresence {
	return &fakePresence{state: make(map[string]storage.UserPresence)}
}

func (f *fakePresence) SetOnline(_ context.Context, user string, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[user] = storage.UserPresence{UserID: user, Status: storage.StatusOnline, DeviceCount: n}
	return nil
}

func (f *fakePresence) SetAway(_ context.Context, user string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.state[user]
	p.UserID, p.Status = user, storage.StatusAway
	f.state[user] = p
	return nil
}

func (f *fakePresence) SetOffline(_ context.Context, user string, lastSeen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[user] = storage.UserPresence{UserID: user, Status: storage.StatusOffline, LastSeen: &lastSeen}
	return nil
}

func (f *fakePresence) SetDeviceCount(_ context.Context, user string, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.state[user]
	p.UserID, p.DeviceCount = user, n
	f.state[user] = p
	return nil
}

func (f *fakePresence) Get(_ context.Context, user string) (storage.UserPresence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.state[user]
	if !ok {
		return storage.UserPresence{UserID: user, Status: storage.StatusOffline}, nil
	}
	return p, nil
}

func (f *fakePresence) statusOf(user string) storage.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.state[user]
	if !ok {
		return storage.StatusOffline
	}
	return p.Status
}

type fakeVerifier struct {
	roles map[string]string // token -> "userID/role"; missing token fails
}

func (f *fakeVerifier) Verify(token string) (*security.Identity, error) {
	if id, ok := f.roles[token]; ok {
		user, role := id, ""
		for i := 0; i < len(id); i++ {
			if id[i] == '/' {
				user, role = id[:i], id[i+1:]
				break
			}
		}
		return &security.Identity{UserID: user, Role: role}, nil
	}
	return nil, errs.ErrAuthentication.WithDetail("bad token")
}

type testEnv struct {
	s        *Server
	chats    *fakeChats
	journal  *fakeJournal
	members  *fakeMembers
	pres     *fakePresence
	verifier *fakeVerifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		chats:    newFakeChats(),
		journal:  newFakeJournal(),
		members:  newFakeMembers(),
		pres:     newFakePresence(),
		verifier: &fakeVerifier{roles: map[string]string{}},
	}
	env.s = NewServer(Options{
		NodeID:       "test_01",
		PingInterval: time.Hour, // keep the sweeper quiet during tests
	}, env.chats, env.journal, env.members, env.pres, env.verifier)
	t.Cleanup(env.s.Close)
	return env
}

// connect registers a connection without a socket and subscribes it to the
// user's chat rooms, the way session rejoin would.
func (e *testEnv) connect(t *testing.T, userID string, chatIDs ...string) *WsConn {
	t.Helper()
	w, _ := e.s.registry.Register(nil, userID, "test")
	e.s.rooms.Subscribe(PersonalRoom(userID), w.ID, userID)
	for _, id := range chatIDs {
		e.s.rooms.Subscribe(ChatRoom(id), w.ID, userID)
	}
	return w
}

// recvFrames drains everything queued on the connection.
func recvFrames(t *testing.T, w *WsConn) []*Frame {
	t.Helper()
	var out []*Frame
	for {
		select {
		case raw := <-w.Send:
			var f Frame
			if err := json.Unmarshal(raw, &f); err != nil {
				t.Fatalf("bad frame on queue: %v", err)
			}
			out = append(out, &f)
		default:
			return out
		}
	}
}

func framesOfKind(fs []*Frame, kind EventKind) []*Frame {
	var out []*Frame
	for _, f := range fs {
		if f.Type == kind {
			out = append(out, f)
		}
	}
	return out
}

func decodePayload[T any](t *testing.T, f *Frame) *T {
	t.Helper()
	var out T
	if err := json.Unmarshal(f.Payload, &out); err != nil {
		t.Fatalf("decode %s payload: %v", f.Type, err)
	}
	return &out
}

// buildFrame assembles an inbound frame the way a client would.
func buildFrame(kind EventKind, payload any) (*Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Frame{Type: kind, Payload: raw}, nil
}

// waitFanoutDrain blocks until an async broadcast lands on the connection's
// queue, since the fanout pool delivers on its own goroutines.
func waitFanoutDrain(t *testing.T, s *Server, w *WsConn) {
	t.Helper()
	waitFrameCount(t, s, w, 1)
}

func waitFrameCount(t *testing.T, _ *Server, w *WsConn, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(w.Send) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("fewer than %d frames arrived on the send queue", n)
}
