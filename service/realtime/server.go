package realtime

import (
	"context"
	"time"

	"CampusLink/logger"
	"CampusLink/service/storage"
	errs "CampusLink/tools/errs"
)

type Options struct {
	NodeID        string
	PingInterval  time.Duration // transport ping period; away derives from it
	PongWait      time.Duration // read deadline extension per pong
	AuthTimeout   time.Duration // handshake budget before the socket is dropped
	SendQueue     int
	FanoutWorkers int
	FanoutQueue   int
	Clock         func() time.Time
}

func (o *Options) norm() {
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = o.PingInterval * 2
	}
	if o.AuthTimeout <= 0 {
		o.AuthTimeout = 30 * time.Second
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 256
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// Server is the realtime coordinator: it owns the connection registry, room
// table, typing state and presence tracker, and pushes every outbound frame
// through per-connection send queues.
type Server struct {
	opts Options

	registry *Registry
	rooms    *Rooms
	typing   *TypingTracker
	fanout   *Fanout
	presence *PresenceTracker
	delivery *Delivery
	receipts *Receipts
	disp     *Dispatcher

	chats    ChatDirectory
	msgs     MessageJournal
	members  MembershipDirectory
	verifier Verifier
}

func NewServer(opts Options, chats ChatDirectory, msgs MessageJournal, members MembershipDirectory, pres PresenceStore, verifier Verifier) *Server {
	opts.norm()
	s := &Server{
		opts:     opts,
		rooms:    NewRooms(),
		typing:   NewTypingTracker(),
		fanout:   NewFanout(opts.FanoutWorkers, opts.FanoutQueue),
		presence: NewPresenceTracker(pres, opts.Clock),
		chats:    chats,
		msgs:     msgs,
		members:  members,
		verifier: verifier,
	}
	s.registry = NewRegistry(RegistryConf{
		ProbeInterval: opts.PingInterval,
		SendQueue:     opts.SendQueue,
		Clock:         opts.Clock,
	})
	s.registry.SetCallbacks(s.onEvict, s.onIdle, s.onActive)
	s.delivery = NewDelivery(s)
	s.receipts = NewReceipts(s)
	s.disp = NewDispatcher()
	s.disp.Register(
		&pingHandler{},
		&sendMessageHandler{},
		&typingHandler{},
		&markReadHandler{},
		&markDeliveredHandler{},
		&joinRoomHandler{},
		&leaveRoomHandler{},
	)
	return s
}

// connsOf resolves a room to live connection handles, skipping excluded
// users. Deterministic order: sorted users, then sorted handles per user.
func (s *Server) connsOf(room RoomID, exclude ...string) []*WsConn {
	skip := make(map[string]struct{}, len(exclude))
	for _, u := range exclude {
		skip[u] = struct{}{}
	}
	var out []*WsConn
	for _, userID := range s.rooms.MembersOf(room) {
		if _, ok := skip[userID]; ok {
			continue
		}
		out = append(out, s.registry.HandlesFor(userID)...)
	}
	return out
}

// Broadcast pushes the frame onto the room's send queues synchronously, in
// caller order. The delivery pipeline relies on this for per-chat ordering;
// everything best-effort goes through broadcastAsync instead.
func (s *Server) Broadcast(room RoomID, kind EventKind, payload any, exclude ...string) error {
	raw, err := EncodeFrame(kind, payload)
	if err != nil {
		return err
	}
	for _, c := range s.connsOf(room, exclude...) {
		c.Enqueue(raw)
	}
	return nil
}

func (s *Server) broadcastAsync(room RoomID, kind EventKind, payload any, exclude ...string) {
	raw, err := EncodeFrame(kind, payload)
	if err != nil {
		logger.Errorf("realtime: encode %s: %v", kind, err)
		return
	}
	s.fanout.Broadcast(s.connsOf(room, exclude...), raw)
}

func (s *Server) sendTo(w *WsConn, kind EventKind, payload any) {
	raw, err := EncodeFrame(kind, payload)
	if err != nil {
		logger.Errorf("realtime: encode %s: %v", kind, err)
		return
	}
	w.Enqueue(raw)
}

// sendError maps any error onto the wire error frame via the code taxonomy.
func (s *Server) sendError(w *WsConn, err error) {
	s.sendTo(w, EventError, &ErrorPayload{Code: errs.CodeOf(err), Message: errs.MsgOf(err)})
}

// HandleFrame parses and dispatches one inbound frame, reporting failures to
// the originating connection only.
func (s *Server) HandleFrame(w *WsConn, raw []byte) {
	f, err := ParseFrame(raw)
	if err != nil {
		s.sendError(w, err)
		return
	}
	if err := s.disp.Dispatch(&Context{S: s, Conn: w}, f); err != nil {
		logger.Warnf("realtime: %s from conn %s: %v", f.Type, w.ID, err)
		s.sendError(w, err)
	}
}

// disconnect tears one connection down: registry, rooms, typing, presence,
// in that order. The chat rooms are captured before DropConn so offline
// broadcasts still know who the user's contacts are.
func (s *Server) disconnect(w *WsConn) {
	gone, last := s.registry.Unregister(w.ID)
	if gone == nil {
		return
	}
	ctx := context.Background()
	chatRooms := s.rooms.RoomsOfUser(w.UserID, RoomChat)
	s.rooms.DropConn(w.ID)

	if last {
		for chatID, remaining := range s.typing.ClearUser(w.UserID) {
			s.broadcastAsync(ChatRoom(chatID), EventUserTyping, &UserTypingPayload{
				ChatID:        chatID,
				UserID:        w.UserID,
				IsTyping:      false,
				CurrentTypers: remaining,
			})
		}
	}

	changed, pres := s.presence.HandleDisconnect(ctx, w.UserID, s.registry.DeviceCount(w.UserID), last)
	if changed {
		s.broadcastPresence(chatRooms, pres)
	}
	logger.Infof("realtime: conn %s user %s closed (last=%v)", w.ID, w.UserID, last)
}

// broadcastPresence emits user_status to each chat room the user belongs to.
// Contacts outside any shared chat never learn the user's status.
func (s *Server) broadcastPresence(chatRooms []RoomID, pres storage.UserPresence) {
	payload := &UserStatusPayload{
		UserID:      pres.UserID,
		Status:      pres.Status,
		DeviceCount: pres.DeviceCount,
	}
	if pres.LastSeen != nil {
		ms := pres.LastSeen.UnixMilli()
		payload.LastSeen = &ms
	}
	for _, room := range chatRooms {
		s.broadcastAsync(room, EventUserStatus, payload)
	}
}

func (s *Server) onEvict(w *WsConn) {
	logger.Warnf("realtime: evicting stale conn %s user %s", w.ID, w.UserID)
	if w.Conn != nil {
		_ = w.Conn.Close() // unblocks the read loop, which runs disconnect
	}
	s.disconnect(w)
}

func (s *Server) onIdle(userID string) {
	changed, pres := s.presence.MarkAway(context.Background(), userID, s.registry.DeviceCount(userID))
	if changed {
		s.broadcastPresence(s.rooms.RoomsOfUser(userID, RoomChat), pres)
	}
}

func (s *Server) onActive(userID string) {
	changed, pres := s.presence.MarkActive(context.Background(), userID, s.registry.DeviceCount(userID))
	if changed {
		s.broadcastPresence(s.rooms.RoomsOfUser(userID, RoomChat), pres)
	}
}

func (s *Server) Close() {
	s.registry.Close()
	s.fanout.Close()
}
