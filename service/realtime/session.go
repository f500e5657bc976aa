package realtime

import (
	"context"
	"sort"

	"CampusLink/logger"
	errs "CampusLink/tools/errs"

	"github.com/gorilla/websocket"
)

// Authenticate runs the post-upgrade handshake: verify the token, register
// the connection, rebuild the user's full room set and emit auth_ack. Every
// (re)connect recomputes rooms from scratch; there is no delta resubscribe,
// so a membership change between sessions heals itself on the next connect.
func (s *Server) Authenticate(sock *websocket.Conn, p *AuthPayload) (*WsConn, error) {
	ident, err := s.verifier.Verify(p.Token)
	if err != nil {
		return nil, errs.ErrAuthentication.WithDetail(err.Error())
	}

	ctx := context.Background()
	w, first := s.registry.Register(sock, ident.UserID, p.Device)

	rooms, err := s.computeRooms(ctx, ident.UserID, ident.Role)
	if err != nil {
		// roll the registration back; the client retries with a clean slate
		s.registry.Unregister(w.ID)
		return nil, err
	}
	for _, room := range rooms {
		s.rooms.Subscribe(room, w.ID, ident.UserID)
	}

	changed, pres := s.presence.HandleConnect(ctx, ident.UserID, s.registry.DeviceCount(ident.UserID))
	if changed || first {
		s.broadcastPresence(s.rooms.RoomsOfUser(ident.UserID, RoomChat), pres)
	}

	names := make([]string, len(rooms))
	for i, room := range rooms {
		names[i] = room.String()
	}
	s.sendTo(w, EventAuthAck, &AuthAckPayload{UserID: ident.UserID, ConnID: w.ID, Rooms: names})
	logger.Infof("realtime: conn %s authenticated as %s (%d rooms, first=%v)", w.ID, ident.UserID, len(rooms), first)
	return w, nil
}

// computeRooms assembles the rejoin set: the personal room, one room per
// chat, the role rooms (token claim unioned with stored role memberships)
// and the stored group and forum subscriptions.
func (s *Server) computeRooms(ctx context.Context, userID, role string) ([]RoomID, error) {
	seen := make(map[RoomID]struct{})
	var out []RoomID
	add := func(room RoomID) {
		if _, ok := seen[room]; ok {
			return
		}
		seen[room] = struct{}{}
		out = append(out, room)
	}

	add(PersonalRoom(userID))

	chatIDs, err := s.chats.ChatIDsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, id := range chatIDs {
		add(ChatRoom(id))
	}

	if role != "" {
		add(RoleRoom(role))
	}
	roles, err := s.members.RolesOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		add(RoleRoom(r))
	}

	groups, err := s.members.GroupsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		add(GroupRoom(g))
	}

	threads, err := s.members.ForumThreadsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, t := range threads {
		add(ForumRoom(t))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}
