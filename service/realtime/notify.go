package realtime

import (
	"context"
	"time"

	"CampusLink/logger"
	"CampusLink/service/natsx"
	"CampusLink/tools/decode"
	errs "CampusLink/tools/errs"
)

// NotifySubject is the ingress wildcard the CRUD services publish to, e.g.
// campuslink.notify.user, campuslink.notify.group.
const (
	NotifySubject    = "campuslink.notify.>"
	notifyQueueGroup = "realtime"
)

// NotifyTarget addresses a notification at one room.
type NotifyTarget struct {
	Kind string `json:"kind"` // personal | chat | role | group | forum
	Key  string `json:"key"`
}

// NotifyEvent is the broker payload for server-originated pushes: friend
// requests, group invites, announcements, forum replies.
type NotifyEvent struct {
	Target NotifyTarget   `json:"target"`
	Event  string         `json:"event"`
	Data   map[string]any `json:"data,omitempty"`
}

func (e *NotifyEvent) room() (RoomID, error) {
	kind := RoomKind(e.Target.Kind)
	switch kind {
	case RoomPersonal, RoomChat, RoomRole, RoomStudyGroup, RoomForum:
	default:
		return RoomID{}, errs.ErrValidation.WithDetail("bad notify target kind: " + e.Target.Kind)
	}
	if e.Target.Key == "" {
		return RoomID{}, errs.ErrValidation.WithDetail("notify target key required")
	}
	return RoomID{Kind: kind, Key: e.Target.Key}, nil
}

// Notify pushes a notify frame at the event's target room, best-effort.
func (s *Server) Notify(e *NotifyEvent) error {
	room, err := e.room()
	if err != nil {
		return err
	}
	if e.Event == "" {
		return errs.ErrValidation.WithDetail("notify event name required")
	}
	s.broadcastAsync(room, EventNotify, &NotifyPayload{Event: e.Event, Data: e.Data})
	return nil
}

// NotifyUser targets one user's personal room directly.
func (s *Server) NotifyUser(userID, event string, data map[string]any) error {
	return s.Notify(&NotifyEvent{
		Target: NotifyTarget{Kind: string(RoomPersonal), Key: userID},
		Event:  event,
		Data:   data,
	})
}

// BindNotifyIngress subscribes the server to the notify subject as a queue
// member, so horizontally scaled CRUD services reach connected clients
// without knowing about sockets.
func (s *Server) BindNotifyIngress(nc *natsx.NatsxClient) error {
	handler := func(ctx context.Context, msg natsx.NatsxMessage) error {
		ev, err := decode.DecodeJSON[NotifyEvent](msg.Data)
		if err != nil {
			logger.Warnf("notify: undecodable payload on %s: %v", msg.Subject, err)
			return nil // poison message, do not redeliver
		}
		if err := s.Notify(ev); err != nil {
			logger.Warnf("notify: drop event on %s: %v", msg.Subject, err)
		}
		return nil
	}
	return nc.Subscribe(NotifySubject, notifyQueueGroup, handler, notifyLogging())
}

func notifyLogging() natsx.NatsxMiddleware {
	return func(next natsx.NatsxHandler) natsx.NatsxHandler {
		return func(ctx context.Context, msg natsx.NatsxMessage) error {
			start := time.Now()
			err := next(ctx, msg)
			logger.Debugf("notify: %s handled in %s", msg.Subject, time.Since(start))
			return err
		}
	}
}
