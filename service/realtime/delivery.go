package realtime

import (
	"context"
	"sync"

	"CampusLink/logger"
	"CampusLink/module/community/model"
	errs "CampusLink/tools/errs"
	"CampusLink/tools/ids"
)

// keyedMutex serializes work per chat id. Locks are created on first use and
// never reclaimed; the set of active chats on one node stays small enough
// that reclamation is not worth the bookkeeping.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) *sync.Mutex {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m
}

// Delivery runs the persist-then-broadcast pipeline. The per-chat lock makes
// seq assignment, journal insert and the ordered broadcast one critical
// section, so receivers observe messages in seq order per chat.
type Delivery struct {
	s     *Server
	chats *keyedMutex
}

func NewDelivery(s *Server) *Delivery {
	return &Delivery{s: s, chats: newKeyedMutex()}
}

// Send validates membership, persists the message and broadcasts new_message
// to the chat room, sender's connections included (multi-device echo). The
// correlation token is echoed untouched so the sender's client can reconcile
// its optimistic entry. Persistence failure means no broadcast at all.
func (d *Delivery) Send(ctx context.Context, senderID string, p *SendMessagePayload) (*model.Message, error) {
	chat, err := d.s.chats.GetChat(ctx, p.ChatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(senderID) {
		return nil, errs.ErrAuthorization.WithDetail("not a participant of this chat")
	}

	mu := d.chats.lock(p.ChatID)
	defer mu.Unlock()

	seq, err := d.s.chats.NextSeq(ctx, p.ChatID)
	if err != nil {
		return nil, err
	}
	msg := &model.Message{
		MessageID:   ids.GenerateString(),
		ChatID:      p.ChatID,
		SenderID:    senderID,
		Content:     p.Content,
		Media:       p.Media,
		Status:      model.MessageStatusSent,
		ReadBy:      []string{},
		DeliveredTo: []string{},
		Seq:         seq,
		ReplyTo:     p.ReplyTo,
		CreatedAt:   d.s.opts.Clock().UnixMilli(),
	}
	if err := d.s.msgs.Insert(ctx, msg); err != nil {
		return nil, err
	}
	if err := d.s.chats.ApplyDelivery(ctx, p.ChatID, msg); err != nil {
		// message is durable; unread counters will self-correct on next read
		logger.Warnf("delivery: apply side effects for chat %s: %v", p.ChatID, err)
	}

	if err := d.s.Broadcast(ChatRoom(p.ChatID), EventNewMessage, &NewMessagePayload{
		ChatID:           p.ChatID,
		Message:          msg,
		CorrelationToken: p.CorrelationToken,
	}); err != nil {
		logger.Errorf("delivery: broadcast chat %s: %v", p.ChatID, err)
	}
	return msg, nil
}
