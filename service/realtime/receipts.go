package realtime

import (
	"context"

	"CampusLink/module/community/model"
	errs "CampusLink/tools/errs"
)

// Receipts aggregates read and delivery acknowledgements: batch journal
// updates, the reader's chat cursor, and one message_status broadcast per
// batch instead of one per message.
type Receipts struct {
	s *Server
}

func NewReceipts(s *Server) *Receipts { return &Receipts{s: s} }

func (r *Receipts) requireParticipant(ctx context.Context, chatID, userID string) error {
	chat, err := r.s.chats.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !chat.HasParticipant(userID) {
		return errs.ErrAuthorization.WithDetail("not a participant of this chat")
	}
	return nil
}

// MarkRead records the reader against each message, advances the chat-level
// read cursor and broadcasts one batched message_status. Replays are
// absorbed by the store's set-union updates, so a duplicate batch costs a
// redundant broadcast at worst.
func (r *Receipts) MarkRead(ctx context.Context, userID string, p *MarkReadPayload) error {
	if err := r.requireParticipant(ctx, p.ChatID, userID); err != nil {
		return err
	}
	if err := r.s.msgs.AddReadBy(ctx, p.ChatID, p.MessageIDs, userID); err != nil {
		return err
	}
	if err := r.s.chats.MarkReadCursor(ctx, p.ChatID, userID, r.s.opts.Clock().UnixMilli()); err != nil {
		return err
	}
	return r.s.Broadcast(ChatRoom(p.ChatID), EventMessageStatus, &MessageStatusPayload{
		ChatID:     p.ChatID,
		MessageIDs: p.MessageIDs,
		Status:     model.MessageStatusRead,
		ActorID:    userID,
	})
}

// MarkDelivered is the lighter sibling: device received the payload but the
// user has not looked yet. Messages already read keep their status.
func (r *Receipts) MarkDelivered(ctx context.Context, userID string, p *MarkReadPayload) error {
	if err := r.requireParticipant(ctx, p.ChatID, userID); err != nil {
		return err
	}
	if err := r.s.msgs.AddDeliveredTo(ctx, p.ChatID, p.MessageIDs, userID); err != nil {
		return err
	}
	return r.s.Broadcast(ChatRoom(p.ChatID), EventMessageStatus, &MessageStatusPayload{
		ChatID:     p.ChatID,
		MessageIDs: p.MessageIDs,
		Status:     model.MessageStatusDelivered,
		ActorID:    userID,
	})
}
