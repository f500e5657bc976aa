package api

import (
	"net/http"
	"strconv"

	"CampusLink/middleware"
	"CampusLink/service/realtime"
	errs "CampusLink/tools/errs"

	"github.com/gin-gonic/gin"
)

// HistoryAPI serves the catch-up fetch: messages a client missed while
// disconnected (or dropped from a full send queue), keyed by the chat's
// append order.
type HistoryAPI struct {
	chats realtime.ChatDirectory
	msgs  realtime.MessageJournal
}

func NewHistoryAPI(chats realtime.ChatDirectory, msgs realtime.MessageJournal) *HistoryAPI {
	return &HistoryAPI{chats: chats, msgs: msgs}
}

func (a *HistoryAPI) Register(r gin.IRoutes) {
	r.GET("/chats/:id/messages", a.listMessages)
}

// GET /chats/:id/messages?afterSeq=N&limit=M
func (a *HistoryAPI) listMessages(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserID)
	chatID := c.Param("id")

	afterSeq, err := strconv.ParseInt(c.DefaultQuery("afterSeq", "0"), 10, 64)
	if err != nil || afterSeq < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "afterSeq must be a non-negative integer"})
		return
	}
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "100"), 10, 64)

	chat, err := a.chats.GetChat(c.Request.Context(), chatID)
	if err != nil {
		a.fail(c, err)
		return
	}
	if !chat.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a participant of this chat"})
		return
	}

	msgs, err := a.msgs.ListAfterSeq(c.Request.Context(), chatID, afterSeq, limit)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"chatId":   chatID,
		"afterSeq": afterSeq,
		"messages": msgs,
	})
}

func (a *HistoryAPI) fail(c *gin.Context, err error) {
	switch errs.CodeOf(err) {
	case errs.CodeAuthorization:
		c.JSON(http.StatusForbidden, gin.H{"error": errs.MsgOf(err)})
	case errs.CodeValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": errs.MsgOf(err)})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": errs.MsgOf(err)})
	}
}
