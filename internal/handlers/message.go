package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/conversations"
	"messaging-service/internal/messages"
	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/notify"
	"messaging-service/internal/ws"
)

// MessageHandler manages the message ledger endpoints.
type MessageHandler struct {
	ledger       *messages.Ledger
	convs        *conversations.Service
	hub          *ws.Hub
	emitter      *notify.Emitter
	storeTimeout time.Duration
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(ledger *messages.Ledger, convs *conversations.Service, hub *ws.Hub, emitter *notify.Emitter, storeTimeout time.Duration) *MessageHandler {
	return &MessageHandler{ledger: ledger, convs: convs, hub: hub, emitter: emitter, storeTimeout: storeTimeout}
}

// List returns a newest-first page of messages as seen by the caller.
func (h *MessageHandler) List(c *gin.Context) {
	who := middleware.Identity(c)
	conversationID := c.Param("conversation_id")
	limit, offset := pagination(c)

	ctx, cancel := storeScope(c, h.storeTimeout)
	defer cancel()

	msgs, err := h.ledger.List(ctx, conversationID, who, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	fields := fieldsParam(c)
	out := make([]any, 0, len(msgs))
	for i := range msgs {
		out = append(out, projectFields(msgs[i], fields))
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

// Post appends a message, broadcasts it and emits a best-effort email event.
func (h *MessageHandler) Post(c *gin.Context) {
	who := middleware.Identity(c)
	conversationID := c.Param("conversation_id")

	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := storeScope(c, h.storeTimeout)
	defer cancel()

	msg, conv, err := h.ledger.Append(ctx, conversationID, who, req.Body)
	if err != nil {
		writeError(c, err)
		return
	}

	h.hub.Broadcast(conv.Participants, models.Event{
		Type:           models.EventMessageNew,
		ConversationID: conv.ID,
		Conversation:   &conv,
		Message:        &msg,
	})
	notifyRecipients(h.emitter, conv, who)

	c.JSON(http.StatusCreated, msg)
}

// MarkRead bulk-marks the conversation read for the caller and broadcasts.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	who := middleware.Identity(c)
	conversationID := c.Param("conversation_id")

	ctx, cancel := storeScope(c, h.storeTimeout)
	defer cancel()

	if err := h.ledger.MarkRead(ctx, conversationID, who); err != nil {
		writeError(c, err)
		return
	}

	participants, err := h.convs.Participants(ctx, conversationID)
	if err == nil {
		h.hub.Broadcast(participants, models.Event{
			Type:           models.EventConversationRead,
			ConversationID: conversationID,
			By:             who,
			TS:             time.Now().UnixMilli(),
		})
	}
	c.Status(http.StatusNoContent)
}

// ToggleReaction flips the caller's reaction on a message.
func (h *MessageHandler) ToggleReaction(c *gin.Context) {
	who := middleware.Identity(c)
	messageID := c.Param("message_id")

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := storeScope(c, h.storeTimeout)
	defer cancel()

	msg, err := h.ledger.ToggleReaction(ctx, messageID, who, req.Emoji)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}
