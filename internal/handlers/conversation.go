package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/conversations"
	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/notify"
	"messaging-service/internal/ws"
)

// ConversationHandler manages direct-conversation endpoints: creation, the
// request state machine and listing.
type ConversationHandler struct {
	convs        *conversations.Service
	hub          *ws.Hub
	storeTimeout time.Duration
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(convs *conversations.Service, hub *ws.Hub, storeTimeout time.Duration) *ConversationHandler {
	return &ConversationHandler{convs: convs, hub: hub, storeTimeout: storeTimeout}
}

// List returns the caller's conversations ordered by recency.
func (h *ConversationHandler) List(c *gin.Context) {
	who := middleware.Identity(c)
	limit, offset := pagination(c)
	ctx, cancel := storeScope(c, h.storeTimeout)
	defer cancel()

	convs, err := h.convs.List(ctx, who, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	fields := fieldsParam(c)
	out := make([]any, 0, len(convs))
	for i := range convs {
		out = append(out, projectFields(convs[i], fields))
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

// Create starts (or idempotently fetches) a direct conversation with a peer.
func (h *ConversationHandler) Create(c *gin.Context) {
	who := middleware.Identity(c)

	var req struct {
		Peer      string `json:"peer" binding:"required"`
		Encrypted bool   `json:"encrypted"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := storeScope(c, h.storeTimeout)
	defer cancel()

	conv, err := h.convs.StartDirect(ctx, who, req.Peer, req.Encrypted)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// Accept handles POST /conversations/:conversation_id/accept.
func (h *ConversationHandler) Accept(c *gin.Context) {
	h.transition(c, h.convs.Accept)
}

// Decline handles POST /conversations/:conversation_id/decline.
func (h *ConversationHandler) Decline(c *gin.Context) {
	h.transition(c, h.convs.Decline)
}

// Block handles POST /conversations/:conversation_id/block.
func (h *ConversationHandler) Block(c *gin.Context) {
	h.transition(c, h.convs.Block)
}

// Unblock handles POST /conversations/:conversation_id/unblock.
func (h *ConversationHandler) Unblock(c *gin.Context) {
	h.transition(c, h.convs.Unblock)
}

func (h *ConversationHandler) transition(c *gin.Context, op func(ctx context.Context, id, actor string) (models.Conversation, error)) {
	who := middleware.Identity(c)
	id := c.Param("conversation_id")

	ctx, cancel := storeScope(c, h.storeTimeout)
	defer cancel()

	conv, err := op(ctx, id, who)
	if err != nil {
		writeError(c, err)
		return
	}

	h.hub.Broadcast(conv.Participants, models.Event{
		Type:           models.EventConversationUpdated,
		ConversationID: conv.ID,
		Conversation:   &conv,
	})
	c.JSON(http.StatusOK, conv)
}

// notifyRecipients emits best-effort email events; failures never reach the
// caller.
func notifyRecipients(emitter *notify.Emitter, conv models.Conversation, sender string) {
	if emitter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	emitter.MessageReceived(ctx, conv.Participants, conv.ID, sender, conv.Kind)
}
