package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/conversations"
	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/ws"
)

// GroupHandler manages group-conversation endpoints.
type GroupHandler struct {
	convs        *conversations.Service
	hub          *ws.Hub
	storeTimeout time.Duration
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(convs *conversations.Service, hub *ws.Hub, storeTimeout time.Duration) *GroupHandler {
	return &GroupHandler{convs: convs, hub: hub, storeTimeout: storeTimeout}
}

// Create handles POST /groups.
func (h *GroupHandler) Create(c *gin.Context) {
	who := middleware.Identity(c)

	var req struct {
		Name        string   `json:"name" binding:"required"`
		AvatarRef   string   `json:"avatar_ref"`
		GroupType   string   `json:"group_type"`
		MovementRef string   `json:"movement_ref"`
		PostMode    string   `json:"post_mode"`
		Members     []string `json:"members"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := storeScope(c, h.storeTimeout)
	defer cancel()

	conv, err := h.convs.CreateGroup(ctx, who, conversations.GroupInput{
		Name:        req.Name,
		AvatarRef:   req.AvatarRef,
		GroupType:   req.GroupType,
		MovementRef: req.MovementRef,
		PostMode:    req.PostMode,
		Members:     req.Members,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// Update handles PATCH /groups/:group_id.
func (h *GroupHandler) Update(c *gin.Context) {
	who := middleware.Identity(c)
	id := c.Param("group_id")

	var req struct {
		Name            *string  `json:"name"`
		AvatarRef       *string  `json:"avatar_ref"`
		PostMode        *string  `json:"post_mode"`
		AdminSet        []string `json:"admin_set"`
		PosterAllowlist []string `json:"poster_allowlist"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := storeScope(c, h.storeTimeout)
	defer cancel()

	conv, err := h.convs.UpdateGroup(ctx, id, who, conversations.GroupPatch{
		Name:            req.Name,
		AvatarRef:       req.AvatarRef,
		PostMode:        req.PostMode,
		AdminSet:        req.AdminSet,
		PosterAllowlist: req.PosterAllowlist,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	h.broadcastUpdated(conv)
	c.JSON(http.StatusOK, conv)
}

type participantOp func(ctx context.Context, id, actor string, identities []string) (models.Conversation, error)

// AddParticipants handles POST /groups/:group_id/participants.
func (h *GroupHandler) AddParticipants(c *gin.Context) {
	h.mutateParticipants(c, h.convs.AddParticipants)
}

// RemoveParticipants handles DELETE /groups/:group_id/participants.
func (h *GroupHandler) RemoveParticipants(c *gin.Context) {
	h.mutateParticipants(c, h.convs.RemoveParticipants)
}

func (h *GroupHandler) mutateParticipants(c *gin.Context, op participantOp) {
	who := middleware.Identity(c)
	id := c.Param("group_id")

	var req struct {
		Participants []string `json:"participants" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := storeScope(c, h.storeTimeout)
	defer cancel()

	conv, err := op(ctx, id, who, req.Participants)
	if err != nil {
		writeError(c, err)
		return
	}

	h.broadcastUpdated(conv)
	c.JSON(http.StatusOK, conv)
}

func (h *GroupHandler) broadcastUpdated(conv models.Conversation) {
	h.hub.Broadcast(conv.Participants, models.Event{
		Type:           models.EventConversationUpdated,
		ConversationID: conv.ID,
		Conversation:   &conv,
	})
}
