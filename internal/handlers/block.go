package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/blocks"
	"messaging-service/internal/identity"
	"messaging-service/internal/middleware"
)

// BlockHandler manages directed block edges independent of any conversation.
type BlockHandler struct {
	registry     *blocks.Registry
	storeTimeout time.Duration
}

// NewBlockHandler builds a BlockHandler.
func NewBlockHandler(registry *blocks.Registry, storeTimeout time.Duration) *BlockHandler {
	return &BlockHandler{registry: registry, storeTimeout: storeTimeout}
}

// Create handles POST /blocks.
func (h *BlockHandler) Create(c *gin.Context) {
	who := middleware.Identity(c)

	var req struct {
		Target string `json:"target" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := storeScope(c, h.storeTimeout)
	defer cancel()

	if err := h.registry.Block(ctx, who, identity.Normalize(req.Target)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete handles DELETE /blocks/:identity. Only the blocker holds the edge.
func (h *BlockHandler) Delete(c *gin.Context) {
	who := middleware.Identity(c)
	target := identity.Normalize(c.Param("identity"))

	ctx, cancel := storeScope(c, h.storeTimeout)
	defer cancel()

	if err := h.registry.Unblock(ctx, who, target); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
