package handlers

import (
	"crypto/subtle"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/conversations"
)

// AdminHandler exposes the administrative bulk purge, the only hard-delete
// path for conversations. Guarded by a static admin token, not user auth.
type AdminHandler struct {
	convs        *conversations.Service
	adminToken   string
	storeTimeout time.Duration
}

// NewAdminHandler builds an AdminHandler.
func NewAdminHandler(convs *conversations.Service, adminToken string, storeTimeout time.Duration) *AdminHandler {
	return &AdminHandler{convs: convs, adminToken: adminToken, storeTimeout: storeTimeout}
}

// PurgeConversations handles DELETE /admin/conversations.
func (h *AdminHandler) PurgeConversations(c *gin.Context) {
	if h.adminToken == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin endpoint disabled"})
		return
	}
	provided := c.GetHeader("X-Admin-Token")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(h.adminToken)) != 1 {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	ctx, cancel := storeScope(c, h.storeTimeout)
	defer cancel()

	purged, err := h.convs.Purge(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	log.Printf("admin purge removed %d conversations", purged)
	c.JSON(http.StatusOK, gin.H{"purged": purged})
}
