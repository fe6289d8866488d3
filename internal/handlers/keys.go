package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/identity"
	"messaging-service/internal/middleware"
	"messaging-service/internal/store"
)

// KeyHandler stores and serves opaque encryption public keys. The server
// never inspects key material; it only enforces the "peer has a key"
// prerequisite for encrypted conversations.
type KeyHandler struct {
	store        store.Store
	storeTimeout time.Duration
}

// NewKeyHandler builds a KeyHandler.
func NewKeyHandler(s store.Store, storeTimeout time.Duration) *KeyHandler {
	return &KeyHandler{store: s, storeTimeout: storeTimeout}
}

// Register handles POST /keys.
func (h *KeyHandler) Register(c *gin.Context) {
	who := middleware.Identity(c)

	var req struct {
		KeyData string `json:"key_data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx, cancel := storeScope(c, h.storeTimeout)
	defer cancel()

	if err := h.store.SetPublicKey(ctx, who, req.KeyData); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Get handles GET /keys/:identity, used by clients to fetch a peer's key.
func (h *KeyHandler) Get(c *gin.Context) {
	target := identity.Normalize(c.Param("identity"))

	ctx, cancel := storeScope(c, h.storeTimeout)
	defer cancel()

	key, err := h.store.GetPublicKey(ctx, target)
	if errors.Is(err, store.ErrNotFound) {
		writeError(c, apperrors.New(apperrors.NotFound, "no public key"))
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": target, "key_data": key})
}
