package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/identity"
)

// IdentityKey is the gin context key holding the verified identity handle.
const IdentityKey = "identity"

// Auth validates the Authorization bearer token and stores the verified
// identity on the request context.
func Auth(verifier identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "missing authorization")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header")
			return
		}

		who, err := verifier.Verify(c.Request.Context(), parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Set(IdentityKey, who)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":    message,
		"category": apperrors.AuthenticationRequired,
	})
}

// Identity returns the verified identity stored by Auth.
func Identity(c *gin.Context) string {
	return c.GetString(IdentityKey)
}
