package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rateLimitRouter(perMinute int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(IdentityKey, c.GetHeader("X-Identity"))
		c.Next()
	})
	r.Use(RateLimit(perMinute))
	r.POST("/write", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func post(router *gin.Engine, who string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	req.Header.Set("X-Identity", who)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitExceededCategory(t *testing.T) {
	// One token per minute: the first write drains the bucket.
	router := rateLimitRouter(1)

	require.Equal(t, http.StatusNoContent, post(router, "alice").Code)

	rec := post(router, "alice")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "rate_limited", resp["category"])
	assert.Equal(t, "rate limit exceeded", resp["error"])
}

func TestRateLimitIsPerIdentity(t *testing.T) {
	router := rateLimitRouter(1)

	require.Equal(t, http.StatusNoContent, post(router, "alice").Code)
	require.Equal(t, http.StatusTooManyRequests, post(router, "alice").Code)
	// Another identity holds its own bucket.
	assert.Equal(t, http.StatusNoContent, post(router, "bob").Code)
}

func TestRateLimitDisabled(t *testing.T) {
	router := rateLimitRouter(0)
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusNoContent, post(router, "alice").Code)
	}
}
