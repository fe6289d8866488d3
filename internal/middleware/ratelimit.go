package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"messaging-service/internal/apperrors"
)

// maxTrackedLimiters bounds the per-identity bucket map. Past it the map is
// rebuilt from scratch; a reset hands every identity a fresh burst, which is
// acceptable for a write limiter.
const maxTrackedLimiters = 8192

// RateLimit applies a per-identity token bucket to write endpoints. Runs
// after Auth.
func RateLimit(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	limit := rate.Limit(float64(perMinute) / 60.0)
	burst := perMinute / 4
	if burst < 1 {
		burst = 1
	}

	return func(c *gin.Context) {
		who := Identity(c)
		mu.Lock()
		limiter, ok := limiters[who]
		if !ok {
			if len(limiters) >= maxTrackedLimiters {
				limiters = make(map[string]*rate.Limiter)
			}
			limiter = rate.NewLimiter(limit, burst)
			limiters[who] = limiter
		}
		mu.Unlock()

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":    "rate limit exceeded",
				"category": apperrors.RateLimited,
			})
			return
		}
		c.Next()
	}
}
