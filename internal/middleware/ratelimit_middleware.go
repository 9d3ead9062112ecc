package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/JoelGresham/teamPoll/internal/ratelimit"
	"github.com/JoelGresham/teamPoll/internal/transport/httpdto"
)

// RateLimitMiddleware limits requests per client IP within scope. It guards the
// socket upgrade endpoint; submissions are limited inside the poll service.
func RateLimitMiddleware(limiter ratelimit.Limiter, scope string, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), ratelimit.Key(c.ClientIP(), scope))
		if err != nil {
			c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("rate limit error", "INTERNAL_ERROR"))
			c.Abort()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if !allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}
		c.Next()
	}
}
