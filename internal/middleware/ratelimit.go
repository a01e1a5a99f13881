package middleware

import (
	"log/slog"
	"net/http"

	"smartcity/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

// RateLimit rejects clients over the limiter's budget with 429. A failing
// limiter lets the request through.
func RateLimit(limiter ratelimit.Limiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.Warn("rate limiter unavailable", "path", c.FullPath(), "error", err)
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts, please try again later"})
			return
		}
		c.Next()
	}
}
