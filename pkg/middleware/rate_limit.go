package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/24sk/anime/internal/admission"
	"github.com/24sk/anime/internal/domain/entity"
)

// RateLimiterConfig configures the admission middleware. Extractor resolves
// the raw client address; its result is hashed before it is stored.
type RateLimiterConfig struct {
	Limiter   *admission.RateLimiter
	Extractor func(c *gin.Context) string
}

func defaultExtractor(c *gin.Context) string {
	if xff := c.Request.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xr := c.Request.Header.Get("X-Real-IP"); xr != "" {
		return strings.TrimSpace(xr)
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}

// NewRateLimiter gates requests on the per-client sliding counter. The
// X-RateLimit headers are set on every response, allowed or not.
func NewRateLimiter(cfg RateLimiterConfig) gin.HandlerFunc {
	if cfg.Extractor == nil {
		cfg.Extractor = defaultExtractor
	}

	return func(c *gin.Context) {
		addr := cfg.Extractor(c)
		if addr == "" {
			addr = "anonymous"
		}

		decision := cfg.Limiter.Check(c.Request.Context(), admission.HashClientID(addr))

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", admission.RateLimitMaxRequests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", decision.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", decision.ResetAt.Unix()))

		if !decision.Allowed {
			appErr := entity.NewRateLimitError(decision.ResetAt)
			retryAfter := int(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    appErr.Code,
					"message": appErr.Message,
				},
				"retry_after_sec": retryAfter,
			})
			return
		}

		c.Next()
	}
}
