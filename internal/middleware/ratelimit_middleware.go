package middleware

import (
	"context"
	"net/http"
	"strconv"

	"chat-relay/internal/redis"
	"chat-relay/internal/transport/httpdto"
	"chat-relay/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type limitFunc func(ctx context.Context, ip string) (*redis.RateLimitResult, error)

// HandshakeRateLimitMiddleware caps websocket upgrades per client IP.
// A nil limiter disables the check.
func HandshakeRateLimitMiddleware(limiter *redis.RateLimiter, l *logger.Logger) gin.HandlerFunc {
	if limiter == nil {
		return passthrough
	}
	return rateLimit(limiter.AllowHandshake, "connection rate limit exceeded", l)
}

// APIRateLimitMiddleware caps REST calls per client IP.
func APIRateLimitMiddleware(limiter *redis.RateLimiter, l *logger.Logger) gin.HandlerFunc {
	if limiter == nil {
		return passthrough
	}
	return rateLimit(limiter.AllowAPI, "rate limit exceeded", l)
}

func passthrough(c *gin.Context) { c.Next() }

func rateLimit(allow limitFunc, message string, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			// Redis trouble should not lock everyone out.
			if l != nil {
				l.Ctx(c.Request.Context()).Warn("rate limit check failed", zap.Error(err))
			}
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse(message, "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
