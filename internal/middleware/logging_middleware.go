package middleware

import (
	"time"

	"chat-relay/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func LoggingMiddleware(l *logger.Logger) gin.HandlerFunc {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		if l == nil {
			return
		}
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		log := l.Ctx(c.Request.Context())
		if status >= 500 {
			log.Error("http request", fields...)
			return
		}
		log.Info("http request", fields...)
	}
}
