package middleware

import (
	"net/http"

	"chat-relay/internal/transport/httpdto"
	relay_errors "chat-relay/pkg/errors"
	"chat-relay/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders the last error attached with c.Error. Handlers that
// already wrote a body are left alone.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		code := relay_errors.Code(err)
		status := StatusFor(code)
		if l != nil && status >= http.StatusInternalServerError {
			l.Ctx(c.Request.Context()).Error("request error", zap.Error(err))
		}
		if c.Writer.Written() {
			return
		}
		message := err.Error()
		if status >= http.StatusInternalServerError {
			message = "internal error"
		}
		c.JSON(status, httpdto.NewErrorResponse(message, code))
	}
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case "NOT_FOUND":
		return http.StatusNotFound
	case "INVALID_INPUT":
		return http.StatusBadRequest
	case "CONFLICT":
		return http.StatusConflict
	case "UNAUTHORIZED":
		return http.StatusUnauthorized
	case "FORBIDDEN":
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
