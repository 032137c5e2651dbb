package middleware

import (
	"context"
	"net/http"
	"strings"

	"chat-relay/internal/auth"
	"chat-relay/internal/transport/httpdto"
	"chat-relay/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const userIDKey = "user_id"

// AuthMiddleware requires a valid bearer access token and stores the
// caller's id on both the gin and request contexts.
func AuthMiddleware(tokens *auth.TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := tokens.UserID(ExtractBearer(c.GetHeader("Authorization")))
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		ctx := context.WithValue(c.Request.Context(), logger.UserIdKey, userID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// UserIDFrom returns the id stored by AuthMiddleware.
func UserIDFrom(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func ExtractBearer(value string) string {
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
