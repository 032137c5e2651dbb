package websocket

import (
	"context"
	"net/http"
	"strings"

	"chat-relay/internal/auth"
	"chat-relay/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type HandlerConfig struct {
	AllowQueryIdentity bool
	AllowedOrigins     []string
	SendBuffer         int
}

// Handler upgrades HTTP requests on /ws and starts the client pumps.
type Handler struct {
	tokens   *auth.TokenParser
	hub      *Hub
	router   *Router
	cfg      HandlerConfig
	upgrader websocket.Upgrader
	logger   *WebSocketLogger
}

func NewHandler(tokens *auth.TokenParser, hub *Hub, router *Router, cfg HandlerConfig, logger *WebSocketLogger) *Handler {
	h := &Handler{tokens: tokens, hub: hub, router: router, cfg: cfg, logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// identity resolves who is connecting. No credentials at all yields an
// anonymous connection.
func (h *Handler) identity(c *gin.Context) (uuid.UUID, bool) {
	if token := extractToken(c); token != "" {
		if h.tokens == nil {
			return uuid.Nil, false
		}
		id, err := h.tokens.UserID(token)
		if err != nil {
			return uuid.Nil, false
		}
		return id, true
	}
	if raw := c.Query("user_id"); raw != "" && h.cfg.AllowQueryIdentity {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, false
		}
		return id, true
	}
	return uuid.Nil, true
}

func (h *Handler) Connect(c *gin.Context) {
	userID, ok := h.identity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", userID, "", err)
		return
	}

	client := NewClient(h.hub, h.router, conn, userID, h.cfg.SendBuffer, h.logger)
	h.hub.Register(client)
	if userID != uuid.Nil && !h.router.Connect(context.Background(), client, userID) {
		h.logger.Warn("connection left anonymous", userID, client.ID())
	}

	go client.writePump()
	go client.readPump()
}

func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}
