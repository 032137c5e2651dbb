package websocket

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"

	relay_errors "chat-relay/pkg/errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Client represents a single WebSocket connection. It satisfies
// presence.Conn.
type Client struct {
	hub          *Hub
	router       *Router
	conn         *websocket.Conn
	send         chan []byte
	id           string
	userID       uuid.UUID
	rateLimiter  *ClientRateLimiter
	connectedAt  time.Time
	lastActivity atomic.Int64
	logger       *WebSocketLogger

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func NewClient(hub *Hub, router *Router, conn *websocket.Conn, userID uuid.UUID, sendBuffer int, logger *WebSocketLogger) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	now := time.Now()
	c := &Client{
		hub:         hub,
		router:      router,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		id:          uuid.New().String(),
		userID:      userID,
		rateLimiter: NewClientRateLimiter(DefaultRateLimits),
		connectedAt: now,
		logger:      logger,
	}
	c.lastActivity.Store(now.UnixNano())
	return c
}

func (c *Client) ID() string { return c.id }

func (c *Client) UserID() uuid.UUID { return c.userID }

// Send queues frame without blocking. A full queue is reported, not waited
// on.
func (c *Client) Send(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return relay_errors.ErrConnClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return relay_errors.ErrQueueFull
	}
}

// Close hangs up the socket. The read pump notices and cleans up.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// closeSend stops the write pump. Only the hub calls it.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		// Handlers already in flight keep running on their own context.
		c.router.Disconnect(context.Background(), c)
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.lastActivity.Store(time.Now().UnixNano())
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket unexpected close", c.userID, c.id, err)
			}
			break
		}

		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
		c.lastActivity.Store(time.Now().UnixNano())
		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(message []byte) {
	if len(message) == 0 {
		return
	}
	event := peekEvent(message)
	if !c.rateLimiter.Allow(event) {
		c.logger.Warn("rate limit exceeded", c.userID, c.id, zap.String("msg_type", event))
		frame, err := encodeFrame("error", ErrorPayload{Event: event, Code: "RATE_LIMITED", Message: "too many events"})
		if err == nil {
			_ = c.Send(frame)
		}
		return
	}
	c.router.Dispatch(context.Background(), c, message)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per message: clients parse each as a single JSON value.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

			if time.Since(time.Unix(0, c.lastActivity.Load())) > pongWait*2 {
				c.logger.Info("client idle timeout", c.userID, c.id)
				return
			}
		}
	}
}
