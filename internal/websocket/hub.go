package websocket

import (
	"context"
	"sync"

	"chat-relay/internal/metrics"
)

// Hub keeps the set of live clients. Presence and room membership live in
// the router's registry; the hub only owns socket lifetimes.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]*Client
	unregister chan *Client
	logger     *WebSocketLogger
}

func NewHub(logger *WebSocketLogger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		unregister: make(chan *Client, 256),
		logger:     logger,
	}
}

// Run starts the hub's event loop. Cancelling ctx closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Register adds client before its pumps start, so a later Unregister always
// finds it.
func (h *Hub) Register(client *Client) {
	h.addClient(client)
}

// Unregister never blocks, so read pumps can exit after Run has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	default:
		h.removeClient(client)
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID()] = client
	h.mu.Unlock()
	metrics.IncWSActive()
	h.logger.Info("client registered", client.UserID(), client.ID())
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client.ID()]
	delete(h.clients, client.ID())
	h.mu.Unlock()

	if !ok {
		return
	}
	client.closeSend()
	metrics.DecWSActive()
	h.logger.Info("client unregistered", client.UserID(), client.ID())
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
