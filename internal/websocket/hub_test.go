package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubUnregisterRightAfterRegister(t *testing.T) {
	hub := NewHub(NewWebSocketLogger(nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	clients := make([]*Client, 50)
	for i := range clients {
		clients[i] = NewClient(hub, nil, nil, uuid.New(), 1, NewWebSocketLogger(nil))
		hub.Register(clients[i])
		require.Equal(t, 1, hub.GetClientCount())
		hub.Unregister(clients[i])
		assert.Eventually(t, func() bool { return hub.GetClientCount() == 0 }, time.Second, 5*time.Millisecond)
	}

	for _, c := range clients {
		_, open := <-c.send
		assert.False(t, open, "send channel must be closed after unregister")
	}
}

func TestHubUnregisterUnknownClient(t *testing.T) {
	hub := NewHub(NewWebSocketLogger(nil))
	c := NewClient(hub, nil, nil, uuid.New(), 1, NewWebSocketLogger(nil))

	hub.Unregister(c)
	assert.Equal(t, 0, hub.GetClientCount())

	hub.Register(c)
	assert.Equal(t, 1, hub.GetClientCount())
}
