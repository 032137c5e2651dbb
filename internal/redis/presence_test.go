package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*PresenceStore, *goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPresenceStore(client, NewPublisher(client), time.Minute), client, mr
}

func TestPresenceOnlineOffline(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	require.NoError(t, store.SetOnline(ctx, "u1", "c1"))

	online, err := store.IsOnline(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, online)

	status, err := store.GetPresence(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, status.IsOnline)
	assert.Equal(t, "c1", status.ConnID)

	require.NoError(t, store.SetOffline(ctx, "u1"))
	online, err = store.IsOnline(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, online)

	status, err = store.GetPresence(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, status.IsOnline)
	assert.False(t, status.LastSeen.IsZero())
}

func TestPresenceUnknownUserIsOffline(t *testing.T) {
	store, _, _ := newTestStore(t)
	status, err := store.GetPresence(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, status.IsOnline)
	assert.Equal(t, "ghost", status.UserID)
}

func TestPresencePublishesEvents(t *testing.T) {
	ctx := context.Background()
	store, client, _ := newTestStore(t)

	sub := client.Subscribe(ctx, ChannelPrefixPresence+"u2")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, store.SetOnline(ctx, "u2", "c2"))

	select {
	case msg := <-sub.Channel():
		var evt PresenceEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &evt))
		assert.Equal(t, "presence.online", evt.EventType)
		assert.True(t, evt.IsOnline)
	case <-time.After(2 * time.Second):
		t.Fatal("presence event not published")
	}
}

func TestResetClearsOnlineSet(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTestStore(t)

	require.NoError(t, store.SetOnline(ctx, "a", "c1"))
	require.NoError(t, store.SetOnline(ctx, "b", "c2"))
	require.NoError(t, store.Reset(ctx))

	users, err := store.GetOnlineUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}
