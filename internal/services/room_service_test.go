package services

import (
	"context"
	"testing"

	relay_errors "chat-relay/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoom(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	svc := NewRoomService(repos.Users, repos.Rooms, nil, nil, nil)
	alice, bob := seedUser(t, repos, "alice"), seedUser(t, repos, "bob")

	room, err := svc.CreateRoom(ctx, "  weekend  ", alice, []uuid.UUID{bob, alice, bob})
	require.NoError(t, err)
	assert.Equal(t, "weekend", room.Name)
	assert.Equal(t, []uuid.UUID{alice, bob}, room.MemberIDs)

	u, err := repos.Users.GetUserByID(ctx, bob)
	require.NoError(t, err)
	assert.True(t, u.InGroup(room.ID))

	_, err = svc.CreateRoom(ctx, "", alice, nil)
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)
	_, err = svc.CreateRoom(ctx, "x", uuid.Nil, nil)
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)
}

func TestJoinRoom(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	svc := NewRoomService(repos.Users, repos.Rooms, nil, nil, nil)
	alice, bob := seedUser(t, repos, "alice"), seedUser(t, repos, "bob")
	room, err := svc.CreateRoom(ctx, "crew", alice, nil)
	require.NoError(t, err)

	joined, added, err := svc.JoinRoom(ctx, room.ID, bob)
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, joined.HasMember(bob))

	_, added, err = svc.JoinRoom(ctx, room.ID, bob)
	require.NoError(t, err)
	assert.False(t, added)

	rooms, err := svc.ListRooms(ctx, bob)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Len(t, rooms[0].MemberIDs, 2)

	_, added, err = svc.JoinRoom(ctx, room.ID, uuid.Nil)
	require.NoError(t, err)
	assert.False(t, added)

	_, _, err = svc.JoinRoom(ctx, uuid.New(), bob)
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)
}

func TestAppendGroupMessage(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	svc := NewRoomService(repos.Users, repos.Rooms, nil, nil, nil)
	alice := seedUser(t, repos, "alice")
	room, err := svc.CreateRoom(ctx, "crew", alice, nil)
	require.NoError(t, err)

	msg, err := svc.AppendGroupMessage(ctx, MessageInput{ConversationID: room.ID, From: alice, Text: "hello all"})
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.Sender)
	assert.Equal(t, room.ID, msg.To)

	msgs, err := svc.RoomMessages(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)

	_, err = svc.AppendGroupMessage(ctx, MessageInput{ConversationID: uuid.New(), From: alice, Text: "x"})
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)

	t.Run("outsider cannot post", func(t *testing.T) {
		mallory := seedUser(t, repos, "mallory")
		_, err := svc.AppendGroupMessage(ctx, MessageInput{ConversationID: room.ID, From: mallory, Text: "spam"})
		assert.ErrorIs(t, err, relay_errors.ErrForbidden)

		msgs, err := svc.RoomMessages(ctx, room.ID)
		require.NoError(t, err)
		assert.Len(t, msgs, 1)

		_, _, err = svc.JoinRoom(ctx, room.ID, mallory)
		require.NoError(t, err)
		_, err = svc.AppendGroupMessage(ctx, MessageInput{ConversationID: room.ID, From: mallory, Text: "hi"})
		assert.NoError(t, err)
	})

	_, err = svc.RoomMessages(ctx, uuid.New())
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)
}
