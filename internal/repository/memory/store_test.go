package memory

import (
	"context"
	"testing"

	"chat-relay/internal/domain/call"
	"chat-relay/internal/domain/conversation"
	"chat-relay/internal/domain/user"
	relay_errors "chat-relay/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUsers(t *testing.T, repo interface {
	Create(context.Context, *user.User) error
}, names ...string) []uuid.UUID {
	t.Helper()
	var ids []uuid.UUID
	for _, n := range names {
		u := &user.User{Name: n, Email: n + "@test.local"}
		require.NoError(t, repo.Create(context.Background(), u))
		ids = append(ids, u.ID)
	}
	return ids
}

func TestUserPresenceColumns(t *testing.T) {
	ctx := context.Background()
	repos, _ := Repositories()
	ids := seedUsers(t, repos.Users, "ana")

	require.NoError(t, repos.Users.MarkOnline(ctx, ids[0], "sock-1"))
	u, err := repos.Users.GetUserByID(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, user.StatusOnline, u.Status)
	assert.Equal(t, "sock-1", u.SocketID)

	cleared, err := repos.Users.MarkOffline(ctx, ids[0], "sock-0")
	require.NoError(t, err)
	assert.False(t, cleared, "stale socket must not clear a newer one")

	cleared, err = repos.Users.MarkOffline(ctx, ids[0], "sock-1")
	require.NoError(t, err)
	assert.True(t, cleared)

	u, _ = repos.Users.GetUserByID(ctx, ids[0])
	assert.Equal(t, user.StatusOffline, u.Status)
	assert.Empty(t, u.SocketID)

	assert.ErrorIs(t, repos.Users.MarkOnline(ctx, uuid.New(), "x"), relay_errors.ErrNotFound)
}

func TestFriendRequestLifecycle(t *testing.T) {
	ctx := context.Background()
	repos, _ := Repositories()
	ids := seedUsers(t, repos.Users, "ana", "bo")

	fr := &user.FriendRequest{SenderID: ids[0], RecipientID: ids[1]}
	require.NoError(t, repos.Friends.CreateRequest(ctx, fr))
	assert.ErrorIs(t, repos.Friends.CreateRequest(ctx, &user.FriendRequest{SenderID: ids[0], RecipientID: ids[1]}), relay_errors.ErrAlreadyExists)

	accepted, err := repos.Friends.AcceptRequest(ctx, fr.ID)
	require.NoError(t, err)
	assert.Equal(t, fr.ID, accepted.ID)

	_, err = repos.Friends.AcceptRequest(ctx, fr.ID)
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)

	a, _ := repos.Users.GetUserByID(ctx, ids[0])
	b, _ := repos.Users.GetUserByID(ctx, ids[1])
	assert.Equal(t, []uuid.UUID{ids[1]}, a.Friends)
	assert.Equal(t, []uuid.UUID{ids[0]}, b.Friends)
}

func TestDirectConversationPairIsUnique(t *testing.T) {
	ctx := context.Background()
	repos, _ := Repositories()
	ids := seedUsers(t, repos.Users, "ana", "bo")

	d := &conversation.Direct{Participants: [2]uuid.UUID{ids[1], ids[0]}}
	require.NoError(t, repos.Conversations.CreateDirect(ctx, d))
	err := repos.Conversations.CreateDirect(ctx, &conversation.Direct{Participants: [2]uuid.UUID{ids[0], ids[1]}})
	assert.ErrorIs(t, err, relay_errors.ErrAlreadyExists)

	found, err := repos.Conversations.GetDirectByPair(ctx, ids[0], ids[1])
	require.NoError(t, err)
	assert.Equal(t, d.ID, found.ID)

	m := &conversation.Message{ConversationID: d.ID, From: ids[0], To: ids[1], Text: "hi"}
	require.NoError(t, repos.Conversations.AppendDirectMessage(ctx, m))
	assert.NotEqual(t, uuid.Nil, m.ID)
	assert.Equal(t, conversation.MessageText, m.Type)

	stored, _ := repos.Conversations.GetDirectByID(ctx, d.ID)
	assert.Equal(t, 1, stored.UnreadCount)
	assert.Equal(t, []uuid.UUID{ids[0]}, stored.ReadBy)

	require.NoError(t, repos.Conversations.MarkRead(ctx, d.ID, ids[1]))
	stored, _ = repos.Conversations.GetDirectByID(ctx, d.ID)
	assert.Equal(t, 0, stored.UnreadCount)
	assert.ElementsMatch(t, []uuid.UUID{ids[0], ids[1]}, stored.ReadBy)

	list, err := repos.Conversations.ListDirectForUser(ctx, ids[1])
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "hi", list[0].LastMessage.Text)
}

func TestRoomMembershipAndGroups(t *testing.T) {
	ctx := context.Background()
	repos, _ := Repositories()
	ids := seedUsers(t, repos.Users, "owner", "guest")

	room := &conversation.Room{Name: "general", Owner: ids[0], MemberIDs: []uuid.UUID{ids[0]}}
	require.NoError(t, repos.Rooms.Create(ctx, room))

	added, err := repos.Rooms.AddMember(ctx, room.ID, ids[1])
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repos.Rooms.AddMember(ctx, room.ID, ids[1])
	require.NoError(t, err)
	assert.False(t, added)

	guest, _ := repos.Users.GetUserByID(ctx, ids[1])
	assert.Equal(t, []uuid.UUID{room.ID}, guest.Groups)

	_, err = repos.Rooms.AddMember(ctx, uuid.New(), ids[1])
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)
}

func TestLatestOngoingCall(t *testing.T) {
	ctx := context.Background()
	repos, _ := Repositories()
	a, b := uuid.New(), uuid.New()

	c := &call.Call{Kind: call.KindAudio, From: a, To: b, Status: call.StatusOngoing}
	require.NoError(t, repos.Calls.Create(ctx, c))

	found, err := repos.Calls.LatestOngoing(ctx, b, a, call.KindAudio)
	require.NoError(t, err)
	assert.Equal(t, c.ID, found.ID)

	_, err = repos.Calls.LatestOngoing(ctx, a, b, call.KindVideo)
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)
}
