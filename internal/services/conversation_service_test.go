package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"chat-relay/internal/domain/conversation"
	"chat-relay/internal/mocks"
	relay_errors "chat-relay/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestFindOrCreateDirect(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	svc := NewConversationService(repos.Users, repos.Conversations, nil, nil, nil)
	alice, bob := seedUser(t, repos, "alice"), seedUser(t, repos, "bob")

	first, created, err := svc.FindOrCreateDirect(ctx, alice, bob)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, first.Members, 2)

	second, created, err := svc.FindOrCreateDirect(ctx, bob, alice)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	_, _, err = svc.FindOrCreateDirect(ctx, alice, alice)
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)
}

func TestFindOrCreateDirectFromBothEnds(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	svc := NewConversationService(repos.Users, repos.Conversations, nil, nil, nil)
	alice, bob := seedUser(t, repos, "alice"), seedUser(t, repos, "bob")

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 20)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := alice, bob
			if i%2 == 1 {
				a, b = bob, alice
			}
			view, _, err := svc.FindOrCreateDirect(ctx, a, b)
			if err == nil {
				ids[i] = view.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	list, err := svc.ListDirect(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAppendMessage(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	svc := NewConversationService(repos.Users, repos.Conversations, nil, nil, nil)
	alice, bob, carol := seedUser(t, repos, "alice"), seedUser(t, repos, "bob"), seedUser(t, repos, "carol")
	view, _, err := svc.FindOrCreateDirect(ctx, alice, bob)
	require.NoError(t, err)

	msg, notes, err := svc.AppendMessage(ctx, MessageInput{ConversationID: view.ID, From: alice, To: bob, Text: "hi"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	assert.Equal(t, conversation.MessageText, msg.Type)
	assert.Equal(t, []string{EventNewMessage}, eventsFor(notes, alice))
	assert.Equal(t, []string{EventNewMessage}, eventsFor(notes, bob))

	stored, err := repos.Conversations.GetDirectByID(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.UnreadCount)
	assert.Equal(t, []uuid.UUID{alice}, stored.ReadBy)

	t.Run("recipient defaults to the peer", func(t *testing.T) {
		msg, _, err := svc.AppendMessage(ctx, MessageInput{ConversationID: view.ID, From: bob, Text: "yo"})
		require.NoError(t, err)
		assert.Equal(t, alice, msg.To)
	})

	t.Run("outsiders cannot post", func(t *testing.T) {
		_, _, err := svc.AppendMessage(ctx, MessageInput{ConversationID: view.ID, From: carol, Text: "hey"})
		assert.ErrorIs(t, err, relay_errors.ErrForbidden)
	})

	t.Run("unknown conversation", func(t *testing.T) {
		_, _, err := svc.AppendMessage(ctx, MessageInput{ConversationID: uuid.New(), From: alice, Text: "hey"})
		assert.ErrorIs(t, err, relay_errors.ErrNotFound)
	})

	t.Run("empty text is rejected without a write", func(t *testing.T) {
		_, _, err := svc.AppendMessage(ctx, MessageInput{ConversationID: view.ID, From: alice, Text: "  "})
		assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)
		msgs, err := svc.Messages(ctx, view.ID, alice)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	})

	t.Run("history is private to participants", func(t *testing.T) {
		_, err := svc.Messages(ctx, view.ID, carol)
		assert.ErrorIs(t, err, relay_errors.ErrForbidden)

		msgs, err := svc.Messages(ctx, view.ID, uuid.Nil)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	})

	t.Run("mark read", func(t *testing.T) {
		require.NoError(t, svc.MarkRead(ctx, view.ID, bob))
		stored, err := repos.Conversations.GetDirectByID(ctx, view.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.UnreadCount)
		assert.ErrorIs(t, svc.MarkRead(ctx, view.ID, carol), relay_errors.ErrForbidden)
	})
}

func TestMessagesPreserveAppendOrder(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	svc := NewConversationService(repos.Users, repos.Conversations, nil, nil, nil)
	alice, bob := seedUser(t, repos, "alice"), seedUser(t, repos, "bob")
	view, _, err := svc.FindOrCreateDirect(ctx, alice, bob)
	require.NoError(t, err)

	var sent []uuid.UUID
	for _, text := range []string{"one", "two", "three"} {
		msg, _, err := svc.AppendMessage(ctx, MessageInput{ConversationID: view.ID, From: alice, Text: text})
		require.NoError(t, err)
		sent = append(sent, msg.ID)
	}

	msgs, err := svc.Messages(ctx, view.ID, bob)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.Equal(t, sent[i], m.ID)
	}
}

func TestFileMessagesAreSigned(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	signer := new(mocks.AttachmentSignerMock)
	signer.On("DownloadURL", mock.Anything, "chats/cat.png").Return("https://cdn.test/chats/cat.png", nil)
	signer.On("DownloadURL", mock.Anything, "chats/broken.pdf").Return("", errors.New("boom"))

	svc := NewConversationService(repos.Users, repos.Conversations, signer, nil, nil)
	alice, bob := seedUser(t, repos, "alice"), seedUser(t, repos, "bob")
	view, _, err := svc.FindOrCreateDirect(ctx, alice, bob)
	require.NoError(t, err)

	_, _, err = svc.AppendMessage(ctx, MessageInput{ConversationID: view.ID, From: alice, Type: "Media"})
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)

	msg, _, err := svc.AppendMessage(ctx, MessageInput{ConversationID: view.ID, From: alice, Type: "Media", File: "chats/cat.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/chats/cat.png", msg.FileURL)

	_, _, err = svc.AppendMessage(ctx, MessageInput{ConversationID: view.ID, From: bob, Type: "document", File: "chats/broken.pdf"})
	require.NoError(t, err)

	msgs, err := svc.Messages(ctx, view.ID, alice)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "https://cdn.test/chats/cat.png", msgs[0].FileURL)
	assert.Empty(t, msgs[1].FileURL)
}
