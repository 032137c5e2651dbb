package services

import (
	"context"
	"sync"
	"testing"

	relay_errors "chat-relay/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRequest(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	svc := NewFriendService(repos.Users, repos.Friends, nil, nil)
	alice, bob := seedUser(t, repos, "alice"), seedUser(t, repos, "bob")

	req, notes, err := svc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, alice, req.SenderID)
	assert.Equal(t, []string{EventNewFriendRequest}, eventsFor(notes, bob))
	assert.Equal(t, []string{EventRequestSent}, eventsFor(notes, alice))

	payload := notes[0].Data.(FriendRequestPayload)
	require.NotNil(t, payload.From)
	assert.Equal(t, "alice", payload.From.Name)

	t.Run("duplicate returns the pending request", func(t *testing.T) {
		again, notes, err := svc.SendRequest(ctx, alice, bob)
		require.NoError(t, err)
		assert.Equal(t, req.ID, again.ID)
		assert.Empty(t, eventsFor(notes, bob))
		assert.Equal(t, []string{EventRequestSent}, eventsFor(notes, alice))
	})
}

func TestSendRequestValidation(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	svc := NewFriendService(repos.Users, repos.Friends, nil, nil)
	alice := seedUser(t, repos, "alice")

	_, _, err := svc.SendRequest(ctx, alice, alice)
	assert.ErrorIs(t, err, relay_errors.ErrSelfRequest)

	_, _, err = svc.SendRequest(ctx, uuid.Nil, alice)
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)

	_, _, err = svc.SendRequest(ctx, alice, uuid.New())
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)
}

func TestAcceptRequest(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	svc := NewFriendService(repos.Users, repos.Friends, nil, nil)
	alice, bob := seedUser(t, repos, "alice"), seedUser(t, repos, "bob")

	req, _, err := svc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)

	_, _, err = svc.AcceptRequest(ctx, req.ID, uuid.Nil)
	assert.ErrorIs(t, err, relay_errors.ErrNoIdentity)

	_, _, err = svc.AcceptRequest(ctx, req.ID, alice)
	assert.ErrorIs(t, err, relay_errors.ErrForbidden)

	pending, err := svc.ListRequests(ctx, bob)
	require.NoError(t, err)
	require.Len(t, pending, 1, "rejected accepts must leave the request pending")

	_, notes, err := svc.AcceptRequest(ctx, req.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, []string{EventRequestAccepted}, eventsFor(notes, alice))
	assert.Equal(t, []string{EventRequestAccepted}, eventsFor(notes, bob))

	friends, err := svc.ListFriends(ctx, alice)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, bob, friends[0].ID)

	_, _, err = svc.SendRequest(ctx, bob, alice)
	assert.ErrorIs(t, err, relay_errors.ErrAlreadyFriends)

	t.Run("second accept is not found", func(t *testing.T) {
		_, notes, err := svc.AcceptRequest(ctx, req.ID, bob)
		assert.ErrorIs(t, err, relay_errors.ErrNotFound)
		assert.Empty(t, notes)

		friends, err := svc.ListFriends(ctx, bob)
		require.NoError(t, err)
		assert.Len(t, friends, 1)
	})
}

func TestConcurrentAcceptLinksOnce(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	svc := NewFriendService(repos.Users, repos.Friends, nil, nil)
	alice, bob := seedUser(t, repos, "alice"), seedUser(t, repos, "bob")
	req, _, err := svc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := svc.AcceptRequest(ctx, req.ID, bob); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	pending, err := svc.ListRequests(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
