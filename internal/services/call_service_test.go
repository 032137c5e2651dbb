package services

import (
	"context"
	"testing"
	"time"

	"chat-relay/internal/domain/call"
	relay_errors "chat-relay/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCallService(t *testing.T) (*CallService, uuid.UUID, uuid.UUID) {
	t.Helper()
	repos := newRepos(t)
	svc := NewCallService(repos.Users, repos.Calls, nil, nil)
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, seedUser(t, repos, "alice"), seedUser(t, repos, "bob")
}

func TestStartNotifiesCallee(t *testing.T) {
	svc, alice, bob := newCallService(t)

	c, notes, err := svc.Start(context.Background(), StartCallInput{Kind: call.KindAudio, From: alice, To: bob, RoomID: "room-1"})
	require.NoError(t, err)
	assert.Equal(t, call.StatusOngoing, c.Status)
	assert.Equal(t, call.VerdictNone, c.Verdict)
	require.Len(t, notes, 1)
	assert.Equal(t, bob, notes[0].UserID)
	assert.Equal(t, "audio_call_notification", notes[0].Event)

	payload := notes[0].Data.(CallNotificationPayload)
	assert.Equal(t, c.ID, payload.CallID)
	assert.Equal(t, "room-1", payload.RoomID)
	assert.Equal(t, "alice", payload.From.Name)
}

func TestStartValidation(t *testing.T) {
	svc, alice, _ := newCallService(t)
	ctx := context.Background()

	_, _, err := svc.Start(ctx, StartCallInput{Kind: "hologram", From: alice, To: uuid.New()})
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)
	_, _, err = svc.Start(ctx, StartCallInput{Kind: call.KindVideo, From: alice, To: alice})
	assert.ErrorIs(t, err, relay_errors.ErrInvalidInput)
	_, _, err = svc.Start(ctx, StartCallInput{Kind: call.KindVideo, From: alice, To: uuid.New()})
	assert.ErrorIs(t, err, relay_errors.ErrNotFound)
}

func TestCallTransitions(t *testing.T) {
	cases := []struct {
		signal  Signal
		event   string
		status  call.Status
		verdict call.Verdict
		ended   bool
	}{
		{SignalNotPicked, "video_call_missed", call.StatusEnded, call.VerdictMissed, true},
		{SignalAccepted, "video_call_accepted", call.StatusOngoing, call.VerdictAccepted, false},
		{SignalDenied, "video_call_denied", call.StatusEnded, call.VerdictDenied, true},
		{SignalBusy, "on_another_video_call", call.StatusEnded, call.VerdictBusy, true},
		{SignalEnded, "video_call_ended", call.StatusEnded, call.VerdictNone, true},
	}

	for _, tc := range cases {
		t.Run(string(tc.signal), func(t *testing.T) {
			svc, alice, bob := newCallService(t)
			ctx := context.Background()
			_, _, err := svc.Start(ctx, StartCallInput{Kind: call.KindVideo, From: alice, To: bob})
			require.NoError(t, err)

			// The callee answers, so the event goes back to the caller.
			c, notes, err := svc.Apply(ctx, SignalInput{Kind: call.KindVideo, Signal: tc.signal, From: bob, To: alice})
			require.NoError(t, err)
			require.NotNil(t, c)
			assert.Equal(t, tc.status, c.Status)
			assert.Equal(t, tc.verdict, c.Verdict)
			assert.Equal(t, tc.ended, c.EndedAt != nil)
			require.Len(t, notes, 1)
			assert.Equal(t, alice, notes[0].UserID)
			assert.Equal(t, tc.event, notes[0].Event)
		})
	}
}

func TestAcceptedThenEnded(t *testing.T) {
	svc, alice, bob := newCallService(t)
	ctx := context.Background()
	started, _, err := svc.Start(ctx, StartCallInput{Kind: call.KindAudio, From: alice, To: bob})
	require.NoError(t, err)

	_, _, err = svc.Accepted(ctx, call.KindAudio, bob, alice, uuid.Nil)
	require.NoError(t, err)

	c, notes, err := svc.Denied(ctx, call.KindAudio, bob, alice, uuid.Nil)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Empty(t, notes)

	c, _, err = svc.End(ctx, call.KindAudio, alice, bob, started.ID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, call.StatusEnded, c.Status)
	assert.Equal(t, call.VerdictAccepted, c.Verdict)
}

func TestSignalWithoutCallIsNoop(t *testing.T) {
	svc, alice, bob := newCallService(t)
	ctx := context.Background()

	c, notes, err := svc.NotPicked(ctx, call.KindAudio, alice, bob, uuid.Nil)
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Empty(t, notes)

	c, notes, err = svc.Busy(ctx, call.KindAudio, alice, bob, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Empty(t, notes)

	// An audio call does not answer video signals.
	_, _, err = svc.Start(ctx, StartCallInput{Kind: call.KindAudio, From: alice, To: bob})
	require.NoError(t, err)
	c, _, err = svc.Accepted(ctx, call.KindVideo, bob, alice, uuid.Nil)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestCallIDDisambiguatesOverlappingCalls(t *testing.T) {
	svc, alice, bob := newCallService(t)
	ctx := context.Background()

	first, _, err := svc.Start(ctx, StartCallInput{Kind: call.KindAudio, From: alice, To: bob})
	require.NoError(t, err)
	second, _, err := svc.Start(ctx, StartCallInput{Kind: call.KindAudio, From: bob, To: alice})
	require.NoError(t, err)

	c, _, err := svc.Denied(ctx, call.KindAudio, bob, alice, first.ID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, first.ID, c.ID)

	// Without an id the latest ongoing call is used.
	c, _, err = svc.Accepted(ctx, call.KindAudio, alice, bob, uuid.Nil)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, second.ID, c.ID)

	history, err := svc.History(ctx, alice, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
