package call

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallTransitions(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	now := time.Now()

	t.Run("accept keeps call ongoing", func(t *testing.T) {
		c := New(KindAudio, a, b, "room", now)
		require.True(t, c.Accept())
		assert.Equal(t, StatusOngoing, c.Status)
		assert.Equal(t, VerdictAccepted, c.Verdict)
		assert.False(t, c.Accept())
		assert.False(t, c.Terminate(VerdictDenied, now), "verdict is final")
	})

	t.Run("terminate ends once", func(t *testing.T) {
		c := New(KindVideo, a, b, "room", now)
		require.True(t, c.Terminate(VerdictMissed, now))
		assert.Equal(t, StatusEnded, c.Status)
		require.NotNil(t, c.EndedAt)
		assert.False(t, c.Terminate(VerdictBusy, now))
		assert.False(t, c.Accept())
		assert.Equal(t, VerdictMissed, c.Verdict)
	})

	t.Run("hangup keeps verdict", func(t *testing.T) {
		c := New(KindAudio, a, b, "room", now)
		require.True(t, c.Accept())
		require.True(t, c.Hangup(now))
		assert.Equal(t, VerdictAccepted, c.Verdict)
		assert.False(t, c.Hangup(now))
	})
}

func TestPairIsCanonical(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.Equal(t, Pair(a, b), Pair(b, a))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("VIDEO")
	require.NoError(t, err)
	assert.Equal(t, KindVideo, k)

	_, err = ParseKind("smoke")
	assert.Error(t, err)
}
