package auth

import (
	"testing"
	"time"

	relay_errors "chat-relay/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	p := NewTokenParser("secret")
	id := uuid.New()

	token, err := p.IssueAccessToken(id, time.Minute)
	require.NoError(t, err)

	got, err := p.UserID(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestParseRejectsBadTokens(t *testing.T) {
	p := NewTokenParser("secret")

	_, err := p.ParseAccessToken("")
	assert.ErrorIs(t, err, relay_errors.ErrUnauthorized)

	other, err := NewTokenParser("other").IssueAccessToken(uuid.New(), time.Minute)
	require.NoError(t, err)
	_, err = p.ParseAccessToken(other)
	assert.ErrorIs(t, err, relay_errors.ErrUnauthorized)

	expired, err := p.IssueAccessToken(uuid.New(), -time.Minute)
	require.NoError(t, err)
	_, err = p.ParseAccessToken(expired)
	assert.ErrorIs(t, err, relay_errors.ErrUnauthorized)
}

func TestUserIDRequiresUUIDSubject(t *testing.T) {
	p := NewTokenParser("secret")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{UserID: "bob"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = p.UserID(token)
	assert.ErrorIs(t, err, relay_errors.ErrUnauthorized)
}
