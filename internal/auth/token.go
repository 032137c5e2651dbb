// Package auth verifies the access tokens presented on the websocket
// handshake. Tokens are issued by the account service; this package only
// needs the shared secret.
package auth

import (
	"time"

	relay_errors "chat-relay/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type AccessClaims struct {
	UserID    string `json:"sub"`
	SessionID string `json:"sid,omitempty"`
	DeviceID  string `json:"did,omitempty"`
	jwt.RegisteredClaims
}

type TokenParser struct {
	secret []byte
}

func NewTokenParser(secret string) *TokenParser {
	return &TokenParser{secret: []byte(secret)}
}

func (p *TokenParser) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" || len(p.secret) == 0 {
		return AccessClaims{}, relay_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, relay_errors.ErrUnauthorized
		}
		return p.secret, nil
	})
	if err != nil {
		return AccessClaims{}, relay_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, relay_errors.ErrUnauthorized
	}

	return *claims, nil
}

// UserID parses the token and returns the subject as a user id.
func (p *TokenParser) UserID(tokenString string) (uuid.UUID, error) {
	claims, err := p.ParseAccessToken(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, relay_errors.ErrUnauthorized
	}
	return id, nil
}

// IssueAccessToken signs a token for userID. Used by dev tooling and tests.
func (p *TokenParser) IssueAccessToken(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
