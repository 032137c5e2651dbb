package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-relay/internal/auth"
	"chat-relay/internal/domain/user"
	"chat-relay/internal/middleware"
	"chat-relay/internal/mocks"
	"chat-relay/internal/presence"
	"chat-relay/internal/repository/memory"
	"chat-relay/internal/services"
	"chat-relay/internal/transport/httpdto"
	"chat-relay/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	engine   *gin.Engine
	registry *presence.Registry
	tokens   *auth.TokenParser
	alice    uuid.UUID
	bob      uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repos, _ := memory.Repositories()
	ctx := context.Background()
	alice := &user.User{Name: "alice", Email: "alice@example.test"}
	bob := &user.User{Name: "bob", Email: "bob@example.test"}
	require.NoError(t, repos.Users.Create(ctx, alice))
	require.NoError(t, repos.Users.Create(ctx, bob))

	registry := presence.NewRegistry(repos.Users, nil, logger.Nop())
	h := NewUserHandler(services.NewUserService(repos.Users, registry, nil, logger.Nop()))

	engine := gin.New()
	engine.Use(middleware.ErrorHandler(logger.Nop()))
	v1 := engine.Group("/v1/users")
	v1.GET("", h.List)
	v1.GET("/:id", h.Get)
	v1.GET("/:id/presence", h.Presence)

	tokens := auth.NewTokenParser("secret")
	v1.PATCH("/me", middleware.AuthMiddleware(tokens), h.UpdateMe)

	return &fixture{engine: engine, registry: registry, tokens: tokens, alice: alice.ID, bob: bob.ID}
}

func (f *fixture) patchMe(t *testing.T, as uuid.UUID, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPatch, "/v1/users/me", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if as != uuid.Nil {
		token, err := f.tokens.IssueAccessToken(as, time.Minute)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code
}

func (f *fixture) get(t *testing.T, path string, out any) int {
	t.Helper()
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
	}
	return w.Code
}

func TestUserHandlerList(t *testing.T) {
	f := newFixture(t)

	var resp httpdto.Response[httpdto.ListUsersResponse]
	code := f.get(t, "/v1/users?page=1&limit=10", &resp)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Equal(t, int64(2), resp.Data.Total)
	assert.Len(t, resp.Data.Users, 2)
	assert.Equal(t, 1, resp.Data.Page)
}

func TestUserHandlerGet(t *testing.T) {
	f := newFixture(t)

	var resp httpdto.Response[httpdto.UserDTO]
	code := f.get(t, "/v1/users/"+f.alice.String(), &resp)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "alice", resp.Data.Name)
	assert.Equal(t, string(user.StatusOffline), resp.Data.Status)

	var missing httpdto.Response[any]
	assert.Equal(t, http.StatusNotFound, f.get(t, "/v1/users/"+uuid.NewString(), &missing))
	assert.Equal(t, "NOT_FOUND", missing.Code)

	var bad httpdto.Response[any]
	assert.Equal(t, http.StatusBadRequest, f.get(t, "/v1/users/not-a-uuid", &bad))
	assert.Equal(t, "INVALID_INPUT", bad.Code)
}

func TestUserHandlerPresence(t *testing.T) {
	f := newFixture(t)

	var resp httpdto.Response[httpdto.PresenceDTO]
	require.Equal(t, http.StatusOK, f.get(t, "/v1/users/"+f.bob.String()+"/presence", &resp))
	assert.False(t, resp.Data.Online)

	ok, err := f.registry.Connect(context.Background(), f.bob, mocks.NewConn("c1"))
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, http.StatusOK, f.get(t, "/v1/users/"+f.bob.String()+"/presence", &resp))
	assert.True(t, resp.Data.Online)
	assert.Equal(t, string(user.StatusOnline), resp.Data.Status)
}

func TestUserHandlerUpdateMe(t *testing.T) {
	f := newFixture(t)

	t.Run("requires a token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, f.patchMe(t, uuid.Nil, `{"name":"eve"}`, nil))
	})

	t.Run("updates only the given fields", func(t *testing.T) {
		var resp httpdto.Response[httpdto.UserDTO]
		code := f.patchMe(t, f.alice, `{"name":"Alice A.","about":"hello","avatar":"https://cdn.example.test/a.png"}`, &resp)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Alice A.", resp.Data.Name)
		assert.Equal(t, "hello", resp.Data.About)
		assert.Equal(t, "https://cdn.example.test/a.png", resp.Data.Avatar)
		assert.Equal(t, "alice@example.test", resp.Data.Email)

		var got httpdto.Response[httpdto.UserDTO]
		require.Equal(t, http.StatusOK, f.get(t, "/v1/users/"+f.alice.String(), &got))
		assert.Equal(t, "Alice A.", got.Data.Name)
	})

	t.Run("password fields are rejected", func(t *testing.T) {
		for _, body := range []string{
			`{"password":"hunter2"}`,
			`{"name":"x","passwordConfirm":"hunter2"}`,
			`{"password_confirm":"hunter2"}`,
		} {
			var resp httpdto.Response[any]
			assert.Equal(t, http.StatusBadRequest, f.patchMe(t, f.alice, body, &resp), body)
			assert.Equal(t, "INVALID_INPUT", resp.Code, body)
		}

		var got httpdto.Response[httpdto.UserDTO]
		require.Equal(t, http.StatusOK, f.get(t, "/v1/users/"+f.alice.String(), &got))
		assert.Equal(t, "Alice A.", got.Data.Name)
	})

	t.Run("invalid bodies", func(t *testing.T) {
		for _, body := range []string{`not json`, `{}`, `{"name":"   "}`, `{"email":"nope"}`} {
			var resp httpdto.Response[any]
			assert.Equal(t, http.StatusBadRequest, f.patchMe(t, f.bob, body, &resp), body)
			assert.Equal(t, "INVALID_INPUT", resp.Code, body)
		}
	})

	t.Run("email already taken", func(t *testing.T) {
		var resp httpdto.Response[any]
		assert.Equal(t, http.StatusConflict, f.patchMe(t, f.bob, `{"email":"alice@example.test"}`, &resp))
		assert.Equal(t, "CONFLICT", resp.Code)
	})
}
