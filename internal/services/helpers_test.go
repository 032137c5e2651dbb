package services

import (
	"context"
	"testing"

	"chat-relay/internal/domain/user"
	"chat-relay/internal/repository"
	"chat-relay/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	repos, _ := memory.Repositories()
	return repos
}

func seedUser(t *testing.T, repos *repository.Repositories, name string) uuid.UUID {
	t.Helper()
	u := &user.User{Name: name, Email: name + "@example.test"}
	require.NoError(t, repos.Users.Create(context.Background(), u))
	return u.ID
}

func eventsFor(ns []Notification, id uuid.UUID) []string {
	var out []string
	for _, n := range ns {
		if n.UserID == id {
			out = append(out, n.Event)
		}
	}
	return out
}
