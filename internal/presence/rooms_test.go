package presence

import (
	"testing"

	"chat-relay/internal/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRoomsJoinLeave(t *testing.T) {
	rooms := NewRooms()
	room := uuid.New()
	a, b := mocks.NewConn("a"), mocks.NewConn("b")

	assert.True(t, rooms.Join(room, a))
	assert.False(t, rooms.Join(room, a), "joining twice is a no-op")
	assert.True(t, rooms.Join(room, b))
	assert.Len(t, rooms.Members(room), 2)

	assert.True(t, rooms.Leave(room, a))
	assert.False(t, rooms.Leave(room, a))
	assert.False(t, rooms.IsMember(room, a))
	assert.Len(t, rooms.Members(room), 1)
}

func TestRoomsPurge(t *testing.T) {
	rooms := NewRooms()
	r1, r2 := uuid.New(), uuid.New()
	a, b := mocks.NewConn("a"), mocks.NewConn("b")

	rooms.Join(r1, a)
	rooms.Join(r2, a)
	rooms.Join(r2, b)

	left := rooms.Purge(a)
	assert.ElementsMatch(t, []uuid.UUID{r1, r2}, left)
	assert.Empty(t, rooms.Members(r1))
	assert.Len(t, rooms.Members(r2), 1)
	assert.Empty(t, rooms.RoomsOf(a))

	assert.Empty(t, rooms.Purge(a))
}
