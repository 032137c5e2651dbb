// Package memory holds map backed repositories. They honour the same
// contracts as the postgres ones and back the memory store driver and tests.
package memory

import (
	"sort"
	"sync"
	"time"

	"chat-relay/internal/domain/call"
	"chat-relay/internal/domain/conversation"
	"chat-relay/internal/domain/user"
	"chat-relay/internal/repository"

	"github.com/google/uuid"
)

type friendship struct {
	friendID uuid.UUID
	at       time.Time
}

type membership struct {
	userID uuid.UUID
	at     time.Time
}

// Store is the shared state behind every memory repository.
type Store struct {
	mu sync.RWMutex

	users       map[uuid.UUID]user.User
	friendships map[uuid.UUID][]friendship
	requests    map[uuid.UUID]user.FriendRequest
	directs     map[uuid.UUID]conversation.Direct
	pairs       map[[2]uuid.UUID]uuid.UUID
	rooms       map[uuid.UUID]conversation.Room
	members     map[uuid.UUID][]membership
	messages    map[uuid.UUID][]conversation.Message
	calls       map[uuid.UUID]call.Call

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:       make(map[uuid.UUID]user.User),
		friendships: make(map[uuid.UUID][]friendship),
		requests:    make(map[uuid.UUID]user.FriendRequest),
		directs:     make(map[uuid.UUID]conversation.Direct),
		pairs:       make(map[[2]uuid.UUID]uuid.UUID),
		rooms:       make(map[uuid.UUID]conversation.Room),
		members:     make(map[uuid.UUID][]membership),
		messages:    make(map[uuid.UUID][]conversation.Message),
		calls:       make(map[uuid.UUID]call.Call),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Repositories returns every memory repository on a fresh store.
func Repositories() (*repository.Repositories, *Store) {
	s := NewStore()
	return &repository.Repositories{
		Users:         NewUserRepository(s),
		Friends:       NewFriendRepository(s),
		Conversations: NewConversationRepository(s),
		Rooms:         NewRoomRepository(s),
		Calls:         NewCallRepository(s),
	}, s
}

// hydrate fills the derived Friends and Groups sets. Caller holds the lock.
func (s *Store) hydrate(u user.User) user.User {
	u.Friends = []uuid.UUID{}
	for _, f := range s.friendships[u.ID] {
		u.Friends = append(u.Friends, f.friendID)
	}
	u.Groups = []uuid.UUID{}
	type joined struct {
		room uuid.UUID
		at   time.Time
	}
	var groups []joined
	for roomID, ms := range s.members {
		for _, m := range ms {
			if m.userID == u.ID {
				groups = append(groups, joined{roomID, m.at})
			}
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].at.Before(groups[j].at) })
	for _, g := range groups {
		u.Groups = append(u.Groups, g.room)
	}
	return u
}

func (s *Store) roomWithMembers(r conversation.Room) conversation.Room {
	r.MemberIDs = []uuid.UUID{}
	for _, m := range s.members[r.ID] {
		r.MemberIDs = append(r.MemberIDs, m.userID)
	}
	return r
}

func (s *Store) isFriend(a, b uuid.UUID) bool {
	for _, f := range s.friendships[a] {
		if f.friendID == b {
			return true
		}
	}
	return false
}

func (s *Store) addFriend(a, b uuid.UUID, at time.Time) {
	if !s.isFriend(a, b) {
		s.friendships[a] = append(s.friendships[a], friendship{friendID: b, at: at})
	}
}

func copyMessages(in []conversation.Message) []conversation.Message {
	out := make([]conversation.Message, len(in))
	copy(out, in)
	return out
}
