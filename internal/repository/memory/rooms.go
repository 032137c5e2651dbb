package memory

import (
	"context"
	"sort"

	"chat-relay/internal/domain/conversation"
	"chat-relay/internal/repository"
	relay_errors "chat-relay/pkg/errors"

	"github.com/google/uuid"
)

type RoomRepository struct {
	s *Store
}

func NewRoomRepository(s *Store) repository.RoomRepository {
	return &RoomRepository{s: s}
}

func (r *RoomRepository) Create(_ context.Context, room *conversation.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[room.Owner]; !ok {
		return relay_errors.ErrNotFound
	}
	for _, id := range room.MemberIDs {
		if _, ok := r.s.users[id]; !ok {
			return relay_errors.ErrNotFound
		}
	}
	if room.ID == uuid.Nil {
		room.ID = uuid.New()
	}
	room.CreatedAt = r.s.now()

	stored := *room
	stored.MemberIDs, stored.Messages = nil, nil
	r.s.rooms[room.ID] = stored
	for _, id := range room.MemberIDs {
		r.addMember(room.ID, id)
	}
	return nil
}

// addMember appends userID unless present. Caller holds the lock.
func (r *RoomRepository) addMember(roomID, userID uuid.UUID) bool {
	for _, m := range r.s.members[roomID] {
		if m.userID == userID {
			return false
		}
	}
	r.s.members[roomID] = append(r.s.members[roomID], membership{userID: userID, at: r.s.now()})
	return true
}

func (r *RoomRepository) GetByID(_ context.Context, id uuid.UUID) (conversation.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	room, ok := r.s.rooms[id]
	if !ok {
		return conversation.Room{}, relay_errors.ErrNotFound
	}
	return r.s.roomWithMembers(room), nil
}

func (r *RoomRepository) AddMember(_ context.Context, roomID, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.rooms[roomID]; !ok {
		return false, relay_errors.ErrNotFound
	}
	if _, ok := r.s.users[userID]; !ok {
		return false, relay_errors.ErrNotFound
	}
	return r.addMember(roomID, userID), nil
}

func (r *RoomRepository) ListForUser(_ context.Context, userID uuid.UUID) ([]conversation.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	type joined struct {
		room conversation.Room
		m    membership
	}
	var found []joined
	for roomID, ms := range r.s.members {
		for _, m := range ms {
			if m.userID == userID {
				found = append(found, joined{room: r.s.roomWithMembers(r.s.rooms[roomID]), m: m})
			}
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].m.at.Before(found[j].m.at) })

	out := make([]conversation.Room, 0, len(found))
	for _, f := range found {
		out = append(out, f.room)
	}
	return out, nil
}

func (r *RoomRepository) AppendMessage(_ context.Context, m *conversation.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.rooms[m.ConversationID]; !ok {
		return relay_errors.ErrNotFound
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Type == "" {
		m.Type = conversation.MessageText
	}
	m.CreatedAt = r.s.now()
	r.s.messages[m.ConversationID] = append(r.s.messages[m.ConversationID], *m)
	return nil
}

func (r *RoomRepository) ListMessages(_ context.Context, roomID uuid.UUID) ([]conversation.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if _, ok := r.s.rooms[roomID]; !ok {
		return nil, relay_errors.ErrNotFound
	}
	return copyMessages(r.s.messages[roomID]), nil
}
