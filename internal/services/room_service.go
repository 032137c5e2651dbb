package services

import (
	"context"
	"fmt"
	"strings"

	"chat-relay/internal/audit"
	"chat-relay/internal/domain/conversation"
	"chat-relay/internal/repository"
	relay_errors "chat-relay/pkg/errors"
	"chat-relay/pkg/keylock"
	"chat-relay/pkg/logger"

	"github.com/google/uuid"
)

// RoomService owns persisted group state. Which connections currently sit in
// a room is tracked by presence.Rooms.
type RoomService struct {
	users  repository.UserRepository
	rooms  repository.RoomRepository
	locks  *keylock.KeyLock
	signer AttachmentSigner
	audit  *audit.Emitter
	logger *logger.Logger
}

func NewRoomService(users repository.UserRepository, rooms repository.RoomRepository, signer AttachmentSigner, emitter *audit.Emitter, l *logger.Logger) *RoomService {
	if l == nil {
		l = logger.Nop()
	}
	return &RoomService{
		users:  users,
		rooms:  rooms,
		locks:  keylock.New(),
		signer: signer,
		audit:  emitter,
		logger: l.Named("rooms"),
	}
}

// CreateRoom stores a room owned by owner. The owner is always a member.
func (s *RoomService) CreateRoom(ctx context.Context, name string, owner uuid.UUID, members []uuid.UUID) (conversation.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return conversation.Room{}, fmt.Errorf("room title is required: %w", relay_errors.ErrInvalidInput)
	}
	if owner == uuid.Nil {
		return conversation.Room{}, fmt.Errorf("room owner is required: %w", relay_errors.ErrInvalidInput)
	}

	ids := []uuid.UUID{owner}
	seen := map[uuid.UUID]struct{}{owner: {}}
	for _, m := range members {
		if m == uuid.Nil {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		ids = append(ids, m)
	}

	room := conversation.Room{Name: name, Owner: owner, MemberIDs: ids}
	if err := s.rooms.Create(ctx, &room); err != nil {
		return conversation.Room{}, err
	}

	s.audit.Emit(ctx, audit.RoomCreated, owner.String(), map[string]any{
		"room_id": room.ID.String(),
		"members": len(ids),
	})
	return room, nil
}

// JoinRoom adds userID to the room's members unless already there. userID
// may be uuid.Nil for connections without identity, in which case the room
// is only looked up.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, userID uuid.UUID) (conversation.Room, bool, error) {
	if roomID == uuid.Nil {
		return conversation.Room{}, false, relay_errors.ErrNotFound
	}

	unlock := s.locks.Lock(keylock.OrderedKey("room", roomID.String()))
	defer unlock()

	room, err := s.rooms.GetByID(ctx, roomID)
	if err != nil {
		return conversation.Room{}, false, err
	}
	if userID == uuid.Nil || room.HasMember(userID) {
		return room, false, nil
	}

	added, err := s.rooms.AddMember(ctx, roomID, userID)
	if err != nil {
		return conversation.Room{}, false, err
	}
	if added {
		room.MemberIDs = append(room.MemberIDs, userID)
		s.audit.Emit(ctx, audit.RoomJoined, userID.String(), map[string]any{"room_id": roomID.String()})
	}
	return room, added, nil
}

// AppendGroupMessage stores a room message with the author's display name.
// Only persisted members may post. Delivery to the live members is the
// caller's job.
func (s *RoomService) AppendGroupMessage(ctx context.Context, in MessageInput) (conversation.Message, error) {
	in.To = in.ConversationID
	msg, err := in.build()
	if err != nil {
		return conversation.Message{}, err
	}

	author, err := s.users.GetUserByID(ctx, msg.From)
	if err != nil {
		return conversation.Message{}, err
	}
	msg.Sender = author.Name

	unlock := s.locks.Lock(keylock.OrderedKey("room", msg.ConversationID.String()))
	defer unlock()

	room, err := s.rooms.GetByID(ctx, msg.ConversationID)
	if err != nil {
		return conversation.Message{}, err
	}
	if !room.HasMember(msg.From) {
		return conversation.Message{}, relay_errors.ErrForbidden
	}

	if err := s.rooms.AppendMessage(ctx, &msg); err != nil {
		return conversation.Message{}, err
	}
	resolveFile(ctx, s.signer, &msg)
	return msg, nil
}

func (s *RoomService) ListRooms(ctx context.Context, userID uuid.UUID) ([]conversation.Room, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required: %w", relay_errors.ErrInvalidInput)
	}
	return s.rooms.ListForUser(ctx, userID)
}

func (s *RoomService) RoomMessages(ctx context.Context, roomID uuid.UUID) ([]conversation.Message, error) {
	if roomID == uuid.Nil {
		return nil, fmt.Errorf("room id is required: %w", relay_errors.ErrInvalidInput)
	}
	msgs, err := s.rooms.ListMessages(ctx, roomID)
	if err != nil {
		return nil, err
	}
	resolveFiles(ctx, s.signer, msgs)
	return msgs, nil
}
