package repository

import (
	"context"

	"github.com/google/uuid"

	"chat-relay/internal/domain/call"
	"chat-relay/internal/domain/conversation"
	"chat-relay/internal/domain/user"
)

type UserRepository interface {
	Create(ctx context.Context, u *user.User) error
	GetAllUsers(ctx context.Context, page, limit int) ([]user.User, int64, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// UpdateProfile returns ErrAlreadyExists when the new email is taken.
	UpdateProfile(ctx context.Context, id uuid.UUID, p user.ProfileUpdate) (user.User, error)

	// MarkOnline stores the live socket id and flips status to Online.
	MarkOnline(ctx context.Context, id uuid.UUID, socketID string) error
	// MarkOffline only applies when the stored socket id still matches, so a
	// late disconnect of an old socket cannot clobber a newer connection.
	MarkOffline(ctx context.Context, id uuid.UUID, socketID string) (bool, error)
}

type FriendRepository interface {
	// CreateRequest returns ErrAlreadyExists when a pending request for the
	// same ordered pair is already stored.
	CreateRequest(ctx context.Context, r *user.FriendRequest) error
	GetRequest(ctx context.Context, id uuid.UUID) (user.FriendRequest, error)
	GetPendingRequest(ctx context.Context, senderID, recipientID uuid.UUID) (user.FriendRequest, error)
	ListIncomingRequests(ctx context.Context, recipientID uuid.UUID) ([]user.FriendRequest, error)
	// AcceptRequest deletes the request and links both users in one write.
	AcceptRequest(ctx context.Context, id uuid.UUID) (user.FriendRequest, error)
	AreFriends(ctx context.Context, a, b uuid.UUID) (bool, error)
	ListFriends(ctx context.Context, userID uuid.UUID) ([]user.User, error)
}

type ConversationRepository interface {
	CreateDirect(ctx context.Context, d *conversation.Direct) error
	GetDirectByID(ctx context.Context, id uuid.UUID) (conversation.Direct, error)
	GetDirectByPair(ctx context.Context, a, b uuid.UUID) (conversation.Direct, error)
	ListDirectForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Direct, error)

	// AppendDirectMessage stores m, bumps the unread counter and resets the
	// read set to the sender.
	AppendDirectMessage(ctx context.Context, m *conversation.Message) error
	ListDirectMessages(ctx context.Context, conversationID uuid.UUID) ([]conversation.Message, error)
	MarkRead(ctx context.Context, conversationID, userID uuid.UUID) error
}

type RoomRepository interface {
	Create(ctx context.Context, r *conversation.Room) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Room, error)
	// AddMember reports false when the user was already a member.
	AddMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Room, error)

	AppendMessage(ctx context.Context, m *conversation.Message) error
	ListMessages(ctx context.Context, roomID uuid.UUID) ([]conversation.Message, error)
}

type CallRepository interface {
	Create(ctx context.Context, c *call.Call) error
	GetByID(ctx context.Context, id uuid.UUID) (call.Call, error)
	// LatestOngoing finds the most recently started ongoing call of kind
	// between the pair, in either direction.
	LatestOngoing(ctx context.Context, a, b uuid.UUID, kind call.Kind) (call.Call, error)
	Update(ctx context.Context, c call.Call) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]call.Call, error)
}

// Repositories bundles every store the coordinator needs.
type Repositories struct {
	Users         UserRepository
	Friends       FriendRepository
	Conversations ConversationRepository
	Rooms         RoomRepository
	Calls         CallRepository
}
