package services

import (
	"context"
	"errors"
	"fmt"

	"chat-relay/internal/audit"
	"chat-relay/internal/domain/user"
	"chat-relay/internal/repository"
	relay_errors "chat-relay/pkg/errors"
	"chat-relay/pkg/keylock"
	"chat-relay/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type FriendService struct {
	users   repository.UserRepository
	friends repository.FriendRepository
	locks   *keylock.KeyLock
	audit   *audit.Emitter
	logger  *logger.Logger
}

func NewFriendService(users repository.UserRepository, friends repository.FriendRepository, emitter *audit.Emitter, l *logger.Logger) *FriendService {
	if l == nil {
		l = logger.Nop()
	}
	return &FriendService{
		users:   users,
		friends: friends,
		locks:   keylock.New(),
		audit:   emitter,
		logger:  l.Named("friends"),
	}
}

// SendRequest stores a pending request from -> to. When one is already
// pending for the same ordered pair the stored request is returned and only
// the sender is told again.
func (s *FriendService) SendRequest(ctx context.Context, from, to uuid.UUID) (user.FriendRequest, []Notification, error) {
	if from == uuid.Nil || to == uuid.Nil {
		return user.FriendRequest{}, nil, fmt.Errorf("friend request needs both users: %w", relay_errors.ErrInvalidInput)
	}
	if from == to {
		return user.FriendRequest{}, nil, relay_errors.ErrSelfRequest
	}

	unlock := s.locks.Lock(keylock.OrderedKey("friend-request", from.String(), to.String()))
	defer unlock()

	sender, err := s.users.GetUserByID(ctx, from)
	if err != nil {
		return user.FriendRequest{}, nil, err
	}
	if ok, err := s.users.Exists(ctx, to); err != nil {
		return user.FriendRequest{}, nil, err
	} else if !ok {
		return user.FriendRequest{}, nil, relay_errors.ErrNotFound
	}

	friends, err := s.friends.AreFriends(ctx, from, to)
	if err != nil {
		return user.FriendRequest{}, nil, err
	}
	if friends {
		return user.FriendRequest{}, nil, relay_errors.ErrAlreadyFriends
	}

	existing, err := s.friends.GetPendingRequest(ctx, from, to)
	switch {
	case err == nil:
		return existing, []Notification{{
			UserID: from,
			Event:  EventRequestSent,
			Data:   FriendRequestPayload{Message: "Request already sent", RequestID: existing.ID},
		}}, nil
	case !errors.Is(err, relay_errors.ErrNotFound):
		return user.FriendRequest{}, nil, err
	}

	req := &user.FriendRequest{SenderID: from, RecipientID: to}
	if err := s.friends.CreateRequest(ctx, req); err != nil {
		if !errors.Is(err, relay_errors.ErrAlreadyExists) {
			return user.FriendRequest{}, nil, err
		}
		stored, getErr := s.friends.GetPendingRequest(ctx, from, to)
		if getErr != nil {
			return user.FriendRequest{}, nil, getErr
		}
		return stored, []Notification{{
			UserID: from,
			Event:  EventRequestSent,
			Data:   FriendRequestPayload{Message: "Request already sent", RequestID: stored.ID},
		}}, nil
	}

	s.audit.Emit(ctx, audit.FriendRequestSent, from.String(), map[string]any{
		"request_id":   req.ID.String(),
		"recipient_id": to.String(),
	})

	summary := summarize(sender)
	return *req, []Notification{
		{
			UserID: to,
			Event:  EventNewFriendRequest,
			Data:   FriendRequestPayload{Message: "New friend request received", RequestID: req.ID, From: &summary},
		},
		{
			UserID: from,
			Event:  EventRequestSent,
			Data:   FriendRequestPayload{Message: "Request sent successfully!", RequestID: req.ID},
		},
	}, nil
}

// AcceptRequest deletes the request and links both users. Only the
// recipient may accept.
func (s *FriendService) AcceptRequest(ctx context.Context, requestID, actor uuid.UUID) (user.FriendRequest, []Notification, error) {
	if actor == uuid.Nil {
		return user.FriendRequest{}, nil, relay_errors.ErrNoIdentity
	}
	if requestID == uuid.Nil {
		return user.FriendRequest{}, nil, fmt.Errorf("request id is required: %w", relay_errors.ErrInvalidInput)
	}
	pending, err := s.friends.GetRequest(ctx, requestID)
	if err != nil {
		return user.FriendRequest{}, nil, err
	}
	if pending.RecipientID != actor {
		return user.FriendRequest{}, nil, relay_errors.ErrForbidden
	}

	req, err := s.friends.AcceptRequest(ctx, requestID)
	if err != nil {
		return user.FriendRequest{}, nil, err
	}

	s.audit.Emit(ctx, audit.FriendRequestAccepted, req.RecipientID.String(), map[string]any{
		"request_id": req.ID.String(),
		"sender_id":  req.SenderID.String(),
	})

	people, err := s.users.GetUsersByIDs(ctx, []uuid.UUID{req.SenderID, req.RecipientID})
	if err != nil {
		// The friendship is stored; fall back to bare ids.
		s.logger.Ctx(ctx).Warn("load friend summaries failed", zap.Error(err))
	}
	byID := make(map[uuid.UUID]UserSummary, 2)
	for _, p := range people {
		byID[p.ID] = summarize(p)
	}
	summaryOf := func(id uuid.UUID) UserSummary {
		if sum, ok := byID[id]; ok {
			return sum
		}
		return UserSummary{ID: id}
	}

	return req, []Notification{
		{
			UserID: req.SenderID,
			Event:  EventRequestAccepted,
			Data:   RequestAcceptedPayload{Message: "Friend request accepted", RequestID: req.ID, Friend: summaryOf(req.RecipientID)},
		},
		{
			UserID: req.RecipientID,
			Event:  EventRequestAccepted,
			Data:   RequestAcceptedPayload{Message: "Friend request accepted", RequestID: req.ID, Friend: summaryOf(req.SenderID)},
		},
	}, nil
}

func (s *FriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]UserSummary, error) {
	friends, err := s.friends.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]UserSummary, 0, len(friends))
	for _, f := range friends {
		out = append(out, summarize(f))
	}
	return out, nil
}

// ListRequests returns the pending requests addressed to userID.
func (s *FriendService) ListRequests(ctx context.Context, userID uuid.UUID) ([]user.FriendRequest, error) {
	return s.friends.ListIncomingRequests(ctx, userID)
}
