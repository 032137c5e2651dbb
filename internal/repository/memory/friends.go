package memory

import (
	"context"
	"sort"

	"chat-relay/internal/domain/user"
	"chat-relay/internal/repository"
	relay_errors "chat-relay/pkg/errors"

	"github.com/google/uuid"
)

type FriendRepository struct {
	s *Store
}

func NewFriendRepository(s *Store) repository.FriendRepository {
	return &FriendRepository{s: s}
}

func (r *FriendRepository) CreateRequest(_ context.Context, fr *user.FriendRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[fr.SenderID]; !ok {
		return relay_errors.ErrNotFound
	}
	if _, ok := r.s.users[fr.RecipientID]; !ok {
		return relay_errors.ErrNotFound
	}
	for _, existing := range r.s.requests {
		if existing.SenderID == fr.SenderID && existing.RecipientID == fr.RecipientID {
			return relay_errors.ErrAlreadyExists
		}
	}
	if fr.ID == uuid.Nil {
		fr.ID = uuid.New()
	}
	if fr.CreatedAt.IsZero() {
		fr.CreatedAt = r.s.now()
	}
	r.s.requests[fr.ID] = *fr
	return nil
}

func (r *FriendRepository) GetRequest(_ context.Context, id uuid.UUID) (user.FriendRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	fr, ok := r.s.requests[id]
	if !ok {
		return user.FriendRequest{}, relay_errors.ErrNotFound
	}
	return fr, nil
}

func (r *FriendRepository) GetPendingRequest(_ context.Context, senderID, recipientID uuid.UUID) (user.FriendRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, fr := range r.s.requests {
		if fr.SenderID == senderID && fr.RecipientID == recipientID {
			return fr, nil
		}
	}
	return user.FriendRequest{}, relay_errors.ErrNotFound
}

func (r *FriendRepository) ListIncomingRequests(_ context.Context, recipientID uuid.UUID) ([]user.FriendRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []user.FriendRequest
	for _, fr := range r.s.requests {
		if fr.RecipientID == recipientID {
			out = append(out, fr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *FriendRepository) AcceptRequest(_ context.Context, id uuid.UUID) (user.FriendRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	fr, ok := r.s.requests[id]
	if !ok {
		return user.FriendRequest{}, relay_errors.ErrNotFound
	}
	delete(r.s.requests, id)
	now := r.s.now()
	r.s.addFriend(fr.SenderID, fr.RecipientID, now)
	r.s.addFriend(fr.RecipientID, fr.SenderID, now)
	return fr, nil
}

func (r *FriendRepository) AreFriends(_ context.Context, a, b uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.isFriend(a, b), nil
}

func (r *FriendRepository) ListFriends(_ context.Context, userID uuid.UUID) ([]user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []user.User
	for _, f := range r.s.friendships[userID] {
		if u, ok := r.s.users[f.friendID]; ok {
			out = append(out, r.s.hydrate(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
