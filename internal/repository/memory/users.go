package memory

import (
	"context"
	"sort"

	"chat-relay/internal/domain/user"
	"chat-relay/internal/repository"
	relay_errors "chat-relay/pkg/errors"

	"github.com/google/uuid"
)

type UserRepository struct {
	s *Store
}

func NewUserRepository(s *Store) repository.UserRepository {
	return &UserRepository{s: s}
}

func (r *UserRepository) Create(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if _, ok := r.s.users[u.ID]; ok {
		return relay_errors.ErrAlreadyExists
	}
	if u.Email != "" {
		for _, existing := range r.s.users {
			if existing.Email == u.Email {
				return relay_errors.ErrAlreadyExists
			}
		}
	}
	if u.Status == "" {
		u.Status = user.StatusOffline
	}
	u.CreatedAt = r.s.now()
	stored := *u
	stored.Friends, stored.Groups = nil, nil
	r.s.users[u.ID] = stored
	return nil
}

func (r *UserRepository) GetAllUsers(_ context.Context, page, limit int) ([]user.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := make([]user.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		all = append(all, r.s.hydrate(u))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return []user.User{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *UserRepository) GetUserByID(_ context.Context, id uuid.UUID) (user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, relay_errors.ErrNotFound
	}
	return r.s.hydrate(u), nil
}

func (r *UserRepository) GetUsersByIDs(_ context.Context, ids []uuid.UUID) ([]user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []user.User
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, r.s.hydrate(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *UserRepository) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.users[id]
	return ok, nil
}

func (r *UserRepository) UpdateProfile(_ context.Context, id uuid.UUID, p user.ProfileUpdate) (user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, relay_errors.ErrNotFound
	}
	if p.Email != nil && *p.Email != "" {
		for otherID, other := range r.s.users {
			if otherID != id && other.Email == *p.Email {
				return user.User{}, relay_errors.ErrAlreadyExists
			}
		}
	}
	p.Apply(&u)
	r.s.users[id] = u
	return r.s.hydrate(u), nil
}

func (r *UserRepository) MarkOnline(_ context.Context, id uuid.UUID, socketID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return relay_errors.ErrNotFound
	}
	u.Status = user.StatusOnline
	u.SocketID = socketID
	r.s.users[id] = u
	return nil
}

func (r *UserRepository) MarkOffline(_ context.Context, id uuid.UUID, socketID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok || u.SocketID != socketID {
		return false, nil
	}
	u.Status = user.StatusOffline
	u.SocketID = ""
	r.s.users[id] = u
	return true, nil
}
