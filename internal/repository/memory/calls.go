package memory

import (
	"context"
	"sort"

	"chat-relay/internal/domain/call"
	"chat-relay/internal/repository"
	relay_errors "chat-relay/pkg/errors"

	"github.com/google/uuid"
)

type CallRepository struct {
	s *Store
}

func NewCallRepository(s *Store) repository.CallRepository {
	return &CallRepository{s: s}
}

func (r *CallRepository) Create(_ context.Context, c *call.Call) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.Participants = call.Pair(c.From, c.To)
	r.s.calls[c.ID] = *c
	return nil
}

func (r *CallRepository) GetByID(_ context.Context, id uuid.UUID) (call.Call, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.calls[id]
	if !ok {
		return call.Call{}, relay_errors.ErrNotFound
	}
	return c, nil
}

func (r *CallRepository) LatestOngoing(_ context.Context, a, b uuid.UUID, kind call.Kind) (call.Call, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	pair := call.Pair(a, b)
	var latest *call.Call
	for _, c := range r.s.calls {
		if c.Participants != pair || c.Kind != kind || !c.Ongoing() {
			continue
		}
		if latest == nil || c.StartedAt.After(latest.StartedAt) {
			c := c
			latest = &c
		}
	}
	if latest == nil {
		return call.Call{}, relay_errors.ErrNotFound
	}
	return *latest, nil
}

func (r *CallRepository) Update(_ context.Context, c call.Call) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.calls[c.ID]; !ok {
		return relay_errors.ErrNotFound
	}
	r.s.calls[c.ID] = c
	return nil
}

func (r *CallRepository) ListForUser(_ context.Context, userID uuid.UUID, limit int) ([]call.Call, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []call.Call
	for _, c := range r.s.calls {
		if c.Participants[0] == userID || c.Participants[1] == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
