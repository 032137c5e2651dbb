package memory

import (
	"context"
	"sort"

	"chat-relay/internal/domain/conversation"
	"chat-relay/internal/repository"
	relay_errors "chat-relay/pkg/errors"

	"github.com/google/uuid"
)

type ConversationRepository struct {
	s *Store
}

func NewConversationRepository(s *Store) repository.ConversationRepository {
	return &ConversationRepository{s: s}
}

func (r *ConversationRepository) CreateDirect(_ context.Context, d *conversation.Direct) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d.Participants = conversation.SortedPair(d.Participants[0], d.Participants[1])
	if _, ok := r.s.pairs[d.Participants]; ok {
		return relay_errors.ErrAlreadyExists
	}
	for _, id := range d.Participants {
		if _, ok := r.s.users[id]; !ok {
			return relay_errors.ErrNotFound
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	now := r.s.now()
	d.CreatedAt, d.UpdatedAt = now, now
	if d.ReadBy == nil {
		d.ReadBy = []uuid.UUID{}
	}
	stored := *d
	stored.Messages, stored.LastMessage = nil, nil
	r.s.directs[d.ID] = stored
	r.s.pairs[d.Participants] = d.ID
	return nil
}

func (r *ConversationRepository) GetDirectByID(_ context.Context, id uuid.UUID) (conversation.Direct, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.directs[id]
	if !ok {
		return conversation.Direct{}, relay_errors.ErrNotFound
	}
	return d, nil
}

func (r *ConversationRepository) GetDirectByPair(_ context.Context, a, b uuid.UUID) (conversation.Direct, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.pairs[conversation.SortedPair(a, b)]
	if !ok {
		return conversation.Direct{}, relay_errors.ErrNotFound
	}
	return r.s.directs[id], nil
}

func (r *ConversationRepository) ListDirectForUser(_ context.Context, userID uuid.UUID) ([]conversation.Direct, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []conversation.Direct
	for _, d := range r.s.directs {
		if !d.HasParticipant(userID) {
			continue
		}
		if msgs := r.s.messages[d.ID]; len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			d.LastMessage = &last
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *ConversationRepository) AppendDirectMessage(_ context.Context, m *conversation.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.directs[m.ConversationID]
	if !ok {
		return relay_errors.ErrNotFound
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Type == "" {
		m.Type = conversation.MessageText
	}
	m.CreatedAt = r.s.now()

	d.UnreadCount++
	d.ReadBy = []uuid.UUID{m.From}
	d.UpdatedAt = m.CreatedAt
	r.s.directs[d.ID] = d
	r.s.messages[d.ID] = append(r.s.messages[d.ID], *m)
	return nil
}

func (r *ConversationRepository) ListDirectMessages(_ context.Context, conversationID uuid.UUID) ([]conversation.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if _, ok := r.s.directs[conversationID]; !ok {
		return nil, relay_errors.ErrNotFound
	}
	return copyMessages(r.s.messages[conversationID]), nil
}

func (r *ConversationRepository) MarkRead(_ context.Context, conversationID, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.directs[conversationID]
	if !ok {
		return relay_errors.ErrNotFound
	}
	d.UnreadCount = 0
	seen := false
	for _, id := range d.ReadBy {
		if id == userID {
			seen = true
			break
		}
	}
	if !seen {
		d.ReadBy = append(append([]uuid.UUID{}, d.ReadBy...), userID)
	}
	r.s.directs[conversationID] = d
	return nil
}
