package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chat-relay/internal/audit"
	"chat-relay/internal/domain/conversation"
	"chat-relay/internal/repository"
	relay_errors "chat-relay/pkg/errors"
	"chat-relay/pkg/keylock"
	"chat-relay/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DirectView is a direct conversation with its participants expanded.
type DirectView struct {
	conversation.Direct
	Members []UserSummary `json:"members"`
}

// MessageInput is an inbound chat message. For group messages
// ConversationID is the room id and To is ignored.
type MessageInput struct {
	ConversationID uuid.UUID
	From           uuid.UUID
	To             uuid.UUID
	Type           string
	Text           string
	File           string
}

func (in MessageInput) build() (conversation.Message, error) {
	if in.ConversationID == uuid.Nil {
		return conversation.Message{}, fmt.Errorf("conversation id is required: %w", relay_errors.ErrInvalidInput)
	}
	if in.From == uuid.Nil {
		return conversation.Message{}, fmt.Errorf("sender is required: %w", relay_errors.ErrInvalidInput)
	}
	kind, err := conversation.ParseMessageType(in.Type)
	if err != nil {
		return conversation.Message{}, fmt.Errorf("%v: %w", err, relay_errors.ErrInvalidInput)
	}
	text := strings.TrimSpace(in.Text)
	file := strings.TrimSpace(in.File)
	if kind.HasFile() && file == "" {
		return conversation.Message{}, fmt.Errorf("%s message needs a file: %w", kind, relay_errors.ErrInvalidInput)
	}
	if !kind.HasFile() && text == "" {
		return conversation.Message{}, fmt.Errorf("message text is empty: %w", relay_errors.ErrInvalidInput)
	}
	return conversation.Message{
		ConversationID: in.ConversationID,
		From:           in.From,
		To:             in.To,
		Type:           kind,
		Text:           text,
		File:           file,
	}, nil
}

type ConversationService struct {
	users  repository.UserRepository
	convs  repository.ConversationRepository
	locks  *keylock.KeyLock
	signer AttachmentSigner
	audit  *audit.Emitter
	logger *logger.Logger
}

func NewConversationService(users repository.UserRepository, convs repository.ConversationRepository, signer AttachmentSigner, emitter *audit.Emitter, l *logger.Logger) *ConversationService {
	if l == nil {
		l = logger.Nop()
	}
	return &ConversationService{
		users:  users,
		convs:  convs,
		locks:  keylock.New(),
		signer: signer,
		audit:  emitter,
		logger: l.Named("conversations"),
	}
}

// FindOrCreateDirect returns the single conversation between a and b,
// creating it on first use. created reports whether this call stored it.
func (s *ConversationService) FindOrCreateDirect(ctx context.Context, a, b uuid.UUID) (DirectView, bool, error) {
	if a == uuid.Nil || b == uuid.Nil {
		return DirectView{}, false, fmt.Errorf("conversation needs two users: %w", relay_errors.ErrInvalidInput)
	}
	if a == b {
		return DirectView{}, false, fmt.Errorf("conversation with yourself: %w", relay_errors.ErrInvalidInput)
	}

	unlock := s.locks.Lock(keylock.PairKey("direct", a.String(), b.String()))
	defer unlock()

	created := false
	d, err := s.convs.GetDirectByPair(ctx, a, b)
	if errors.Is(err, relay_errors.ErrNotFound) {
		d = conversation.Direct{Participants: [2]uuid.UUID{a, b}}
		err = s.convs.CreateDirect(ctx, &d)
		switch {
		case err == nil:
			created = true
		case errors.Is(err, relay_errors.ErrAlreadyExists):
			d, err = s.convs.GetDirectByPair(ctx, a, b)
		}
	}
	if err != nil {
		return DirectView{}, false, err
	}

	if created {
		s.audit.Emit(ctx, audit.ConversationStarted, a.String(), map[string]any{
			"conversation_id": d.ID.String(),
			"peer_id":         b.String(),
		})
	}

	views, err := s.expand(ctx, []conversation.Direct{d})
	if err != nil {
		return DirectView{}, created, err
	}
	return views[0], created, nil
}

// ListDirect returns every direct conversation userID takes part in.
func (s *ConversationService) ListDirect(ctx context.Context, userID uuid.UUID) ([]DirectView, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("user id is required: %w", relay_errors.ErrInvalidInput)
	}
	directs, err := s.convs.ListDirectForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range directs {
		resolveFile(ctx, s.signer, directs[i].LastMessage)
	}
	return s.expand(ctx, directs)
}

func (s *ConversationService) expand(ctx context.Context, directs []conversation.Direct) ([]DirectView, error) {
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, d := range directs {
		for _, p := range d.Participants {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				ids = append(ids, p)
			}
		}
	}

	byID := make(map[uuid.UUID]UserSummary, len(ids))
	if len(ids) > 0 {
		people, err := s.users.GetUsersByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, p := range people {
			byID[p.ID] = summarize(p)
		}
	}

	out := make([]DirectView, 0, len(directs))
	for _, d := range directs {
		view := DirectView{Direct: d, Members: make([]UserSummary, 0, 2)}
		for _, p := range d.Participants {
			if sum, ok := byID[p]; ok {
				view.Members = append(view.Members, sum)
			} else {
				view.Members = append(view.Members, UserSummary{ID: p})
			}
		}
		out = append(out, view)
	}
	return out, nil
}

// Messages returns the conversation history in append order. A non-Nil viewer must
// be one of its participants; uuid.Nil skips the check for anonymous reads.
func (s *ConversationService) Messages(ctx context.Context, conversationID, viewer uuid.UUID) ([]conversation.Message, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("conversation id is required: %w", relay_errors.ErrInvalidInput)
	}
	if viewer != uuid.Nil {
		d, err := s.convs.GetDirectByID(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		if !d.HasParticipant(viewer) {
			return nil, relay_errors.ErrForbidden
		}
	}
	msgs, err := s.convs.ListDirectMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	resolveFiles(ctx, s.signer, msgs)
	return msgs, nil
}

// AppendMessage stores a direct message and yields new_message for both
// participants. Appends to one conversation are serialized.
func (s *ConversationService) AppendMessage(ctx context.Context, in MessageInput) (conversation.Message, []Notification, error) {
	msg, err := in.build()
	if err != nil {
		return conversation.Message{}, nil, err
	}

	unlock := s.locks.Lock(keylock.OrderedKey("conversation", in.ConversationID.String()))
	defer unlock()

	d, err := s.convs.GetDirectByID(ctx, in.ConversationID)
	if err != nil {
		return conversation.Message{}, nil, err
	}
	if !d.HasParticipant(msg.From) {
		return conversation.Message{}, nil, relay_errors.ErrForbidden
	}
	peer := d.Peer(msg.From)
	if msg.To == uuid.Nil {
		msg.To = peer
	}
	if msg.To != peer {
		return conversation.Message{}, nil, fmt.Errorf("recipient is not in the conversation: %w", relay_errors.ErrInvalidInput)
	}

	if err := s.convs.AppendDirectMessage(ctx, &msg); err != nil {
		return conversation.Message{}, nil, err
	}
	resolveFile(ctx, s.signer, &msg)

	payload := MessagePayload{ConversationID: d.ID, Message: msg}
	return msg, []Notification{
		{UserID: msg.To, Event: EventNewMessage, Data: payload},
		{UserID: msg.From, Event: EventNewMessage, Data: payload},
	}, nil
}

// MarkRead clears the unread counter for userID.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) error {
	if conversationID == uuid.Nil || userID == uuid.Nil {
		return relay_errors.ErrInvalidInput
	}
	unlock := s.locks.Lock(keylock.OrderedKey("conversation", conversationID.String()))
	defer unlock()

	d, err := s.convs.GetDirectByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !d.HasParticipant(userID) {
		return relay_errors.ErrForbidden
	}
	if err := s.convs.MarkRead(ctx, conversationID, userID); err != nil {
		s.logger.Ctx(ctx).Error("mark read failed", zap.String("conversation_id", conversationID.String()), zap.Error(err))
		return err
	}
	return nil
}
