package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-relay/internal/audit"
	"chat-relay/internal/domain/call"
	"chat-relay/internal/repository"
	relay_errors "chat-relay/pkg/errors"
	"chat-relay/pkg/keylock"
	"chat-relay/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Signal is a call event reported by one side after start.
type Signal string

const (
	SignalNotPicked Signal = "not_picked"
	SignalAccepted  Signal = "accepted"
	SignalDenied    Signal = "denied"
	SignalBusy      Signal = "busy"
	SignalEnded     Signal = "ended"
)

// Event returns the outbound event name for a signal on a call kind.
func (sig Signal) Event(kind call.Kind) string {
	switch sig {
	case SignalNotPicked:
		return string(kind) + "_call_missed"
	case SignalAccepted:
		return string(kind) + "_call_accepted"
	case SignalDenied:
		return string(kind) + "_call_denied"
	case SignalBusy:
		return "on_another_" + string(kind) + "_call"
	case SignalEnded:
		return string(kind) + "_call_ended"
	default:
		return ""
	}
}

// CallNotificationEvent is sent to the callee when a call starts.
func CallNotificationEvent(kind call.Kind) string {
	return string(kind) + "_call_notification"
}

type StartCallInput struct {
	Kind   call.Kind
	From   uuid.UUID
	To     uuid.UUID
	RoomID string
}

// SignalInput addresses a call either by CallID or, when CallID is
// uuid.Nil, by the latest ongoing call of Kind between From and To.
type SignalInput struct {
	Kind   call.Kind
	Signal Signal
	From   uuid.UUID
	To     uuid.UUID
	CallID uuid.UUID
}

type CallService struct {
	users  repository.UserRepository
	calls  repository.CallRepository
	locks  *keylock.KeyLock
	audit  *audit.Emitter
	logger *logger.Logger
	now    func() time.Time
}

func NewCallService(users repository.UserRepository, calls repository.CallRepository, emitter *audit.Emitter, l *logger.Logger) *CallService {
	if l == nil {
		l = logger.Nop()
	}
	return &CallService{
		users:  users,
		calls:  calls,
		locks:  keylock.New(),
		audit:  emitter,
		logger: l.Named("calls"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func pairKey(kind call.Kind, a, b uuid.UUID) string {
	return keylock.PairKey("call-"+string(kind), a.String(), b.String())
}

// Start records a new ongoing call and yields the ring for the callee.
func (s *CallService) Start(ctx context.Context, in StartCallInput) (call.Call, []Notification, error) {
	if _, err := call.ParseKind(string(in.Kind)); err != nil {
		return call.Call{}, nil, fmt.Errorf("%v: %w", err, relay_errors.ErrInvalidInput)
	}
	if in.From == uuid.Nil || in.To == uuid.Nil || in.From == in.To {
		return call.Call{}, nil, fmt.Errorf("call needs two distinct users: %w", relay_errors.ErrInvalidInput)
	}

	people, err := s.users.GetUsersByIDs(ctx, []uuid.UUID{in.From, in.To})
	if err != nil {
		return call.Call{}, nil, err
	}
	var caller *UserSummary
	found := 0
	for _, p := range people {
		if p.ID == in.From {
			sum := summarize(p)
			caller = &sum
		}
		if p.ID == in.From || p.ID == in.To {
			found++
		}
	}
	if caller == nil || found < 2 {
		return call.Call{}, nil, relay_errors.ErrNotFound
	}

	unlock := s.locks.Lock(pairKey(in.Kind, in.From, in.To))
	defer unlock()

	c := call.New(in.Kind, in.From, in.To, in.RoomID, s.now())
	if c.RoomID == "" {
		c.RoomID = c.ID.String()
	}
	if err := s.calls.Create(ctx, c); err != nil {
		return call.Call{}, nil, err
	}

	s.audit.Emit(ctx, audit.CallStarted, in.From.String(), map[string]any{
		"call_id": c.ID.String(),
		"kind":    string(c.Kind),
		"to":      in.To.String(),
	})

	return *c, []Notification{{
		UserID: in.To,
		Event:  CallNotificationEvent(c.Kind),
		Data: CallNotificationPayload{
			CallID: c.ID,
			Kind:   c.Kind,
			RoomID: c.RoomID,
			From:   *caller,
			To:     in.To,
		},
	}}, nil
}

// Apply moves the matching call according to in.Signal and yields the event
// for in.To. A missing call or a transition the call no longer allows is a
// silent no-op: it returns nil without error.
func (s *CallService) Apply(ctx context.Context, in SignalInput) (*call.Call, []Notification, error) {
	if _, err := call.ParseKind(string(in.Kind)); err != nil {
		return nil, nil, fmt.Errorf("%v: %w", err, relay_errors.ErrInvalidInput)
	}
	if in.Signal.Event(in.Kind) == "" {
		return nil, nil, fmt.Errorf("unknown call signal %q: %w", in.Signal, relay_errors.ErrInvalidInput)
	}
	if in.From == uuid.Nil || in.To == uuid.Nil {
		return nil, nil, fmt.Errorf("call signal needs both users: %w", relay_errors.ErrInvalidInput)
	}

	unlock := s.locks.Lock(pairKey(in.Kind, in.From, in.To))
	defer unlock()

	log := s.logger.Ctx(ctx).With(
		zap.String("signal", string(in.Signal)),
		zap.String("kind", string(in.Kind)),
		zap.String("from", in.From.String()),
		zap.String("to", in.To.String()),
	)

	c, err := s.resolve(ctx, in)
	if errors.Is(err, relay_errors.ErrNotFound) {
		log.Debug("no matching call")
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	at := s.now()
	var moved bool
	switch in.Signal {
	case SignalNotPicked:
		moved = c.Terminate(call.VerdictMissed, at)
	case SignalAccepted:
		moved = c.Accept()
	case SignalDenied:
		moved = c.Terminate(call.VerdictDenied, at)
	case SignalBusy:
		moved = c.Terminate(call.VerdictBusy, at)
	case SignalEnded:
		moved = c.Hangup(at)
	}
	if !moved {
		log.Debug("call transition not allowed", zap.String("call_id", c.ID.String()), zap.String("status", string(c.Status)))
		return nil, nil, nil
	}

	if err := s.calls.Update(ctx, c); err != nil {
		return nil, nil, err
	}

	s.audit.Emit(ctx, audit.CallUpdated, in.From.String(), map[string]any{
		"call_id": c.ID.String(),
		"kind":    string(c.Kind),
		"status":  string(c.Status),
		"verdict": string(c.Verdict),
	})

	return &c, []Notification{{
		UserID: in.To,
		Event:  in.Signal.Event(c.Kind),
		Data: CallSignalPayload{
			CallID:  c.ID,
			Kind:    c.Kind,
			RoomID:  c.RoomID,
			From:    in.From,
			To:      in.To,
			Status:  c.Status,
			Verdict: c.Verdict,
		},
	}}, nil
}

func (s *CallService) resolve(ctx context.Context, in SignalInput) (call.Call, error) {
	if in.CallID == uuid.Nil {
		return s.calls.LatestOngoing(ctx, in.From, in.To, in.Kind)
	}
	c, err := s.calls.GetByID(ctx, in.CallID)
	if err != nil {
		return call.Call{}, err
	}
	if c.Kind != in.Kind || c.Participants != call.Pair(in.From, in.To) {
		return call.Call{}, relay_errors.ErrNotFound
	}
	return c, nil
}

func (s *CallService) NotPicked(ctx context.Context, kind call.Kind, from, to, callID uuid.UUID) (*call.Call, []Notification, error) {
	return s.Apply(ctx, SignalInput{Kind: kind, Signal: SignalNotPicked, From: from, To: to, CallID: callID})
}

func (s *CallService) Accepted(ctx context.Context, kind call.Kind, from, to, callID uuid.UUID) (*call.Call, []Notification, error) {
	return s.Apply(ctx, SignalInput{Kind: kind, Signal: SignalAccepted, From: from, To: to, CallID: callID})
}

func (s *CallService) Denied(ctx context.Context, kind call.Kind, from, to, callID uuid.UUID) (*call.Call, []Notification, error) {
	return s.Apply(ctx, SignalInput{Kind: kind, Signal: SignalDenied, From: from, To: to, CallID: callID})
}

func (s *CallService) Busy(ctx context.Context, kind call.Kind, from, to, callID uuid.UUID) (*call.Call, []Notification, error) {
	return s.Apply(ctx, SignalInput{Kind: kind, Signal: SignalBusy, From: from, To: to, CallID: callID})
}

func (s *CallService) End(ctx context.Context, kind call.Kind, from, to, callID uuid.UUID) (*call.Call, []Notification, error) {
	return s.Apply(ctx, SignalInput{Kind: kind, Signal: SignalEnded, From: from, To: to, CallID: callID})
}

// History returns the most recent calls userID took part in.
func (s *CallService) History(ctx context.Context, userID uuid.UUID, limit int) ([]call.Call, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.calls.ListForUser(ctx, userID, limit)
}
