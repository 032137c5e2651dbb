package audit

import (
	"context"
	"time"

	"chat-relay/internal/metrics"
	"chat-relay/pkg/logger"

	"go.uber.org/zap"
)

// Event types emitted by the coordinator.
const (
	FriendRequestSent     = "friend.request_sent"
	FriendRequestAccepted = "friend.request_accepted"
	ConversationStarted   = "conversation.started"
	RoomCreated           = "room.created"
	RoomJoined            = "room.joined"
	CallStarted           = "call.started"
	CallUpdated           = "call.updated"
)

type Envelope struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	OccurredAt    string         `json:"occurred_at"`
	Service       string         `json:"service"`
	Environment   string         `json:"environment"`
	RequestID     string         `json:"request_id,omitempty"`
	ActorID       string         `json:"actor_id,omitempty"`
	Payload       map[string]any `json:"payload"`
}

// Emitter wraps a Publisher with the service envelope. A nil Emitter is
// valid and drops everything.
type Emitter struct {
	publisher   Publisher
	service     string
	environment string
	logger      *logger.Logger
}

func NewEmitter(publisher Publisher, service, environment string, l *logger.Logger) *Emitter {
	if l == nil {
		l = logger.Nop()
	}
	return &Emitter{
		publisher:   publisher,
		service:     service,
		environment: environment,
		logger:      l.Named("audit"),
	}
}

// Emit publishes one event. Failures are logged and counted, never returned.
func (e *Emitter) Emit(ctx context.Context, eventType, actorID string, payload map[string]any) {
	if e == nil || e.publisher == nil {
		return
	}

	requestID, _ := ctx.Value(logger.RequestIdKey).(string)
	envelope := Envelope{
		SchemaVersion: 1,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		ActorID:       actorID,
		Payload:       payload,
	}

	if err := e.publisher.Publish(ctx, eventType, envelope); err != nil {
		metrics.IncAMQPPublishError()
		e.logger.Ctx(ctx).Warn("audit publish failed", zap.String("event_type", eventType), zap.Error(err))
	}
}
