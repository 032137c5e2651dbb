package websocket

import (
	"encoding/json"
	"fmt"
	"strings"

	relay_errors "chat-relay/pkg/errors"

	"github.com/google/uuid"
)

// InboundFrame is what clients send. Ack is set when the client wants a
// reply for this frame.
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Ack   string          `json:"ack,omitempty"`
}

type OutboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// AckFrame answers an InboundFrame that carried an ack id.
type AckFrame struct {
	Event string `json:"event"`
	Ack   string `json:"ack"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

type ErrorPayload struct {
	Event   string `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func encodeFrame(event string, data any) ([]byte, error) {
	return json.Marshal(OutboundFrame{Event: event, Data: data})
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("malformed payload: %w", relay_errors.ErrInvalidInput)
	}
	return nil
}

// parseID accepts an empty string as "not given".
func parseID(field, s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s is not a valid id: %w", field, relay_errors.ErrInvalidInput)
	}
	return id, nil
}

type friendRequestPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type acceptRequestPayload struct {
	RequestID string `json:"request_id"`
}

type userPayload struct {
	UserID string `json:"user_id"`
}

type startConversationPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type conversationPayload struct {
	ConversationID string `json:"conversation_id"`
}

type textMessagePayload struct {
	ConversationID string `json:"conversation_id"`
	From           string `json:"from"`
	To             string `json:"to"`
	Type           string `json:"type"`
	Message        string `json:"message"`
	File           string `json:"file"`
}

type startCallPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	RoomID string `json:"roomID"`
}

type callSignalPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	CallID string `json:"call_id"`
}

type createRoomPayload struct {
	Title   string   `json:"title"`
	Owner   string   `json:"owner"`
	Members []string `json:"members"`
}

type joinRoomPayload struct {
	UserID string `json:"user_id"`
	RoomID string `json:"roomId"`
}

type leaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

// peekEvent reads only the event name, for rate limiting before dispatch.
func peekEvent(raw []byte) string {
	var head struct {
		Event string `json:"event"`
	}
	_ = json.Unmarshal(raw, &head)
	return head.Event
}
