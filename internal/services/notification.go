package services

import (
	"context"

	"chat-relay/internal/domain/call"
	"chat-relay/internal/domain/conversation"
	"chat-relay/internal/domain/user"

	"github.com/google/uuid"
)

// Outbound event names.
const (
	EventNewFriendRequest = "new_friend_request"
	EventRequestSent      = "request_sent"
	EventRequestAccepted  = "request_accepted"
	EventStartChat        = "start_chat"
	EventNewMessage       = "new_message"
	EventNewGroupMessage  = "new_group_message"
	EventRoomCreated      = "roomCreated"
	EventRoomJoined       = "roomJoined"
	EventRoomNotFound     = "roomNotFound"
	EventLoadMessages     = "loadMessages"
	EventRoomLeft         = "roomLeft"
	EventError            = "error"
)

// Notification is one outbound event addressed to one user. Services only
// build notifications; the router resolves and delivers them.
type Notification struct {
	UserID uuid.UUID
	Event  string
	Data   any
}

// AttachmentSigner turns a stored file reference into a download URL.
type AttachmentSigner interface {
	DownloadURL(ctx context.Context, key string) (string, error)
}

type UserSummary struct {
	ID     uuid.UUID   `json:"id"`
	Name   string      `json:"name"`
	Avatar string      `json:"avatar,omitempty"`
	Status user.Status `json:"status"`
}

func summarize(u user.User) UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Avatar: u.Avatar, Status: u.Status}
}

type FriendRequestPayload struct {
	Message   string       `json:"message"`
	RequestID uuid.UUID    `json:"request_id"`
	From      *UserSummary `json:"from,omitempty"`
}

type RequestAcceptedPayload struct {
	Message   string      `json:"message"`
	RequestID uuid.UUID   `json:"request_id"`
	Friend    UserSummary `json:"friend"`
}

type MessagePayload struct {
	ConversationID uuid.UUID            `json:"conversation_id"`
	Message        conversation.Message `json:"message"`
}

type CallNotificationPayload struct {
	CallID uuid.UUID   `json:"call_id"`
	Kind   call.Kind   `json:"kind"`
	RoomID string      `json:"roomID"`
	From   UserSummary `json:"from"`
	To     uuid.UUID   `json:"to"`
}

type CallSignalPayload struct {
	CallID  uuid.UUID    `json:"call_id"`
	Kind    call.Kind    `json:"kind"`
	RoomID  string       `json:"roomID"`
	From    uuid.UUID    `json:"from"`
	To      uuid.UUID    `json:"to"`
	Status  call.Status  `json:"status"`
	Verdict call.Verdict `json:"verdict,omitempty"`
}

// resolveFiles fills FileURL on messages that carry a file reference. A
// failed lookup leaves the URL empty.
func resolveFiles(ctx context.Context, signer AttachmentSigner, msgs []conversation.Message) {
	if signer == nil {
		return
	}
	for i := range msgs {
		resolveFile(ctx, signer, &msgs[i])
	}
}

func resolveFile(ctx context.Context, signer AttachmentSigner, m *conversation.Message) {
	if signer == nil || m == nil || m.File == "" {
		return
	}
	if u, err := signer.DownloadURL(ctx, m.File); err == nil {
		m.FileURL = u
	}
}
