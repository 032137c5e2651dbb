package conversation

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageText     MessageType = "Text"
	MessageMedia    MessageType = "Media"
	MessageDocument MessageType = "Document"
	MessageLink     MessageType = "Link"
)

// ParseMessageType accepts the wire spelling case-insensitively. An empty
// value means Text.
func ParseMessageType(s string) (MessageType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return MessageText, nil
	case "media":
		return MessageMedia, nil
	case "document":
		return MessageDocument, nil
	case "link":
		return MessageLink, nil
	default:
		return "", fmt.Errorf("unknown message type %q", s)
	}
}

// HasFile reports whether messages of this type carry an object reference.
func (t MessageType) HasFile() bool {
	return t == MessageMedia || t == MessageDocument
}

// Message is immutable once appended. For direct messages To is the peer
// user id, for group messages it is the room id and Sender carries the
// author's display name.
type Message struct {
	ID             uuid.UUID   `json:"id"`
	ConversationID uuid.UUID   `json:"conversation_id"`
	From           uuid.UUID   `json:"from"`
	To             uuid.UUID   `json:"to"`
	Type           MessageType `json:"type"`
	Text           string      `json:"text"`
	File           string      `json:"file,omitempty"`
	FileURL        string      `json:"file_url,omitempty"`
	Sender         string      `json:"sender,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Direct represents a one to one conversation. Participants are stored in
// canonical order so the pair is unique regardless of who started it.
type Direct struct {
	ID           uuid.UUID    `json:"id"`
	Participants [2]uuid.UUID `json:"participants"`
	UnreadCount  int          `json:"unread_count"`
	ReadBy       []uuid.UUID  `json:"read_by"`
	Messages     []Message    `json:"messages,omitempty"`
	LastMessage  *Message     `json:"last_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (d Direct) HasParticipant(id uuid.UUID) bool {
	return d.Participants[0] == id || d.Participants[1] == id
}

// Peer returns the other participant.
func (d Direct) Peer(id uuid.UUID) uuid.UUID {
	if d.Participants[0] == id {
		return d.Participants[1]
	}
	return d.Participants[0]
}

// Room represents a group conversation. MemberIDs is the persisted member
// list; live connection membership is tracked separately.
type Room struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Owner     uuid.UUID   `json:"owner"`
	MemberIDs []uuid.UUID `json:"members"`
	Messages  []Message   `json:"messages,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

func (r Room) HasMember(id uuid.UUID) bool {
	for _, m := range r.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}

// SortedPair orders two ids by their byte value.
func SortedPair(a, b uuid.UUID) [2]uuid.UUID {
	if bytes.Compare(a[:], b[:]) > 0 {
		return [2]uuid.UUID{b, a}
	}
	return [2]uuid.UUID{a, b}
}
