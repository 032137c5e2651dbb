package call

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case KindAudio:
		return KindAudio, nil
	case KindVideo:
		return KindVideo, nil
	default:
		return "", fmt.Errorf("unknown call kind %q", s)
	}
}

type Status string

const (
	StatusOngoing Status = "Ongoing"
	StatusEnded   Status = "Ended"
)

type Verdict string

const (
	VerdictNone     Verdict = ""
	VerdictAccepted Verdict = "Accepted"
	VerdictDenied   Verdict = "Denied"
	VerdictMissed   Verdict = "Missed"
	VerdictBusy     Verdict = "Busy"
)

// Call represents calls table. A call starts Ongoing without a verdict and
// ends at most once.
type Call struct {
	ID           uuid.UUID    `json:"id"`
	Kind         Kind         `json:"kind"`
	From         uuid.UUID    `json:"from"`
	To           uuid.UUID    `json:"to"`
	Participants [2]uuid.UUID `json:"participants"`
	RoomID       string       `json:"room_id"`
	Status       Status       `json:"status"`
	Verdict      Verdict      `json:"verdict,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	EndedAt      *time.Time   `json:"ended_at,omitempty"`
}

func New(kind Kind, from, to uuid.UUID, roomID string, now time.Time) *Call {
	return &Call{
		ID:           uuid.New(),
		Kind:         kind,
		From:         from,
		To:           to,
		Participants: Pair(from, to),
		RoomID:       roomID,
		Status:       StatusOngoing,
		StartedAt:    now,
	}
}

func (c *Call) Ongoing() bool {
	return c.Status == StatusOngoing
}

// Accept records the Accepted verdict. The call stays Ongoing.
func (c *Call) Accept() bool {
	if !c.Ongoing() || c.Verdict != VerdictNone {
		return false
	}
	c.Verdict = VerdictAccepted
	return true
}

// Terminate ends an unanswered call with the given verdict.
func (c *Call) Terminate(v Verdict, at time.Time) bool {
	if !c.Ongoing() || c.Verdict != VerdictNone {
		return false
	}
	c.Verdict = v
	c.Status = StatusEnded
	c.EndedAt = &at
	return true
}

// Hangup ends the call keeping whatever verdict it already has.
func (c *Call) Hangup(at time.Time) bool {
	if !c.Ongoing() {
		return false
	}
	c.Status = StatusEnded
	c.EndedAt = &at
	return true
}

// Pair returns the participants in canonical order.
func Pair(a, b uuid.UUID) [2]uuid.UUID {
	if bytes.Compare(a[:], b[:]) > 0 {
		return [2]uuid.UUID{b, a}
	}
	return [2]uuid.UUID{a, b}
}
