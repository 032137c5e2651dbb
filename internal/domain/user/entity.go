package user

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusOnline  Status = "Online"
	StatusOffline Status = "Offline"
)

// User represents users table. SocketID is owned by the presence registry
// and is empty while the user has no live connection.
type User struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Avatar    string      `json:"avatar,omitempty"`
	About     string      `json:"about,omitempty"`
	Status    Status      `json:"status"`
	SocketID  string      `json:"-"`
	Friends   []uuid.UUID `json:"friends"`
	Groups    []uuid.UUID `json:"groups"`
	CreatedAt time.Time   `json:"created_at"`
}

// ProfileUpdate carries the editable profile fields. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	Name   *string
	Email  *string
	Avatar *string
	About  *string
}

func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Avatar == nil && p.About == nil
}

// Apply copies the set fields onto u.
func (p ProfileUpdate) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	if p.About != nil {
		u.About = *p.About
	}
}

func (u User) IsFriend(id uuid.UUID) bool {
	return contains(u.Friends, id)
}

func (u User) InGroup(roomID uuid.UUID) bool {
	return contains(u.Groups, roomID)
}

// FriendRequest represents friend_requests. A row only exists while the
// request is pending.
type FriendRequest struct {
	ID          uuid.UUID `json:"id"`
	SenderID    uuid.UUID `json:"sender"`
	RecipientID uuid.UUID `json:"recipient"`
	CreatedAt   time.Time `json:"created_at"`
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
