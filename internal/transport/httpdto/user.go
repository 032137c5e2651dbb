package httpdto

import (
	"time"

	"chat-relay/internal/domain/user"
)

// ListUsersRequest holds query parameters for listing users
type ListUsersRequest struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

type ListUsersResponse struct {
	Users []UserDTO `json:"users"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
}

// UpdateProfileRequest is the body of PATCH /v1/users/me. Absent fields stay
// unchanged. Passwords are managed by the identity provider, not here.
type UpdateProfileRequest struct {
	Name   *string `json:"name" binding:"omitempty,max=100"`
	Email  *string `json:"email" binding:"omitempty,max=254"`
	Avatar *string `json:"avatar" binding:"omitempty,max=2048"`
	About  *string `json:"about" binding:"omitempty,max=500"`
}

// ForbiddenProfileFields may not appear in an UpdateProfileRequest body.
var ForbiddenProfileFields = []string{"password", "passwordConfirm", "password_confirm"}

func (r UpdateProfileRequest) ToDomain() user.ProfileUpdate {
	return user.ProfileUpdate{Name: r.Name, Email: r.Email, Avatar: r.Avatar, About: r.About}
}

// UserDTO represents a user in API responses
type UserDTO struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Email     string   `json:"email"`
	Avatar    string   `json:"avatar,omitempty"`
	About     string   `json:"about,omitempty"`
	Status    string   `json:"status"`
	Friends   []string `json:"friends"`
	Groups    []string `json:"groups"`
	CreatedAt string   `json:"created_at"`
}

type PresenceDTO struct {
	UserID   string `json:"user_id"`
	Online   bool   `json:"online"`
	Status   string `json:"status"`
	LastSeen string `json:"last_seen,omitempty"`
}

func FromUser(u user.User) UserDTO {
	dto := UserDTO{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		Avatar:    u.Avatar,
		About:     u.About,
		Status:    string(u.Status),
		Friends:   make([]string, 0, len(u.Friends)),
		Groups:    make([]string, 0, len(u.Groups)),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
	for _, id := range u.Friends {
		dto.Friends = append(dto.Friends, id.String())
	}
	for _, id := range u.Groups {
		dto.Groups = append(dto.Groups, id.String())
	}
	return dto
}

func FromUserSlice(users []user.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = FromUser(u)
	}
	return dtos
}
