package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"chat-relay/internal/domain/user"
	"chat-relay/internal/redis"
	"chat-relay/internal/repository"
	relay_errors "chat-relay/pkg/errors"
	"chat-relay/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OnlineChecker answers from the in-process presence registry.
type OnlineChecker interface {
	IsOnline(userID uuid.UUID) bool
}

// PresenceHistory answers from the mirrored presence store.
type PresenceHistory interface {
	GetPresence(ctx context.Context, userID string) (redis.PresenceStatus, error)
}

type Presence struct {
	UserID   uuid.UUID   `json:"user_id"`
	Online   bool        `json:"online"`
	Status   user.Status `json:"status"`
	LastSeen *time.Time  `json:"last_seen,omitempty"`
}

type UserService struct {
	repo    repository.UserRepository
	online  OnlineChecker
	history PresenceHistory
	logger  *logger.Logger
}

func NewUserService(repo repository.UserRepository, online OnlineChecker, history PresenceHistory, l *logger.Logger) *UserService {
	if l == nil {
		l = logger.Nop()
	}
	return &UserService{repo: repo, online: online, history: history, logger: l.Named("users")}
}

func (s *UserService) List(ctx context.Context, page, limit int) ([]user.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.GetAllUsers(ctx, page, limit)
}

func (s *UserService) GetByID(ctx context.Context, userID uuid.UUID) (user.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// UpdateProfile edits the caller's own name, email, avatar and about text.
// Blank names and malformed emails are rejected; an empty email clears it.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, p user.ProfileUpdate) (user.User, error) {
	if userID == uuid.Nil {
		return user.User{}, relay_errors.ErrNoIdentity
	}
	if p.Empty() {
		return user.User{}, fmt.Errorf("no profile fields given: %w", relay_errors.ErrInvalidInput)
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return user.User{}, fmt.Errorf("name must not be blank: %w", relay_errors.ErrInvalidInput)
		}
		p.Name = &name
	}
	if p.Email != nil {
		email := strings.TrimSpace(*p.Email)
		if email != "" {
			addr, err := mail.ParseAddress(email)
			if err != nil || addr.Address != email {
				return user.User{}, fmt.Errorf("malformed email: %w", relay_errors.ErrInvalidInput)
			}
		}
		p.Email = &email
	}

	u, err := s.repo.UpdateProfile(ctx, userID, p)
	if err != nil {
		return user.User{}, err
	}
	s.logger.Ctx(ctx).Info("profile updated", zap.String("user_id", userID.String()))
	return u, nil
}

// Presence reports whether userID has a live connection. The persisted
// status may lag behind after a restart; the registry answer wins.
func (s *UserService) Presence(ctx context.Context, userID uuid.UUID) (Presence, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return Presence{}, err
	}

	p := Presence{UserID: u.ID, Status: u.Status}
	if s.online != nil {
		p.Online = s.online.IsOnline(userID)
		if p.Online {
			p.Status = user.StatusOnline
		} else {
			p.Status = user.StatusOffline
		}
	}
	if s.history != nil {
		mirrored, err := s.history.GetPresence(ctx, userID.String())
		if err != nil {
			s.logger.Ctx(ctx).Warn("presence mirror lookup failed", zap.String("user_id", userID.String()), zap.Error(err))
		} else if !mirrored.LastSeen.IsZero() {
			seen := mirrored.LastSeen
			p.LastSeen = &seen
		}
	}
	return p, nil
}
