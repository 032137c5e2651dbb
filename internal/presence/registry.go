// Package presence tracks which user owns which live connection and which
// connections currently sit in which room.
package presence

import (
	"context"
	"sync"

	"chat-relay/pkg/keylock"
	"chat-relay/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Conn is a live connection handle. Send must not block.
type Conn interface {
	ID() string
	Send(frame []byte) error
}

// UserStore is the slice of the user repository the registry persists to.
type UserStore interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	MarkOnline(ctx context.Context, id uuid.UUID, socketID string) error
	MarkOffline(ctx context.Context, id uuid.UUID, socketID string) (bool, error)
}

// Mirror receives a copy of every presence change. Optional.
type Mirror interface {
	SetOnline(ctx context.Context, userID, connID string) error
	SetOffline(ctx context.Context, userID string) error
}

// Registry maps users to their single live connection. A newer connection
// replaces the older one; a late disconnect of the older one is ignored.
type Registry struct {
	mu     sync.RWMutex
	byUser map[uuid.UUID]Conn
	byConn map[string]uuid.UUID

	users  UserStore
	mirror Mirror
	locks  *keylock.KeyLock
	logger *logger.Logger
}

func NewRegistry(users UserStore, mirror Mirror, l *logger.Logger) *Registry {
	if l == nil {
		l = logger.Nop()
	}
	return &Registry{
		byUser: make(map[uuid.UUID]Conn),
		byConn: make(map[string]uuid.UUID),
		users:  users,
		mirror: mirror,
		locks:  keylock.New(),
		logger: l.Named("presence"),
	}
}

// Connect binds conn to userID and marks the user Online. It is a no-op for
// an empty id or a user the store does not know.
func (r *Registry) Connect(ctx context.Context, userID uuid.UUID, conn Conn) (bool, error) {
	if userID == uuid.Nil || conn == nil {
		return false, nil
	}
	exists, err := r.users.Exists(ctx, userID)
	if err != nil {
		return false, err
	}
	if !exists {
		r.logger.Ctx(ctx).Debug("connect for unknown user ignored", zap.String("user_id", userID.String()))
		return false, nil
	}

	unlock := r.locks.Lock(userID.String())
	defer unlock()

	r.mu.Lock()
	if prev, ok := r.byUser[userID]; ok && prev.ID() != conn.ID() {
		delete(r.byConn, prev.ID())
	}
	r.byUser[userID] = conn
	r.byConn[conn.ID()] = userID
	r.mu.Unlock()

	if err := r.users.MarkOnline(ctx, userID, conn.ID()); err != nil {
		return true, err
	}
	if r.mirror != nil {
		if err := r.mirror.SetOnline(ctx, userID.String(), conn.ID()); err != nil {
			r.logger.Ctx(ctx).Warn("presence mirror online failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	return true, nil
}

// Disconnect releases conn. It returns the owning user and whether this call
// took the user offline. Repeated or stale disconnects return false.
func (r *Registry) Disconnect(ctx context.Context, conn Conn) (uuid.UUID, bool, error) {
	if conn == nil {
		return uuid.Nil, false, nil
	}

	r.mu.RLock()
	userID, ok := r.byConn[conn.ID()]
	r.mu.RUnlock()
	if !ok {
		return uuid.Nil, false, nil
	}

	unlock := r.locks.Lock(userID.String())
	defer unlock()

	r.mu.Lock()
	if owner, still := r.byConn[conn.ID()]; !still || owner != userID {
		r.mu.Unlock()
		return userID, false, nil
	}
	delete(r.byConn, conn.ID())
	current, has := r.byUser[userID]
	cleared := has && current.ID() == conn.ID()
	if cleared {
		delete(r.byUser, userID)
	}
	r.mu.Unlock()

	if !cleared {
		return userID, false, nil
	}

	if _, err := r.users.MarkOffline(ctx, userID, conn.ID()); err != nil {
		return userID, true, err
	}
	if r.mirror != nil {
		if err := r.mirror.SetOffline(ctx, userID.String()); err != nil {
			r.logger.Ctx(ctx).Warn("presence mirror offline failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	return userID, true, nil
}

// Resolve returns the live connection of userID. false means the user cannot
// be reached right now.
func (r *Registry) Resolve(userID uuid.UUID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

// UserOf returns the user bound to a connection id.
func (r *Registry) UserOf(connID string) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byConn[connID]
	return id, ok
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	_, ok := r.Resolve(userID)
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
