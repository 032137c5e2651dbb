package presence

import (
	"sync"

	"github.com/google/uuid"
)

// Rooms tracks which live connections are joined to which room. It is never
// persisted; the reverse index keeps Purge proportional to the rooms one
// connection joined.
type Rooms struct {
	mu      sync.RWMutex
	members map[uuid.UUID]map[string]Conn
	byConn  map[string]map[uuid.UUID]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[uuid.UUID]map[string]Conn),
		byConn:  make(map[string]map[uuid.UUID]struct{}),
	}
}

// Join reports false when conn was already in the room.
func (r *Rooms) Join(roomID uuid.UUID, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[roomID]
	if !ok {
		set = make(map[string]Conn)
		r.members[roomID] = set
	}
	if _, exists := set[conn.ID()]; exists {
		return false
	}
	set[conn.ID()] = conn

	rooms, ok := r.byConn[conn.ID()]
	if !ok {
		rooms = make(map[uuid.UUID]struct{})
		r.byConn[conn.ID()] = rooms
	}
	rooms[roomID] = struct{}{}
	return true
}

// Leave reports false when conn was not in the room.
func (r *Rooms) Leave(roomID uuid.UUID, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leave(roomID, conn.ID())
}

func (r *Rooms) leave(roomID uuid.UUID, connID string) bool {
	set, ok := r.members[roomID]
	if !ok {
		return false
	}
	if _, exists := set[connID]; !exists {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.members, roomID)
	}
	if rooms, ok := r.byConn[connID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.byConn, connID)
		}
	}
	return true
}

// Purge removes conn from every room it joined and returns those rooms.
func (r *Rooms) Purge(conn Conn) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := r.byConn[conn.ID()]
	left := make([]uuid.UUID, 0, len(rooms))
	for roomID := range rooms {
		left = append(left, roomID)
	}
	for _, roomID := range left {
		r.leave(roomID, conn.ID())
	}
	return left
}

// Members returns a snapshot of the connections joined to roomID.
func (r *Rooms) Members(roomID uuid.UUID) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.members[roomID]
	out := make([]Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

func (r *Rooms) IsMember(roomID uuid.UUID, conn Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[roomID][conn.ID()]
	return ok
}

func (r *Rooms) RoomsOf(conn Conn) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]uuid.UUID, 0, len(r.byConn[conn.ID()]))
	for roomID := range r.byConn[conn.ID()] {
		out = append(out, roomID)
	}
	return out
}
