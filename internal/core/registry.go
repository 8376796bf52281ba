package core

import (
	"sync"

	"github.com/vovakirdan/studyhub-server/internal/metrics"
)

// Registry is the process-local index of reachable connections, keyed by
// user and by room. All mutations are serialized behind one lock.
type Registry struct {
	mu    sync.RWMutex
	users map[int64]*Conn
	rooms map[int64]map[*Conn]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		users: make(map[int64]*Conn),
		rooms: make(map[int64]map[*Conn]struct{}),
	}
}

// Register binds c to userID and makes it the user's reachable connection.
// A previously registered connection is returned but not closed; it simply
// stops being reachable. It returns false if c is already bound to another user.
func (r *Registry) Register(userID int64, c *Conn) (replaced *Conn, ok bool) {
	if !c.bindUser(userID) {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev := r.users[userID]; prev != nil && prev != c {
		replaced = prev
	}
	r.users[userID] = c
	metrics.WSAuthenticatedUsers.Set(float64(len(r.users)))
	return replaced, true
}

// JoinRoom adds c to the room's socket set. No-op for anonymous connections.
// Membership must be checked by the caller.
func (r *Registry) JoinRoom(roomID int64, c *Conn) bool {
	if _, ok := c.UserID(); !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.rooms[roomID]
	if set == nil {
		set = make(map[*Conn]struct{})
		r.rooms[roomID] = set
	}
	set[c] = struct{}{}
	c.rooms[roomID] = struct{}{}
	return true
}

// LeaveRoom removes c from the room's socket set and drops the room entry
// once it is empty. Reports whether c was in the room.
func (r *Registry) LeaveRoom(roomID int64, c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(c.rooms, roomID)
	return r.removeFromRoomLocked(roomID, c)
}

func (r *Registry) removeFromRoomLocked(roomID int64, c *Conn) bool {
	set, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.rooms, roomID)
	}
	return true
}

// Unregister removes c from every index. The user entry is removed only if
// c is still the user's registered connection, which is reported as removed.
// Safe to call repeatedly and on connections that never authenticated.
func (r *Registry) Unregister(c *Conn) (userID int64, removed bool) {
	userID, _ = c.UserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if userID != 0 && r.users[userID] == c {
		delete(r.users, userID)
		removed = true
		metrics.WSAuthenticatedUsers.Set(float64(len(r.users)))
	}
	for roomID := range c.rooms {
		r.removeFromRoomLocked(roomID, c)
		delete(c.rooms, roomID)
	}
	return userID, removed
}

// LookupUser returns the user's registered connection, or nil.
func (r *Registry) LookupUser(userID int64) *Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[userID]
}

// LookupRoom returns a snapshot of the connections that joined the room.
func (r *Registry) LookupRoom(roomID int64) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.rooms[roomID]
	out := make([]*Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// InRoom reports whether c joined the room.
func (r *Registry) InRoom(roomID int64, c *Conn) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID][c]
	return ok
}

// Rooms returns the rooms c joined.
func (r *Registry) Rooms(c *Conn) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]int64, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	return out
}

// Stats returns the number of registered users and non-empty rooms.
func (r *Registry) Stats() (users, rooms int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), len(r.rooms)
}
