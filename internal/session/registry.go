// Package session holds the single piece of shared mutable process state:
// the connection context, the known room list and the active voice call per
// room. Everything is guarded by one lock, and the lock is never held across
// a collaborator call.
package session

import (
	"errors"
	"slices"
	"sync"
)

// Call is the capability set the dispatcher needs from one active voice
// call. The concrete type belongs to the voice collaborator; nothing in the
// core ever looks inside it.
type Call interface {
	Play(path string) error
	Mute(on bool) error
	Deafen(on bool) error
	Muted() bool
	Deafened() bool
	Leave() error
}

// Connection is the part of the chat connection needed to create new calls.
// It is unset until the ready event arrives.
type Connection interface {
	Join(roomID, channelID string) (Call, error)
}

// Room describes one voice-capable guild the process can see.
type Room struct {
	ID   string
	Name string
}

var ErrNotReady = errors.New("connection not yet ready")

// Registry maps room IDs to active calls. At most one call per room.
type Registry struct {
	mu    sync.RWMutex
	conn  Connection
	rooms []Room
	calls map[string]Call
}

func New() *Registry {
	return &Registry{calls: make(map[string]Call)}
}

// SetConnection replaces the connection context and the known-room list
// wholesale. Called once per connection lifecycle, on the ready event.
func (r *Registry) SetConnection(conn Connection, rooms []Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conn = conn
	r.rooms = slices.Clone(rooms)
}

// AddRoom appends a room that became visible after the ready snapshot.
func (r *Registry) AddRoom(room Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, known := range r.rooms {
		if known.ID == room.ID {
			return
		}
	}
	r.rooms = append(r.rooms, room)
}

// Connection returns the connection context, or ErrNotReady before the
// ready event has been seen.
func (r *Registry) Connection() (Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.conn == nil {
		return nil, ErrNotReady
	}
	return r.conn, nil
}

// Rooms returns a copy of the known-room list.
func (r *Registry) Rooms() []Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.rooms)
}

// Get returns the active call for a room, if any.
func (r *Registry) Get(roomID string) (Call, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	call, ok := r.calls[roomID]
	return call, ok
}

// Put stores the call for a room, replacing any previous one.
func (r *Registry) Put(roomID string, call Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[roomID] = call
}

// PutIfAbsent stores call for roomID unless a call is already present, and
// returns whichever call ended up stored. Keeps join idempotent when two
// callers race for the same room.
func (r *Registry) PutIfAbsent(roomID string, call Call) (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.calls[roomID]; ok {
		return existing, false
	}
	r.calls[roomID] = call
	return call, true
}

// Remove drops the call stored for a room, if any.
func (r *Registry) Remove(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.calls, roomID)
}

// FindActive scans the known rooms in order and returns the first one that
// has an active call. Used by the console source, which has no invoking room
// and must discover whichever room is presently joined.
func (r *Registry) FindActive() (string, Call, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, room := range r.rooms {
		if call, ok := r.calls[room.ID]; ok {
			return room.ID, call, true
		}
	}
	return "", nil, false
}

// Drain removes and returns every active call. Used once, at shutdown.
func (r *Registry) Drain() map[string]Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := r.calls
	r.calls = make(map[string]Call)
	return calls
}
