package registry

import (
	"sync"
	"time"

	"campushub/internal/rooms"
	"campushub/pkg/interfaces"
)

// Identity is the declared identity of a connection. Connections are
// anonymous until a dashboard join declares who is behind them.
type Identity struct {
	UserID     string
	Role       string
	Department string
}

// connection is one admitted transport channel plus its bookkeeping state.
// Owned exclusively by the Registry; nothing outside this package mutates it.
type connection struct {
	transport   interfaces.Connection
	identity    Identity
	declared    bool
	rooms       map[string]struct{}
	connectedAt time.Time
	lastSeen    time.Time
}

// Registry tracks every live connection together with the room membership
// index. Both sides of the membership invariant (a connection's room set and
// the index's member sets) are mutated under one lock so they can never
// disagree.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connection
	index *rooms.Index
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*connection),
		index: rooms.NewIndex(),
	}
}

// Admit creates an anonymous entry for a newly established transport
// channel. Admitting an id that already exists is a programmer error and
// fails with ErrConnectionExists.
func (r *Registry) Admit(transport interfaces.Connection) error {
	if transport == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := transport.ID()
	if _, exists := r.conns[id]; exists {
		return ErrConnectionExists
	}

	now := time.Now()
	r.conns[id] = &connection{
		transport:   transport,
		rooms:       make(map[string]struct{}),
		connectedAt: now,
		lastSeen:    now,
	}
	return nil
}

// DeclareIdentity attaches or overwrites identity fields on a connection.
// Idempotent; re-declaring does not clear room memberships. An unknown
// connection id is a benign race with a disconnect, reported as
// ErrConnectionNotFound and never fatal.
func (r *Registry) DeclareIdentity(connectionID string, identity Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.conns[connectionID]
	if !exists {
		return ErrConnectionNotFound
	}
	conn.identity = identity
	conn.declared = true
	conn.lastSeen = time.Now()
	return nil
}

// JoinRoom adds a connection to a room. Idempotent: joining a room the
// connection is already in is a silent success. Unknown connection ids are
// reported as ErrConnectionNotFound.
func (r *Registry) JoinRoom(connectionID, roomKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.conns[connectionID]
	if !exists {
		return ErrConnectionNotFound
	}
	conn.rooms[roomKey] = struct{}{}
	r.index.Join(roomKey, connectionID)
	return nil
}

// LeaveRoom removes a connection from a room. Leaving a room the connection
// is not in is a no-op.
func (r *Registry) LeaveRoom(connectionID, roomKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.conns[connectionID]
	if !exists {
		return ErrConnectionNotFound
	}
	delete(conn.rooms, roomKey)
	r.index.Leave(roomKey, connectionID)
	return nil
}

// Remove deletes a connection and strips it from every room it belonged to.
// Idempotent: removing an already-removed id is a no-op.
func (r *Registry) Remove(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.conns[connectionID]
	if !exists {
		return
	}

	keys := make([]string, 0, len(conn.rooms))
	for key := range conn.rooms {
		keys = append(keys, key)
	}
	r.index.RemoveConnection(connectionID, keys)
	delete(r.conns, connectionID)
}

// Has reports whether a connection id is currently registered.
func (r *Registry) Has(connectionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.conns[connectionID]
	return exists
}

// Identity returns the declared identity of a connection. The second result
// is false while the connection is anonymous or unknown.
func (r *Registry) Identity(connectionID string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.conns[connectionID]
	if !exists || !conn.declared {
		return Identity{}, false
	}
	return conn.identity, true
}

// Transport returns the live transport channel for a connection id.
func (r *Registry) Transport(connectionID string) (interfaces.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.conns[connectionID]
	if !exists {
		return nil, false
	}
	return conn.transport, true
}

// Rooms returns a snapshot of the room keys a connection has joined.
func (r *Registry) Rooms(connectionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, exists := r.conns[connectionID]
	if !exists {
		return nil
	}
	keys := make([]string, 0, len(conn.rooms))
	for key := range conn.rooms {
		keys = append(keys, key)
	}
	return keys
}

// MemberIDs returns a snapshot of the connection ids in a room. Unknown
// rooms yield an empty result, never an error.
func (r *Registry) MemberIDs(roomKey string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.MembersOf(roomKey)
}

// RoomMembers returns a snapshot of the live transports in a room. The
// member set is resolved once at call time: a connection joining afterwards
// does not receive events dispatched from this snapshot.
func (r *Registry) RoomMembers(roomKey string) []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.index.MembersOf(roomKey)
	members := make([]interfaces.Connection, 0, len(ids))
	for _, id := range ids {
		if conn, exists := r.conns[id]; exists {
			members = append(members, conn.transport)
		}
	}
	return members
}

// InRoom reports whether a connection is a member of a room.
func (r *Registry) InRoom(roomKey, connectionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.Contains(roomKey, connectionID)
}

// RoleRooms returns every registered role room key, for expanding the "all"
// announcement sentinel.
func (r *Registry) RoleRooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.RoomsWithPrefix(rooms.RolePrefix())
}

// Touch updates a connection's last-seen timestamp.
func (r *Registry) Touch(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, exists := r.conns[connectionID]; exists {
		conn.lastSeen = time.Now()
	}
}

// Stats returns registry statistics for the monitoring endpoints.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomCount, memberCount := r.index.Stats()
	return map[string]int{
		"total_connections": len(r.conns),
		"active_rooms":      roomCount,
		"room_memberships":  memberCount,
	}
}
