package rooms

import (
	"sort"
	"strings"
)

// Index maps room keys to member connection ids. Rooms are created
// implicitly by membership and deleted when their last member leaves, so a
// key that resolves always resolves to a non-empty set.
//
// Index carries no lock of its own: the owning registry serializes every
// mutation and read under its lock so the membership index and per-connection
// room sets can never disagree.
type Index struct {
	members map[string]map[string]struct{} // roomKey -> set of connectionID
}

// NewIndex creates an empty membership index.
func NewIndex() *Index {
	return &Index{
		members: make(map[string]map[string]struct{}),
	}
}

// Join adds a connection to a room. Joining a room the connection is already
// in is a silent success: the reconnection manager re-issues joins after
// every reconnect without checking current membership.
func (x *Index) Join(roomKey, connectionID string) {
	room, exists := x.members[roomKey]
	if !exists {
		room = make(map[string]struct{})
		x.members[roomKey] = room
	}
	room[connectionID] = struct{}{}
}

// Leave removes a connection from a room and deletes the room if it is left
// empty. Leaving a room the connection is not in is a no-op.
func (x *Index) Leave(roomKey, connectionID string) {
	room, exists := x.members[roomKey]
	if !exists {
		return
	}
	delete(room, connectionID)
	if len(room) == 0 {
		delete(x.members, roomKey)
	}
}

// MembersOf returns a snapshot of a room's member connection ids. Unknown
// rooms yield an empty slice, never an error.
func (x *Index) MembersOf(roomKey string) []string {
	room, exists := x.members[roomKey]
	if !exists {
		return nil
	}
	ids := make([]string, 0, len(room))
	for id := range room {
		ids = append(ids, id)
	}
	return ids
}

// Contains reports whether a connection is a member of a room.
func (x *Index) Contains(roomKey, connectionID string) bool {
	room, exists := x.members[roomKey]
	if !exists {
		return false
	}
	_, ok := room[connectionID]
	return ok
}

// RoomsWithPrefix returns every registered room key with the given prefix,
// sorted for deterministic iteration. Used to expand the "all" role sentinel.
func (x *Index) RoomsWithPrefix(prefix string) []string {
	var keys []string
	for key := range x.members {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// RemoveConnection strips a connection from each of the given rooms,
// deleting rooms left empty. Called by the registry when a connection is
// removed; the registry supplies the connection's own room set so both sides
// of the membership invariant change together.
func (x *Index) RemoveConnection(connectionID string, roomKeys []string) {
	for _, key := range roomKeys {
		x.Leave(key, connectionID)
	}
}

// Stats returns room count and total membership entries for monitoring.
func (x *Index) Stats() (roomCount, memberCount int) {
	roomCount = len(x.members)
	for _, room := range x.members {
		memberCount += len(room)
	}
	return roomCount, memberCount
}
