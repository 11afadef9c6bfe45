package registry

import (
	"sync"

	"github.com/google/uuid"
)

// roomMember identifies one session occupying a room.
type roomMember struct {
	ConnID uuid.UUID
	UserID uuid.UUID
}

// roomTable tracks conversation-room membership. Rooms are a delivery
// optimization, not a trust boundary: joining performs no authorization,
// every protected action is authorized per-call by its service.
//
// The table stores identifiers only; delivery resolves the connector
// through the owning cell at send time, so a membership snapshot can never
// outlive a session's teardown. A reverse index (connection -> rooms)
// keeps that teardown O(rooms of conn) when a session dies without
// explicit leaves.
type roomTable struct {
	mu     sync.RWMutex
	rooms  map[uuid.UUID]map[uuid.UUID]uuid.UUID // roomID -> connID -> userID
	byConn map[uuid.UUID]map[uuid.UUID]struct{}  // connID -> set of roomIDs
}

func newRoomTable() *roomTable {
	return &roomTable{
		rooms:  make(map[uuid.UUID]map[uuid.UUID]uuid.UUID),
		byConn: make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// Join is idempotent: re-joining an occupied room rebinds the same session.
func (t *roomTable) Join(roomID uuid.UUID, conn Connector) {
	t.mu.Lock()
	defer t.mu.Unlock()

	connID := conn.GetID()
	room, ok := t.rooms[roomID]
	if !ok {
		room = make(map[uuid.UUID]uuid.UUID)
		t.rooms[roomID] = room
	}
	room[connID] = conn.GetUserID()

	memberships, ok := t.byConn[connID]
	if !ok {
		memberships = make(map[uuid.UUID]struct{})
		t.byConn[connID] = memberships
	}
	memberships[roomID] = struct{}{}
}

func (t *roomTable) Leave(roomID, connID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leaveLocked(roomID, connID)
}

// LeaveAll purges a dead session from every room it occupied.
func (t *roomTable) LeaveAll(connID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for roomID := range t.byConn[connID] {
		t.leaveLocked(roomID, connID)
	}
}

func (t *roomTable) leaveLocked(roomID, connID uuid.UUID) {
	if room, ok := t.rooms[roomID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(t.rooms, roomID)
		}
	}
	if memberships, ok := t.byConn[connID]; ok {
		delete(memberships, roomID)
		if len(memberships) == 0 {
			delete(t.byConn, connID)
		}
	}
}

// Members returns a snapshot so delivery happens outside the lock.
func (t *roomTable) Members(roomID uuid.UUID) []roomMember {
	t.mu.RLock()
	defer t.mu.RUnlock()

	room := t.rooms[roomID]
	if len(room) == 0 {
		return nil
	}
	members := make([]roomMember, 0, len(room))
	for connID, userID := range room {
		members = append(members, roomMember{ConnID: connID, UserID: userID})
	}
	return members
}

// ContainsUser reports whether any of userID's sessions occupy the room.
func (t *roomTable) ContainsUser(roomID, userID uuid.UUID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, uid := range t.rooms[roomID] {
		if uid == userID {
			return true
		}
	}
	return false
}

func (t *roomTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}
