package presence

import (
	"log"
	"sync"

	"github.com/Lingjia-code/CodeShare-Classroom/pkg/interfaces"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/metrics"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/types"
)

// Registry is the live, in-memory mapping from room to current member set.
// Membership is rebuilt entirely from live connections and never persisted.
// All mutation goes through Join and Leave; nothing else touches the maps.
type Registry struct {
	mu sync.RWMutex
	// rooms maps roomID -> connectionID -> connection.
	rooms map[string]map[string]interfaces.Connection
	// current maps connectionID -> occupied roomID. A connection appears
	// here iff it appears in exactly one room's member set.
	current map[string]string
}

// NewRegistry creates an empty registry. Maps are initialized up front to
// keep concurrent first joins safe.
func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]map[string]interfaces.Connection),
		current: make(map[string]string),
	}
}

// Join adds the connection to the room's member set and returns the member
// list as of after the join, plus the room implicitly left. A connection
// occupies at most one room: joining while already in a room performs the
// implicit leave first.
func (r *Registry) Join(roomID string, conn interfaces.Connection) (members []types.MemberInfo, previousRoom string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connID := conn.ID()

	if prior, ok := r.current[connID]; ok && prior != roomID {
		r.removeLocked(connID, prior)
		previousRoom = prior
	}

	if r.rooms[roomID] == nil {
		r.rooms[roomID] = make(map[string]interfaces.Connection)
	}
	r.rooms[roomID][connID] = conn
	r.current[connID] = roomID

	members = r.membersLocked(roomID)
	r.updateRoomGaugeLocked()

	log.Printf("Presence join: user=%s room=%s members=%d", conn.UserID(), roomID, len(members))
	return members, previousRoom
}

// Leave removes the connection from whatever room it occupies. Returns the
// vacated room. No-op when the connection is in no room, which makes an
// explicit leave-room followed by disconnect teardown safe.
func (r *Registry) Leave(conn interfaces.Connection) (roomID string, left bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connID := conn.ID()
	roomID, left = r.current[connID]
	if !left {
		return "", false
	}

	r.removeLocked(connID, roomID)
	r.updateRoomGaugeLocked()

	log.Printf("Presence leave: user=%s room=%s", conn.UserID(), roomID)
	return roomID, true
}

// MembersOf returns a snapshot of the room's current members. An unknown or
// emptied room reports zero members, never an error.
func (r *Registry) MembersOf(roomID string) []types.MemberInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membersLocked(roomID)
}

// ConnectionsIn returns the live connections in a room at the moment of the
// call, for broadcast fan-out.
func (r *Registry) ConnectionsIn(roomID string) []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]interfaces.Connection, 0, len(r.rooms[roomID]))
	for _, conn := range r.rooms[roomID] {
		conns = append(conns, conn)
	}
	return conns
}

// RoomOf reports which room the connection currently occupies.
func (r *Registry) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.current[connID]
	return roomID, ok
}

// Stats returns registry counters for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	occupied := 0
	members := 0
	for _, set := range r.rooms {
		if len(set) > 0 {
			occupied++
			members += len(set)
		}
	}

	return map[string]int{
		"present_members": members,
		"occupied_rooms":  occupied,
	}
}

func (r *Registry) membersLocked(roomID string) []types.MemberInfo {
	set := r.rooms[roomID]
	members := make([]types.MemberInfo, 0, len(set))
	for _, conn := range set {
		members = append(members, types.MemberInfo{
			UserID:   conn.UserID(),
			Username: conn.Username(),
			Role:     conn.Role(),
		})
	}
	return members
}

// removeLocked deletes one membership entry. Empty rooms stay in the map;
// they correctly report zero members and cost nothing.
func (r *Registry) removeLocked(connID, roomID string) {
	if set, ok := r.rooms[roomID]; ok {
		delete(set, connID)
	}
	delete(r.current, connID)
}

func (r *Registry) updateRoomGaugeLocked() {
	occupied := 0
	for _, set := range r.rooms {
		if len(set) > 0 {
			occupied++
		}
	}
	metrics.OccupiedRooms.Set(float64(occupied))
}
