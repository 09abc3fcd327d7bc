package broadcast

import (
	"log"

	"github.com/Lingjia-code/CodeShare-Classroom/internal/presence"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/interfaces"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/metrics"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/types"
)

// Broadcaster is the fan-out primitive over the presence registry. Delivery
// targets the registry's live snapshot at the moment of the call; members
// who join afterwards see nothing. Connections outside the room are never
// reached because recipients come only from the room's member set.
type Broadcaster struct {
	registry *presence.Registry
}

// NewBroadcaster creates a broadcaster over the given registry.
func NewBroadcaster(registry *presence.Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// ToRoom delivers the event to every current member of the room, sender
// included. Used for confirmation broadcasts such as help resolution.
func (b *Broadcaster) ToRoom(roomID, event string, payload interface{}) {
	b.deliver(roomID, event, payload, "")
}

// ToRoomExcept delivers the event to every current member except the named
// connection. This is the echo suppression contract: an author never
// receives its own edit back on the connection that sent it.
func (b *Broadcaster) ToRoomExcept(roomID, excludeConnID, event string, payload interface{}) {
	b.deliver(roomID, event, payload, excludeConnID)
}

// ToConnection sends an event to a single connection, used for direct
// replies such as member lists and operation errors.
func (b *Broadcaster) ToConnection(conn interfaces.Connection, event string, payload interface{}) {
	env := types.OutboundEnvelope{Event: event, Payload: payload}
	if err := conn.WriteJSON(env); err != nil {
		log.Printf("Failed to deliver %s to %s: %v", event, conn.UserID(), err)
	}
}

// deliver fans out to the room snapshot, skipping the excluded connection.
// A failed write to one member never blocks delivery to the rest.
func (b *Broadcaster) deliver(roomID, event string, payload interface{}, excludeConnID string) {
	env := types.OutboundEnvelope{Event: event, Payload: payload}

	for _, conn := range b.registry.ConnectionsIn(roomID) {
		if excludeConnID != "" && conn.ID() == excludeConnID {
			continue
		}
		if err := conn.WriteJSON(env); err != nil {
			log.Printf("Failed to deliver %s to %s in room %s: %v", event, conn.UserID(), roomID, err)
			continue
		}
		metrics.BroadcastsDelivered.Inc()
	}
}
