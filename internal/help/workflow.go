package help

import (
	"log"
	"sync"
	"time"

	"github.com/Lingjia-code/CodeShare-Classroom/internal/broadcast"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/interfaces"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/types"
)

// Workflow tracks outstanding help requests per (room, student). State is
// in-memory only and lives as long as the process; an absent entry means
// no request was ever raised (state "none").
type Workflow struct {
	broadcaster *broadcast.Broadcaster

	mu       sync.Mutex
	requests map[string]map[string]*types.HelpRequest // roomID -> studentID
}

// NewWorkflow creates a help-request workflow.
func NewWorkflow(broadcaster *broadcast.Broadcaster) *Workflow {
	return &Workflow{
		broadcaster: broadcaster,
		requests:    make(map[string]map[string]*types.HelpRequest),
	}
}

// Raise opens (or re-opens) the sender's help request with the given
// message, overwriting any prior message, and notifies the rest of the
// room. Non-students are dropped silently.
func (w *Workflow) Raise(sender interfaces.Connection, roomID, message string) {
	if sender.Role() != types.RoleStudent {
		log.Printf("Dropped help-raise from non-student: user=%s role=%s room=%s", sender.UserID(), sender.Role(), roomID)
		return
	}

	studentID := sender.UserID()
	now := time.Now()

	w.mu.Lock()
	if w.requests[roomID] == nil {
		w.requests[roomID] = make(map[string]*types.HelpRequest)
	}
	w.requests[roomID][studentID] = &types.HelpRequest{
		StudentID: studentID,
		Message:   message,
		State:     types.HelpOpen,
		RaisedAt:  now,
	}
	w.mu.Unlock()

	log.Printf("Help request: student=%s room=%s", studentID, roomID)

	w.broadcaster.ToRoomExcept(roomID, sender.ID(), types.EventHelpRequestReceived, types.HelpRequestReceivedPayload{
		StudentID:   studentID,
		StudentName: sender.Username(),
		Message:     message,
		Timestamp:   now,
	})
}

// Resolve moves an open request to resolved, clears its message, and
// confirms to the whole room including the resolving instructor. Resolving
// a request that is not open is a no-op: no state change, no notification.
// Non-instructors are dropped silently.
func (w *Workflow) Resolve(sender interfaces.Connection, roomID, studentID string) {
	if sender.Role() != types.RoleInstructor {
		log.Printf("Dropped help-resolve from non-instructor: user=%s role=%s room=%s", sender.UserID(), sender.Role(), roomID)
		return
	}

	w.mu.Lock()
	req := w.requests[roomID][studentID]
	if req == nil || req.State != types.HelpOpen {
		w.mu.Unlock()
		return
	}
	req.State = types.HelpResolved
	req.Message = ""
	w.mu.Unlock()

	log.Printf("Help resolved: student=%s room=%s by=%s", studentID, roomID, sender.UserID())

	w.broadcaster.ToRoom(roomID, types.EventHelpResolvedNotification, types.HelpResolvedPayload{
		StudentID:      studentID,
		InstructorName: sender.Username(),
	})
}

// StateOf reports the current help state for a (room, student) pair.
func (w *Workflow) StateOf(roomID, studentID string) types.HelpState {
	w.mu.Lock()
	defer w.mu.Unlock()

	if req := w.requests[roomID][studentID]; req != nil {
		return req.State
	}
	return types.HelpNone
}

// OpenRequests returns the room's currently open requests, for an
// instructor refreshing its queue view.
func (w *Workflow) OpenRequests(roomID string) []types.HelpRequest {
	w.mu.Lock()
	defer w.mu.Unlock()

	var open []types.HelpRequest
	for _, req := range w.requests[roomID] {
		if req.State == types.HelpOpen {
			open = append(open, *req)
		}
	}
	return open
}
