package router

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/Lingjia-code/CodeShare-Classroom/internal/broadcast"
	"github.com/Lingjia-code/CodeShare-Classroom/internal/editsync"
	"github.com/Lingjia-code/CodeShare-Classroom/internal/execrelay"
	"github.com/Lingjia-code/CodeShare-Classroom/internal/help"
	"github.com/Lingjia-code/CodeShare-Classroom/internal/presence"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/interfaces"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/metrics"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/types"
)

// Router dispatches inbound events from a connection's read goroutine to
// the owning component. Each connection drives its own dispatch, so a
// store call suspended for one room never stalls another room's traffic.
//
// Failure policy: authorization and not-found failures stay local to the
// offending request; the sender gets an operation-error and nobody else
// observes anything. No failure here may take down unrelated connections.
type Router struct {
	registry    *presence.Registry
	broadcaster *broadcast.Broadcaster
	edits       *editsync.Controller
	help        *help.Workflow
	exec        *execrelay.Relay
	store       interfaces.ClassroomStore
	limiter     *RateLimiter
}

// NewRouter creates an event router over the realtime components.
func NewRouter(
	registry *presence.Registry,
	broadcaster *broadcast.Broadcaster,
	edits *editsync.Controller,
	helpWorkflow *help.Workflow,
	exec *execrelay.Relay,
	store interfaces.ClassroomStore,
	limiter *RateLimiter,
) *Router {
	return &Router{
		registry:    registry,
		broadcaster: broadcaster,
		edits:       edits,
		help:        helpWorkflow,
		exec:        exec,
		store:       store,
		limiter:     limiter,
	}
}

// Dispatch routes one raw frame from the sender. Unknown or malformed
// events are dropped and logged; they are never echoed back to the client.
func (r *Router) Dispatch(ctx context.Context, sender interfaces.Connection, data []byte) {
	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("Dropped malformed frame from %s: %v", sender.UserID(), err)
		metrics.EventsDropped.Inc()
		return
	}

	if !types.IsInboundEvent(env.Event) {
		log.Printf("Dropped unknown event %q from %s", env.Event, sender.UserID())
		metrics.EventsDropped.Inc()
		return
	}

	if !r.limiter.Allow(sender.UserID()) {
		r.sendError(sender, "Too many events, slow down")
		return
	}

	metrics.EventsRouted.WithLabelValues(env.Event).Inc()

	switch env.Event {
	case types.EventJoinRoom:
		r.handleJoin(ctx, sender, env.Payload)
	case types.EventLeaveRoom:
		r.handleLeave(sender)
	case types.EventRequestMembers:
		r.handleRequestMembers(sender, env.Payload)
	case types.EventStudentEdit:
		r.handleStudentEdit(ctx, sender, env.Payload)
	case types.EventInstructorEdit:
		r.handleInstructorEdit(ctx, sender, env.Payload)
	case types.EventRequestStudentCode:
		r.handleRequestStudentCode(ctx, sender, env.Payload)
	case types.EventHelpRaise:
		r.handleHelpRaise(sender, env.Payload)
	case types.EventHelpResolve:
		r.handleHelpResolve(sender, env.Payload)
	case types.EventStudentExecResult:
		r.handleStudentExecResult(sender, env.Payload)
	case types.EventInstructorExecResult:
		r.handleInstructorExecResult(sender, env.Payload)
	}
}

// HandleDisconnect runs once per connection teardown. It performs the
// forced leave and fires exactly one departure broadcast if the connection
// occupied a room. Idempotent with an earlier explicit leave-room.
func (r *Router) HandleDisconnect(sender interfaces.Connection) {
	roomID, left := r.registry.Leave(sender)
	if !left {
		return
	}
	r.broadcaster.ToRoomExcept(roomID, sender.ID(), types.EventMemberLeft, types.MemberLeftPayload{
		UserID:   sender.UserID(),
		Username: sender.Username(),
	})
}

func (r *Router) handleJoin(ctx context.Context, sender interfaces.Connection, raw json.RawMessage) {
	var p types.JoinRoomPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		r.sendError(sender, "Invalid join-room payload")
		return
	}

	exists, err := r.store.RoomExists(ctx, p.RoomID)
	if err != nil {
		log.Printf("Room lookup failed for %s: %v", p.RoomID, err)
		r.sendError(sender, "Failed to join classroom")
		return
	}
	if !exists {
		r.sendError(sender, "Classroom not found")
		return
	}

	members, previousRoom := r.registry.Join(p.RoomID, sender)

	// A re-join from another room must look like a departure there.
	if previousRoom != "" {
		r.broadcaster.ToRoomExcept(previousRoom, sender.ID(), types.EventMemberLeft, types.MemberLeftPayload{
			UserID:   sender.UserID(),
			Username: sender.Username(),
		})
	}

	r.broadcaster.ToRoomExcept(p.RoomID, sender.ID(), types.EventMemberJoined, types.MemberInfo{
		UserID:   sender.UserID(),
		Username: sender.Username(),
		Role:     sender.Role(),
	})

	r.broadcaster.ToConnection(sender, types.EventMemberList, members)
}

func (r *Router) handleLeave(sender interfaces.Connection) {
	roomID, left := r.registry.Leave(sender)
	if !left {
		// Leaving while in no room is a no-op, not an error.
		return
	}
	r.broadcaster.ToRoomExcept(roomID, sender.ID(), types.EventMemberLeft, types.MemberLeftPayload{
		UserID:   sender.UserID(),
		Username: sender.Username(),
	})
}

func (r *Router) handleRequestMembers(sender interfaces.Connection, raw json.RawMessage) {
	var p types.RequestMembersPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		r.sendError(sender, "Invalid request-members payload")
		return
	}

	current, ok := r.registry.RoomOf(sender.ID())
	if !ok || current != p.RoomID {
		r.sendError(sender, "Not a member of this classroom")
		return
	}

	r.broadcaster.ToConnection(sender, types.EventMemberList, r.registry.MembersOf(p.RoomID))
}

func (r *Router) handleStudentEdit(ctx context.Context, sender interfaces.Connection, raw json.RawMessage) {
	var p types.StudentEditPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		r.sendError(sender, "Invalid student-edit payload")
		return
	}
	if err := p.Validate(); err != nil {
		r.sendError(sender, err.Error())
		return
	}

	if err := r.edits.ApplyStudentEdit(ctx, sender, p.RoomID, p.Content, p.Language); err != nil {
		r.sendOperationError(sender, err, "Failed to save code")
	}
}

func (r *Router) handleInstructorEdit(ctx context.Context, sender interfaces.Connection, raw json.RawMessage) {
	var p types.InstructorEditPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		r.sendError(sender, "Invalid instructor-edit payload")
		return
	}
	if err := p.Validate(); err != nil {
		r.sendError(sender, err.Error())
		return
	}

	if err := r.edits.ApplyInstructorEdit(ctx, sender, p.RoomID, p.StudentID, p.Content, p.Language); err != nil {
		r.sendOperationError(sender, err, "Failed to save code")
	}
}

func (r *Router) handleRequestStudentCode(ctx context.Context, sender interfaces.Connection, raw json.RawMessage) {
	if sender.Role() != types.RoleInstructor {
		log.Printf("Dropped request-student-code from non-instructor: user=%s role=%s", sender.UserID(), sender.Role())
		metrics.EventsDropped.Inc()
		return
	}

	var p types.RequestStudentCodePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" || p.StudentID == "" {
		r.sendError(sender, "Invalid request-student-code payload")
		return
	}

	doc, err := r.edits.GetDocument(ctx, p.RoomID, p.StudentID)
	if err != nil {
		r.sendOperationError(sender, err, "Failed to fetch code")
		return
	}

	r.broadcaster.ToConnection(sender, types.EventStudentCodeResponse, types.StudentCodeResponsePayload{
		StudentID: p.StudentID,
		Content:   doc.Content,
		Language:  doc.Language,
	})
}

func (r *Router) handleHelpRaise(sender interfaces.Connection, raw json.RawMessage) {
	var p types.HelpRaisePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		r.sendError(sender, "Invalid help-raise payload")
		return
	}
	r.help.Raise(sender, p.RoomID, p.Message)
}

func (r *Router) handleHelpResolve(sender interfaces.Connection, raw json.RawMessage) {
	var p types.HelpResolvePayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" || p.StudentID == "" {
		r.sendError(sender, "Invalid help-resolve payload")
		return
	}
	r.help.Resolve(sender, p.RoomID, p.StudentID)
}

func (r *Router) handleStudentExecResult(sender interfaces.Connection, raw json.RawMessage) {
	var p types.StudentExecResultPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		r.sendError(sender, "Invalid student-exec-result payload")
		return
	}
	r.exec.RelayStudentResult(sender, p.RoomID, p.Result)
}

func (r *Router) handleInstructorExecResult(sender interfaces.Connection, raw json.RawMessage) {
	var p types.InstructorExecResultPayload
	if err := json.Unmarshal(raw, &p); err != nil || p.RoomID == "" {
		r.sendError(sender, "Invalid instructor-exec-result payload")
		return
	}
	r.exec.RelayInstructorResult(sender, p.RoomID, p.StudentID, p.Result)
}

// sendOperationError maps component errors onto the human-readable reasons
// the sender sees. Internal detail never leaks: persistence failures all
// collapse to the generic fallback.
func (r *Router) sendOperationError(sender interfaces.Connection, err error, fallback string) {
	switch {
	case errors.Is(err, interfaces.ErrRoomNotFound):
		r.sendError(sender, "Classroom not found")
	case errors.Is(err, interfaces.ErrNotRoomOwner):
		r.sendError(sender, "Access denied")
	default:
		log.Printf("Operation failed for %s: %v", sender.UserID(), err)
		r.sendError(sender, fallback)
	}
}

func (r *Router) sendError(sender interfaces.Connection, message string) {
	metrics.OperationErrors.Inc()
	r.broadcaster.ToConnection(sender, types.EventOperationError, types.OperationErrorPayload{Message: message})
}
