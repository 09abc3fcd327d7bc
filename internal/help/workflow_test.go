package help

import (
	"sync"
	"testing"

	"github.com/Lingjia-code/CodeShare-Classroom/internal/broadcast"
	"github.com/Lingjia-code/CodeShare-Classroom/internal/presence"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/types"
)

type recordingConn struct {
	id       string
	userID   string
	role     string
	mu       sync.Mutex
	received []types.OutboundEnvelope
}

func (c *recordingConn) ID() string       { return c.id }
func (c *recordingConn) UserID() string   { return c.userID }
func (c *recordingConn) Username() string { return c.userID }
func (c *recordingConn) Role() string     { return c.role }
func (c *recordingConn) Close() error     { return nil }

func (c *recordingConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, v.(types.OutboundEnvelope))
	return nil
}

func (c *recordingConn) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.received))
	for i, env := range c.received {
		names[i] = env.Event
	}
	return names
}

func setup() (*presence.Registry, *Workflow) {
	registry := presence.NewRegistry()
	return registry, NewWorkflow(broadcast.NewBroadcaster(registry))
}

func TestRaiseNotifiesRoomExceptSender(t *testing.T) {
	registry, w := setup()

	student := &recordingConn{id: "c1", userID: "alice", role: types.RoleStudent}
	instructor := &recordingConn{id: "c2", userID: "prof", role: types.RoleInstructor}
	registry.Join("room-1", student)
	registry.Join("room-1", instructor)

	w.Raise(student, "room-1", "stuck on loop")

	if got := w.StateOf("room-1", "alice"); got != types.HelpOpen {
		t.Errorf("expected state open, got %s", got)
	}
	if got := student.events(); len(got) != 0 {
		t.Errorf("expected no echo to the raising student, got %v", got)
	}
	if got := instructor.events(); len(got) != 1 || got[0] != types.EventHelpRequestReceived {
		t.Errorf("expected help-request-received at the instructor, got %v", got)
	}
}

func TestRaiseFromInstructorIsDropped(t *testing.T) {
	registry, w := setup()

	instructor := &recordingConn{id: "c1", userID: "prof", role: types.RoleInstructor}
	registry.Join("room-1", instructor)

	w.Raise(instructor, "room-1", "hello")

	if got := w.StateOf("room-1", "prof"); got != types.HelpNone {
		t.Errorf("expected no request recorded, got %s", got)
	}
}

func TestRaiseOverwritesMessage(t *testing.T) {
	registry, w := setup()

	student := &recordingConn{id: "c1", userID: "alice", role: types.RoleStudent}
	registry.Join("room-1", student)

	w.Raise(student, "room-1", "first")
	w.Raise(student, "room-1", "second")

	open := w.OpenRequests("room-1")
	if len(open) != 1 {
		t.Fatalf("expected one open request, got %d", len(open))
	}
	if open[0].Message != "second" {
		t.Errorf("expected latest message, got %q", open[0].Message)
	}
}

func TestResolveConfirmsToWholeRoom(t *testing.T) {
	registry, w := setup()

	student := &recordingConn{id: "c1", userID: "alice", role: types.RoleStudent}
	instructor := &recordingConn{id: "c2", userID: "prof", role: types.RoleInstructor}
	registry.Join("room-1", student)
	registry.Join("room-1", instructor)

	w.Raise(student, "room-1", "help")
	w.Resolve(instructor, "room-1", "alice")

	if got := w.StateOf("room-1", "alice"); got != types.HelpResolved {
		t.Errorf("expected resolved, got %s", got)
	}

	// Resolution is confirmed to everyone, the resolving instructor included.
	instructorEvents := instructor.events()
	if len(instructorEvents) != 2 || instructorEvents[1] != types.EventHelpResolvedNotification {
		t.Errorf("expected resolution at the instructor, got %v", instructorEvents)
	}
	studentEvents := student.events()
	if len(studentEvents) != 1 || studentEvents[0] != types.EventHelpResolvedNotification {
		t.Errorf("expected resolution at the student, got %v", studentEvents)
	}
}

func TestResolveClearsMessage(t *testing.T) {
	registry, w := setup()

	student := &recordingConn{id: "c1", userID: "alice", role: types.RoleStudent}
	instructor := &recordingConn{id: "c2", userID: "prof", role: types.RoleInstructor}
	registry.Join("room-1", student)
	registry.Join("room-1", instructor)

	w.Raise(student, "room-1", "secret details")
	w.Resolve(instructor, "room-1", "alice")

	if got := w.OpenRequests("room-1"); len(got) != 0 {
		t.Errorf("expected no open requests after resolve, got %v", got)
	}
}

func TestDoubleResolveIsNoOp(t *testing.T) {
	registry, w := setup()

	student := &recordingConn{id: "c1", userID: "alice", role: types.RoleStudent}
	instructor := &recordingConn{id: "c2", userID: "prof", role: types.RoleInstructor}
	registry.Join("room-1", student)
	registry.Join("room-1", instructor)

	w.Raise(student, "room-1", "help")
	w.Resolve(instructor, "room-1", "alice")
	w.Resolve(instructor, "room-1", "alice")

	// Exactly one resolution notification despite two resolve events.
	count := 0
	for _, event := range student.events() {
		if event == types.EventHelpResolvedNotification {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one resolution notification, got %d", count)
	}
}

func TestResolveNonexistentRequestIsNoOp(t *testing.T) {
	registry, w := setup()

	student := &recordingConn{id: "c1", userID: "alice", role: types.RoleStudent}
	instructor := &recordingConn{id: "c2", userID: "prof", role: types.RoleInstructor}
	registry.Join("room-1", student)
	registry.Join("room-1", instructor)

	w.Resolve(instructor, "room-1", "alice")

	if got := student.events(); len(got) != 0 {
		t.Errorf("expected no notification for resolving a never-raised request, got %v", got)
	}
}

func TestResolveFromStudentIsDropped(t *testing.T) {
	registry, w := setup()

	alice := &recordingConn{id: "c1", userID: "alice", role: types.RoleStudent}
	bob := &recordingConn{id: "c2", userID: "bob", role: types.RoleStudent}
	registry.Join("room-1", alice)
	registry.Join("room-1", bob)

	w.Raise(alice, "room-1", "help")
	w.Resolve(bob, "room-1", "alice")

	if got := w.StateOf("room-1", "alice"); got != types.HelpOpen {
		t.Errorf("expected request to remain open, got %s", got)
	}
}

func TestRaiseAfterResolveReopens(t *testing.T) {
	registry, w := setup()

	student := &recordingConn{id: "c1", userID: "alice", role: types.RoleStudent}
	instructor := &recordingConn{id: "c2", userID: "prof", role: types.RoleInstructor}
	registry.Join("room-1", student)
	registry.Join("room-1", instructor)

	w.Raise(student, "room-1", "first")
	w.Resolve(instructor, "room-1", "alice")
	w.Raise(student, "room-1", "again")

	if got := w.StateOf("room-1", "alice"); got != types.HelpOpen {
		t.Errorf("expected reopened request, got %s", got)
	}
}
