package execrelay

import (
	"encoding/json"
	"log"
	"time"

	"github.com/Lingjia-code/CodeShare-Classroom/internal/broadcast"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/interfaces"
	"github.com/Lingjia-code/CodeShare-Classroom/pkg/types"
)

// Relay forwards remote-execution outcomes between the running party and
// observers in the same room. Stateless: nothing is stored, and the result
// payload is opaque to this subsystem, malformed or not.
type Relay struct {
	broadcaster *broadcast.Broadcaster
}

// NewRelay creates an execution-result relay.
func NewRelay(broadcaster *broadcast.Broadcaster) *Relay {
	return &Relay{broadcaster: broadcaster}
}

// RelayStudentResult forwards a student's own execution outcome to the rest
// of the room. Non-students are dropped silently.
func (r *Relay) RelayStudentResult(sender interfaces.Connection, roomID string, result json.RawMessage) {
	if sender.Role() != types.RoleStudent {
		log.Printf("Dropped student-exec-result from non-student: user=%s role=%s room=%s", sender.UserID(), sender.Role(), roomID)
		return
	}

	r.broadcaster.ToRoomExcept(roomID, sender.ID(), types.EventStudentExecutionResult, types.StudentExecutionResultPayload{
		StudentID:   sender.UserID(),
		StudentName: sender.Username(),
		Result:      result,
		Timestamp:   time.Now(),
	})
}

// RelayInstructorResult forwards the outcome of an instructor running a
// student's code to the rest of the room. Non-instructors are dropped
// silently.
func (r *Relay) RelayInstructorResult(sender interfaces.Connection, roomID, studentID string, result json.RawMessage) {
	if sender.Role() != types.RoleInstructor {
		log.Printf("Dropped instructor-exec-result from non-instructor: user=%s role=%s room=%s", sender.UserID(), sender.Role(), roomID)
		return
	}

	r.broadcaster.ToRoomExcept(roomID, sender.ID(), types.EventInstructorExecutionResult, types.InstructorExecutionResultPayload{
		StudentID:      studentID,
		InstructorName: sender.Username(),
		Result:         result,
		Timestamp:      time.Now(),
	})
}
