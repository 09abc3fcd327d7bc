package types

import (
	"encoding/json"
	"time"
)

// Roles carried by every authenticated connection.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
)

// DefaultLanguage is assumed whenever an edit omits the language field.
const DefaultLanguage = "javascript"

// Inbound event names (client -> server).
const (
	EventJoinRoom             = "join-room"
	EventLeaveRoom            = "leave-room"
	EventRequestMembers       = "request-members"
	EventStudentEdit          = "student-edit"
	EventInstructorEdit       = "instructor-edit"
	EventRequestStudentCode   = "request-student-code"
	EventHelpRaise            = "help-raise"
	EventHelpResolve          = "help-resolve"
	EventStudentExecResult    = "student-exec-result"
	EventInstructorExecResult = "instructor-exec-result"
)

// Outbound event names (server -> client).
const (
	EventMemberJoined              = "member-joined"
	EventMemberLeft                = "member-left"
	EventMemberList                = "member-list"
	EventStudentCodeUpdate         = "student-code-update"
	EventInstructorCodeUpdate      = "instructor-code-update"
	EventStudentCodeResponse       = "student-code-response"
	EventHelpRequestReceived       = "help-request-received"
	EventHelpResolvedNotification  = "help-resolved-notification"
	EventStudentExecutionResult    = "student-execution-result"
	EventInstructorExecutionResult = "instructor-execution-result"
	EventOperationError            = "operation-error"
)

// Envelope is the wire frame for every message in both directions.
// Inbound payloads stay raw until the router knows the event name.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutboundEnvelope carries an already-built payload to a client.
type OutboundEnvelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// Classroom is the persisted room record. Room membership is ephemeral and
// lives in the presence registry; this struct only covers durable state.
type Classroom struct {
	ID           string    `json:"id"`
	RoomCode     string    `json:"roomCode"`
	InstructorID string    `json:"instructorId"`
	StudentIDs   []string  `json:"studentIds,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CodeDocument is the persisted code state for one student in one room.
// Written by the student's own client or by the room's instructor.
type CodeDocument struct {
	RoomID      string    `json:"roomId"`
	StudentID   string    `json:"studentId"`
	Content     string    `json:"content"`
	Language    string    `json:"language"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// MemberInfo is the presence view of one connection inside a room.
type MemberInfo struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// HelpState values for the per-student help request state machine.
// An absent request is equivalent to HelpNone.
type HelpState string

const (
	HelpNone     HelpState = "none"
	HelpOpen     HelpState = "open"
	HelpResolved HelpState = "resolved"
)

// HelpRequest tracks one student's outstanding help request within a room.
// Never persisted; lives only as long as the process.
type HelpRequest struct {
	StudentID string    `json:"studentId"`
	Message   string    `json:"message"`
	State     HelpState `json:"state"`
	RaisedAt  time.Time `json:"raisedAt"`
}

// Inbound payloads.

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type LeaveRoomPayload struct {
	RoomID string `json:"roomId"`
}

type RequestMembersPayload struct {
	RoomID string `json:"roomId"`
}

type StudentEditPayload struct {
	RoomID   string `json:"roomId"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

type InstructorEditPayload struct {
	RoomID    string `json:"roomId"`
	StudentID string `json:"studentId"`
	Content   string `json:"content"`
	Language  string `json:"language"`
}

type RequestStudentCodePayload struct {
	RoomID    string `json:"roomId"`
	StudentID string `json:"studentId"`
}

type HelpRaisePayload struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
}

type HelpResolvePayload struct {
	RoomID    string `json:"roomId"`
	StudentID string `json:"studentId"`
}

// Execution results are opaque to this subsystem and forwarded as-is,
// malformed or not.

type StudentExecResultPayload struct {
	RoomID string          `json:"roomId"`
	Result json.RawMessage `json:"result"`
}

type InstructorExecResultPayload struct {
	RoomID    string          `json:"roomId"`
	StudentID string          `json:"studentId"`
	Result    json.RawMessage `json:"result"`
}

// Outbound payloads.

type MemberLeftPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type StudentCodeUpdatePayload struct {
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	Content     string    `json:"content"`
	Language    string    `json:"language"`
	Timestamp   time.Time `json:"timestamp"`
}

type InstructorCodeUpdatePayload struct {
	StudentID      string    `json:"studentId"`
	InstructorName string    `json:"instructorName"`
	Content        string    `json:"content"`
	Language       string    `json:"language"`
	Timestamp      time.Time `json:"timestamp"`
}

type StudentCodeResponsePayload struct {
	StudentID string `json:"studentId"`
	Content   string `json:"content"`
	Language  string `json:"language"`
}

type HelpRequestReceivedPayload struct {
	StudentID   string    `json:"studentId"`
	StudentName string    `json:"studentName"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

type HelpResolvedPayload struct {
	StudentID      string `json:"studentId"`
	InstructorName string `json:"instructorName"`
}

type StudentExecutionResultPayload struct {
	StudentID   string          `json:"studentId"`
	StudentName string          `json:"studentName"`
	Result      json.RawMessage `json:"result"`
	Timestamp   time.Time       `json:"timestamp"`
}

type InstructorExecutionResultPayload struct {
	StudentID      string          `json:"studentId"`
	InstructorName string          `json:"instructorName"`
	Result         json.RawMessage `json:"result"`
	Timestamp      time.Time       `json:"timestamp"`
}

type OperationErrorPayload struct {
	Message string `json:"message"`
}
