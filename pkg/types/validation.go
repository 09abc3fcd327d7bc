package types

import (
	"regexp"
)

// Compiled once at package initialization; validation runs on every
// handshake and every edit event.
var (
	userIDRegex   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	roomCodeRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// MaxContentBytes bounds a single document's content. Edits beyond this are
// rejected before any persistence or broadcast.
const MaxContentBytes = 256 * 1024

// IsValidUserID checks identity format: 1-64 characters, alphanumeric plus
// underscore and hyphen.
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 64 {
		return false
	}
	return userIDRegex.MatchString(userID)
}

// IsValidRole accepts exactly the two roles the system knows.
func IsValidRole(role string) bool {
	return role == RoleStudent || role == RoleInstructor
}

// IsValidRoomCode checks the human-facing classroom code format.
func IsValidRoomCode(code string) bool {
	if len(code) < 1 || len(code) > 64 {
		return false
	}
	return roomCodeRegex.MatchString(code)
}

// IsInboundEvent reports whether the event name is one the router accepts.
// Anything else is an unknown route and gets dropped.
func IsInboundEvent(event string) bool {
	switch event {
	case EventJoinRoom,
		EventLeaveRoom,
		EventRequestMembers,
		EventStudentEdit,
		EventInstructorEdit,
		EventRequestStudentCode,
		EventHelpRaise,
		EventHelpResolve,
		EventStudentExecResult,
		EventInstructorExecResult:
		return true
	default:
		return false
	}
}

// NormalizeLanguage falls back to the default language when a client omits
// the language field, matching document defaults at creation.
func NormalizeLanguage(language string) string {
	if language == "" {
		return DefaultLanguage
	}
	return language
}

// Validate checks a student edit before it reaches the controller.
func (p *StudentEditPayload) Validate() error {
	if p.RoomID == "" {
		return ErrMissingRoomID
	}
	if len(p.Content) > MaxContentBytes {
		return ErrContentTooLarge
	}
	return nil
}

// Validate checks an instructor edit before it reaches the controller.
func (p *InstructorEditPayload) Validate() error {
	if p.RoomID == "" {
		return ErrMissingRoomID
	}
	if !IsValidUserID(p.StudentID) {
		return ErrInvalidUserID
	}
	if len(p.Content) > MaxContentBytes {
		return ErrContentTooLarge
	}
	return nil
}
